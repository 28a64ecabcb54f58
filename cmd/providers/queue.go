package providers

import (
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.aavaz.network/pulse/pkg/jobqueue"
)

// Queue config keys, shared by both topics.
const (
	ConfQueueClaimTTL       = "queue.claim_ttl"
	ConfQueueMaxAttempts    = "queue.max_attempts"
	ConfQueueClaimBatch     = "queue.claim_batch"
	ConfQueueHandlerTimeout = "queue.handler_timeout"
	ConfQueueExpireBatch    = "queue.expire_batch"
)

func init() {
	viper.SetDefault(ConfQueueClaimTTL, jobqueue.DefaultOptions.ClaimTTL)
	viper.SetDefault(ConfQueueMaxAttempts, jobqueue.DefaultOptions.MaxAttempts)
	viper.SetDefault(ConfQueueClaimBatch, jobqueue.DefaultOptions.ClaimBatch)
	viper.SetDefault(ConfQueueHandlerTimeout, jobqueue.DefaultOptions.HandlerTimeout)
	viper.SetDefault(ConfQueueExpireBatch, jobqueue.DefaultOptions.ExpireBatch)
}

func queueOptions() jobqueue.Options {
	opts := jobqueue.DefaultOptions
	opts.ClaimTTL = viper.GetUint(ConfQueueClaimTTL)
	opts.MaxAttempts = viper.GetInt64(ConfQueueMaxAttempts)
	opts.ClaimBatch = viper.GetUint(ConfQueueClaimBatch)
	opts.HandlerTimeout = viper.GetDuration(ConfQueueHandlerTimeout)
	opts.ExpireBatch = viper.GetUint(ConfQueueExpireBatch)
	return opts
}

// Queue bundles the producer and consumer sides of one topic.
type Queue struct {
	Producer  *jobqueue.Producer
	Consumers *jobqueue.Consumers
	Keys      jobqueue.Keys
	Opts      jobqueue.Options
}

func newQueue(rd *redis.Client, topic string) Queue {
	keys := jobqueue.KeysForTopic(topic)
	opts := queueOptions()
	return Queue{
		Producer:  &jobqueue.Producer{Redis: rd, Keys: keys},
		Consumers: &jobqueue.Consumers{Redis: rd, Keys: keys, Opts: opts},
		Keys:      keys,
		Opts:      opts,
	}
}

// FeedQueue is the feed-generation topic.
type FeedQueue struct{ Queue }

// NotificationQueue is the notification fan-out topic.
type NotificationQueue struct{ Queue }

func NewFeedQueue(rd *redis.Client) *FeedQueue {
	return &FeedQueue{newQueue(rd, jobqueue.TopicFeedGeneration)}
}

func NewNotificationQueue(rd *redis.Client) *NotificationQueue {
	return &NotificationQueue{newQueue(rd, jobqueue.TopicNotifications)}
}
