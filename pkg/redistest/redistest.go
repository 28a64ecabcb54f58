// Package redistest runs an ephemeral redis-server for tests.
//
// Tests that need Redis skip automatically when no redis-server binary is
// installed, so the package-level unit tests stay runnable everywhere.
package redistest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is an ephemeral Redis server plus a connected client.
type Redis struct {
	Client *redis.Client

	cmd  *exec.Cmd
	done chan struct{}
}

// NewRedis starts a redis-server subprocess on a unix socket and waits for
// it to answer pings. Skips the test when redis-server is not installed.
func NewRedis(ctx context.Context, t testing.TB) *Redis {
	bin, err := exec.LookPath("redis-server")
	if err != nil {
		t.Skip("redistest: redis-server not installed")
	}
	dir, err := os.MkdirTemp("", "redistest-")
	if err != nil {
		t.Fatal("redistest: temp dir:", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "redis.sock")
	cmd := exec.CommandContext(ctx, bin,
		"--port", "0",
		"--unixsocket", socket,
		"--unixsocketperm", "700",
		"--save", "")
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		t.Fatal("redistest: start redis-server:", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = cmd.Wait()
	}()
	client := redis.NewClient(&redis.Options{
		Network: "unix",
		Addr:    socket,
	})
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for try := 0; try < 50; try++ {
		if try > 0 {
			select {
			case <-ticker.C:
			case <-done:
				t.Fatal("redistest: redis-server exited during startup")
			}
		}
		if err := client.Ping(ctx).Err(); err == nil {
			t.Log("redistest: Redis is up")
			return &Redis{Client: client, cmd: cmd, done: done}
		}
	}
	t.Fatal("redistest: Redis did not come up")
	return nil
}

// Close stops the client and the server.
func (r *Redis) Close(t testing.TB) {
	_ = r.Client.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Log("redistest: timed out waiting for redis-server to exit")
	}
}
