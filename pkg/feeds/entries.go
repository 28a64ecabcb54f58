package feeds

import (
	"encoding/json"
	"fmt"

	"go.aavaz.network/pulse/pkg/types"
)

// MarshalEntries encodes feed entries as the serialized records stored in a
// materialized feed list. Encoding is deterministic for unchanged input, so
// regenerating an unchanged feed produces byte-identical lists.
func MarshalEntries(entries []types.FeedEntry) ([][]byte, error) {
	items := make([][]byte, len(entries))
	for i := range entries {
		data, err := json.Marshal(&entries[i])
		if err != nil {
			return nil, fmt.Errorf("encode feed entry %d: %w", entries[i].Post.ID, err)
		}
		items[i] = data
	}
	return items, nil
}

// UnmarshalEntries decodes the serialized records of a materialized feed.
func UnmarshalEntries(items [][]byte) ([]types.FeedEntry, error) {
	entries := make([]types.FeedEntry, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &entries[i]); err != nil {
			return nil, fmt.Errorf("decode feed entry: %w", err)
		}
	}
	return entries, nil
}
