package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream audit entries are published to.
const DefaultStream = "atlasgym:history"

// StreamLog publishes entries to a Redis stream with XADD so other
// consumers can follow the action history.
type StreamLog struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamLog connects to addr and checks the connection.
func NewStreamLog(ctx context.Context, addr, password, stream string) (*StreamLog, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamLog{client: rdb, stream: stream, maxLen: 10000}, nil
}

func (l *StreamLog) Record(ctx context.Context, e Entry) error {
	err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		MaxLen: l.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":        e.Type,
			"description": e.Description,
			"user":        e.User,
			"date":        e.Date.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to XADD to stream %s: %w", l.stream, err)
	}
	return nil
}

func (l *StreamLog) List(ctx context.Context) ([]Entry, error) {
	msgs, err := l.client.XRevRange(ctx, l.stream, "+", "-").Result()
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", l.stream, err)
	}
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		e := Entry{ID: m.ID}
		e.Type, _ = m.Values["type"].(string)
		e.Description, _ = m.Values["description"].(string)
		e.User, _ = m.Values["user"].(string)
		if raw, ok := m.Values["date"].(string); ok {
			e.Date, _ = time.Parse(time.RFC3339Nano, raw)
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *StreamLog) Clear(ctx context.Context) error {
	return l.client.Del(ctx, l.stream).Err()
}

func (l *StreamLog) Close() error { return l.client.Close() }
