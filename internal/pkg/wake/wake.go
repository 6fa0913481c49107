// Package wake carries best-effort wake-up notifications between the stream
// and process services over Redis pub/sub. Polling remains the primary
// scheduling mechanism; wake-ups only shorten idle waits.
package wake

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Channel is the pub/sub channel shared by both services.
const Channel = "skyfilter:posts:admitted"

// Publisher emits a wake-up after each recorded post.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a publisher over the given Redis client.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish emits one wake-up. Failures are logged and ignored.
func (p *Publisher) Publish(ctx context.Context) {
	if err := p.rdb.Publish(ctx, Channel, "1").Err(); err != nil {
		log.Debug().Err(err).Msg("Wake-up publish failed")
	}
}

// Subscribe forwards wake-ups to the wake channel without blocking, dropping
// notifications while one is already pending.
func Subscribe(ctx context.Context, rdb *redis.Client, wakeCh chan<- struct{}) {
	sub := rdb.Subscribe(ctx, Channel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			select {
			case wakeCh <- struct{}{}:
			default:
			}
		}
	}
}
