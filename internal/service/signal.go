package service

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/usecase"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event mediafetch.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return errors.Wrap(err, "SignalService.Publish")
	}

	return nil
}

// Subscribe streams raw event payloads until ctx is done.
func (s *SignalService) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := s.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "SignalService.Subscribe")
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ usecase.EventPublisher = (*SignalService)(nil)
