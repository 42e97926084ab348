package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	LeaderboardChannel = "leaderboard"

	metadataEvent = "event"
)

func MatchChannel(matchID int) string {
	return "match:" + strconv.Itoa(matchID)
}

// Envelope is the event contract delivered to every subscriber of a channel.
type Envelope struct {
	ID         string          `json:"id"`
	Channel    string          `json:"channel"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher is the publish primitive the officiating services depend on.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// Broadcaster publishes envelopes over an in-process watermill pub/sub. Each
// channel is a watermill topic, created implicitly on first use. Publish
// blocks until every subscriber of the topic has acked, so events on one
// channel are delivered in publish order.
type Broadcaster struct {
	pubSub *gochannel.GoChannel
	logger *slog.Logger
	now    func() time.Time
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NewSlogLogger(logger))

	return &Broadcaster{
		pubSub: pubSub,
		logger: logger,
		now:    time.Now,
	}
}

func (b *Broadcaster) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	envelope := Envelope{
		ID:         uuid.NewString(),
		Channel:    channel,
		Event:      event,
		Payload:    body,
		OccurredAt: b.now().UTC(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}

	msg := message.NewMessage(envelope.ID, data)
	msg.Metadata.Set(metadataEvent, event)
	msg.SetContext(ctx)

	b.logger.Debug("Publishing event",
		slog.String("channel", channel),
		slog.String("event", event),
		slog.String("event_id", envelope.ID),
	)

	if err := b.pubSub.Publish(channel, msg); err != nil {
		return fmt.Errorf("failed to publish %s on %s: %w", event, channel, err)
	}
	return nil
}

// Subscribe streams envelopes published on channel until ctx is cancelled.
// A message is acked only after the envelope has been handed to the reader.
func (b *Broadcaster) Subscribe(ctx context.Context, channel string) (<-chan Envelope, error) {
	messages, err := b.pubSub.Subscribe(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan Envelope)
	go func() {
		defer close(out)
		for msg := range messages {
			var envelope Envelope
			if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
				b.logger.Warn("Dropping malformed envelope",
					slog.String("channel", channel),
					slog.String("message_id", msg.UUID),
					slog.Any("error", err),
				)
				msg.Ack()
				continue
			}
			select {
			case out <- envelope:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *Broadcaster) Close() error {
	return b.pubSub.Close()
}
