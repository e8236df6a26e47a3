package kafka

import (
	"context"
	"errors"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

type KafkaSubscriber struct {
	cfg KafkaConfig
}

func NewKafkaSubscriber(cfg KafkaConfig) *KafkaSubscriber {
	return &KafkaSubscriber{cfg: cfg}
}

// Subscribe streams messages of topic until ctx is cancelled or the reader
// fails, then closes the channel. Offsets are committed only through
// Message.Ack, so a message that was never acked is redelivered to the group.
func (k *KafkaSubscriber) Subscribe(ctx context.Context, topic, groupID string) (<-chan domain.Message, error) {
	dialer, err := k.cfg.dialer()
	if err != nil {
		return nil, err
	}
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: k.cfg.Brokers,
		Topic:   topic,
		GroupID: groupID,
		Dialer:  dialer,
	})

	out := make(chan domain.Message)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Error("kafka reader stopped", "topic", topic, "error", err)
				}
				return
			}
			select {
			case out <- domain.Message{Key: m.Key, Value: m.Value, Ack: commitFunc(reader, m)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func commitFunc(reader *kafkago.Reader, m kafkago.Message) func(context.Context) error {
	return func(ctx context.Context) error {
		return reader.CommitMessages(ctx, m)
	}
}
