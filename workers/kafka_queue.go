package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/camden-git/imagecropper/services"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes tasks to a Kafka topic and consumes them in a consumer
// group, so several cropper instances share the background work.
type KafkaQueue struct {
	writer messageWriter
	reader messageReader
}

func NewKafkaQueue(brokers []string, topic, groupID string) *KafkaQueue {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	log.Info().Strs("brokers", brokers).Str("topic", topic).Str("group", groupID).Msg("workers: kafka task queue configured")
	return &KafkaQueue{writer: writer, reader: reader}
}

// Submit publishes task keyed by image id, so tasks for one image stay on one
// partition.
func (q *KafkaQueue) Submit(ctx context.Context, task services.Task) error {
	if err := task.Valid(); err != nil {
		return err
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", task.ImageID)),
		Value: payload,
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish task %s: %w", task.Key(), err)
	}
	return nil
}

// Run consumes tasks until ctx is cancelled and hands each one to sink,
// usually the local TaskProcessor. A message is committed only once its task
// was accepted by sink, so a crash before that redelivers it. Undecodable
// messages are logged, committed and skipped.
func (q *KafkaQueue) Run(ctx context.Context, sink services.TaskQueue) error {
	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read task message: %w", err)
		}

		task, err := decodeTask(msg.Value)
		if err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("workers: dropping bad task message")
		} else if err := SubmitWithRetry(ctx, sink, task); err != nil {
			if ctx.Err() != nil {
				// uncommitted, so the group hands it out again
				return nil
			}
			if errors.Is(err, ErrStopped) {
				return err
			}
			log.Error().Err(err).Str("task", task.Key()).Msg("workers: failed to deliver task")
		}

		if err := q.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit task message at offset %d: %w", msg.Offset, err)
		}
	}
}

func decodeTask(data []byte) (services.Task, error) {
	var task services.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return services.Task{}, fmt.Errorf("invalid task payload: %w", err)
	}
	if err := task.Valid(); err != nil {
		return services.Task{}, err
	}
	return task, nil
}

func (q *KafkaQueue) Close() error {
	return errors.Join(q.writer.Close(), q.reader.Close())
}
