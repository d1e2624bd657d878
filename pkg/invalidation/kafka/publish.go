package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/sitrep-cache/internal/invalidation"
)

// Publish validates ev and sends it keyed by its scope, so events for one
// scope stay ordered within a partition.
func Publish(prod sarama.SyncProducer, topic string, ev invalidation.Event) (partition int32, offset int64, err error) {
	if err := ev.Validate(); err != nil {
		return 0, 0, fmt.Errorf("validate: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("encode: %w", err)
	}
	partition, offset, err = prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(ev.Scope()),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("send: %w", err)
	}
	return partition, offset, nil
}
