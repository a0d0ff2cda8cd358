package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
)

// Producer is the subset of *kgo.Client used for producing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher enqueues confirmation messages.
type Publisher struct {
	producer Producer
	topic    string
}

// NewPublisher creates a Publisher for the confirmation topic.
func NewPublisher(producer Producer) *Publisher {
	return &Publisher{producer: producer, topic: TopicIssueRequested}
}

// Publish writes msg and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, msg *model.ConfirmationMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode confirmation: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   CouponKey(msg.CouponID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: HeaderRequestID, Value: []byte(msg.RequestID)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// CouponKey is the partition key for a coupon.
func CouponKey(couponID int64) []byte {
	return []byte(strconv.FormatInt(couponID, 10))
}

// DecodeConfirmation parses a confirmation record value.
func DecodeConfirmation(record *kgo.Record) (*model.ConfirmationMessage, error) {
	var msg model.ConfirmationMessage
	if err := json.Unmarshal(record.Value, &msg); err != nil {
		return nil, fmt.Errorf("decode confirmation at %s/%d@%d: %w", record.Topic, record.Partition, record.Offset, err)
	}
	return &msg, nil
}

// Header returns the value of the first header named key.
func Header(record *kgo.Record, key string) string {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
