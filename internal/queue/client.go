package queue

import (
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/config"
)

// NewProducerClient creates a client that routes records by key hash, so every
// message for one coupon lands on the same partition.
func NewProducerClient(cfg config.KafkaConfig) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
}

// NewConsumerClient creates a group consumer with manual commits. Rebalances
// are held back while a polled batch is being processed.
func NewConsumerClient(cfg config.KafkaConfig, clientID, groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
}
