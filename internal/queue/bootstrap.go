package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/config"
)

// EnsureTopics creates the confirmation topic and its dead-letter topic.
// Topics that already exist are left as they are.
func EnsureTopics(ctx context.Context, client *kgo.Client, cfg config.KafkaConfig) error {
	adm := kadm.NewClient(client)

	topics := []string{TopicIssueRequested, DeadLetterTopic(TopicIssueRequested)}
	resp, err := adm.CreateTopics(ctx, int32(cfg.Partitions), int16(cfg.ReplicationFactor), nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, detail := range resp {
		if detail.Err != nil && !errors.Is(detail.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", detail.Topic, detail.Err)
		}
	}

	log.Info().Strs("topics", topics).Int("partitions", cfg.Partitions).Msg("topics ensured")
	return nil
}
