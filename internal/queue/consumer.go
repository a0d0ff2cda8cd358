package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Handler processes one record. A nil error acknowledges it; an error asks
// for another attempt.
type Handler func(ctx context.Context, record *kgo.Record) error

// Client is the subset of *kgo.Client a Consumer needs.
type Client interface {
	Producer
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	AllowRebalance()
}

// ConsumerOptions controls retries and dead-lettering.
type ConsumerOptions struct {
	// MaxAttempts bounds handler attempts per record. Zero retries until the
	// handler succeeds or the context ends.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// DeadLetterTopic receives records that exhausted MaxAttempts.
	DeadLetterTopic string
}

// Consumer polls a consumer group and runs a Handler over each record.
//
// Partitions of a poll are processed concurrently, records within a partition
// strictly in offset order. Offsets are committed only after a record was
// handled or dead-lettered.
type Consumer struct {
	name    string
	client  Client
	handler Handler
	opts    ConsumerOptions
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewConsumer creates a new Consumer.
func NewConsumer(name string, client Client, handler Handler, opts ConsumerOptions) *Consumer {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	return &Consumer{
		name:    name,
		client:  client,
		handler: handler,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) {
	log.Info().Str("consumer", c.name).Msg("consumer started")
	defer log.Info().Str("consumer", c.name).Msg("consumer stopped")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).
				Str("consumer", c.name).
				Str("topic", topic).
				Int32("partition", partition).
				Msg("fetch error")
		})

		var wg sync.WaitGroup
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			wg.Add(1)
			go func(records []*kgo.Record) {
				defer wg.Done()
				c.processPartition(ctx, records)
			}(p.Records)
		})
		wg.Wait()

		c.client.AllowRebalance()
	}
}

func (c *Consumer) processPartition(ctx context.Context, records []*kgo.Record) {
	done := make([]*kgo.Record, 0, len(records))
	for _, record := range records {
		if err := c.process(ctx, record); err != nil {
			break
		}
		done = append(done, record)
	}
	if len(done) == 0 {
		return
	}

	// Commit what finished even when shutdown interrupted the batch.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.client.CommitRecords(commitCtx, done...); err != nil {
		log.Error().Err(err).
			Str("consumer", c.name).
			Str("topic", done[0].Topic).
			Int32("partition", done[0].Partition).
			Msg("failed to commit records")
	}
}

// process returns an error only when ctx ended before the record was resolved.
func (c *Consumer) process(ctx context.Context, record *kgo.Record) error {
	var err error
	attempt := 0
	for {
		attempt++
		if err = c.handler(ctx, record); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.opts.MaxAttempts > 0 && attempt >= c.opts.MaxAttempts {
			break
		}

		delay := c.backoff(attempt)
		log.Warn().Err(err).
			Str("consumer", c.name).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("handler failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return c.deadLetter(ctx, record, err, attempt)
}

func (c *Consumer) deadLetter(ctx context.Context, record *kgo.Record, cause error, attempts int) error {
	if c.opts.DeadLetterTopic == "" {
		log.Error().Err(cause).
			Str("consumer", c.name).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Msg("attempts exhausted with no dead-letter topic, dropping record")
		return nil
	}

	dlt := &kgo.Record{
		Topic: c.opts.DeadLetterTopic,
		Key:   record.Key,
		Value: record.Value,
	}
	dlt.Headers = append(dlt.Headers, record.Headers...)
	dlt.Headers = append(dlt.Headers,
		kgo.RecordHeader{Key: HeaderError, Value: []byte(cause.Error())},
		kgo.RecordHeader{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
		kgo.RecordHeader{Key: HeaderOriginalPartition, Value: []byte(strconv.FormatInt(int64(record.Partition), 10))},
		kgo.RecordHeader{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(record.Offset, 10))},
	)

	// The source offset is not committed until the dead-letter write lands.
	for try := 1; ; try++ {
		err := c.client.ProduceSync(ctx, dlt).FirstErr()
		if err == nil {
			log.Warn().Err(cause).
				Str("consumer", c.name).
				Str("dlt", c.opts.DeadLetterTopic).
				Int32("partition", record.Partition).
				Int64("offset", record.Offset).
				Int("attempts", attempts).
				Msg("record dead-lettered")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).
			Str("consumer", c.name).
			Str("dlt", c.opts.DeadLetterTopic).
			Int("try", try).
			Msg("failed to produce dead-letter record")
		if err := c.sleep(ctx, c.backoff(try)); err != nil {
			return err
		}
	}
}

func (c *Consumer) backoff(attempt int) time.Duration {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift >= 62 || c.opts.BackoffBase > c.opts.BackoffMax>>shift {
		return c.opts.BackoffMax
	}
	return c.opts.BackoffBase << shift
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
