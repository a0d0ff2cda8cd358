package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/queue"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/service"
)

// Compensator releases reservations behind dead-lettered confirmations.
type Compensator interface {
	Compensate(ctx context.Context, msg *model.ConfirmationMessage) (bool, error)
}

// CompensationWorker consumes the dead-letter topic.
type CompensationWorker struct {
	compensator Compensator
}

// NewCompensationWorker creates a new CompensationWorker.
func NewCompensationWorker(compensator Compensator) *CompensationWorker {
	return &CompensationWorker{compensator: compensator}
}

// Handle implements queue.Handler.
func (w *CompensationWorker) Handle(ctx context.Context, record *kgo.Record) error {
	msg, err := queue.DecodeConfirmation(record)
	if err != nil {
		log.Error().Err(err).Msg("dropping undecodable dead-letter record")
		return nil
	}

	released, err := w.compensator.Compensate(ctx, msg)
	if errors.Is(err, service.ErrInvalidRequest) {
		log.Error().
			Int64("coupon_id", msg.CouponID).
			Int64("user_id", msg.UserID).
			Msg("dropping invalid dead-letter record")
		return nil
	}
	if err != nil {
		return err
	}

	log.Warn().
		Int64("coupon_id", msg.CouponID).
		Int64("user_id", msg.UserID).
		Str("request_id", msg.RequestID).
		Str("error", queue.Header(record, queue.HeaderError)).
		Str("attempts", queue.Header(record, queue.HeaderAttempts)).
		Bool("released", released).
		Msg("confirmation compensated")
	return nil
}
