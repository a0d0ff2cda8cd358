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

// Confirmer commits reserved claims to the ledger.
type Confirmer interface {
	Confirm(ctx context.Context, msg *model.ConfirmationMessage) (*service.ConfirmResult, error)
}

// ConfirmationWorker consumes the confirmation topic.
type ConfirmationWorker struct {
	confirmer Confirmer
}

// NewConfirmationWorker creates a new ConfirmationWorker.
func NewConfirmationWorker(confirmer Confirmer) *ConfirmationWorker {
	return &ConfirmationWorker{confirmer: confirmer}
}

// Handle implements queue.Handler. Transient failures are returned so the
// consumer retries and eventually dead-letters the record.
func (w *ConfirmationWorker) Handle(ctx context.Context, record *kgo.Record) error {
	msg, err := queue.DecodeConfirmation(record)
	if err != nil {
		// Nothing can be confirmed or compensated; the sweeper reclaims the
		// reservation once its TTL runs out.
		log.Error().Err(err).Msg("dropping undecodable confirmation")
		return nil
	}

	res, err := w.confirmer.Confirm(ctx, msg)
	if errors.Is(err, service.ErrInvalidRequest) {
		log.Error().
			Int64("coupon_id", msg.CouponID).
			Int64("user_id", msg.UserID).
			Msg("dropping invalid confirmation")
		return nil
	}
	if err != nil {
		return err
	}

	event := log.Info()
	if res.State == model.ClaimCancelled {
		event = log.Warn().AnErr("reason", res.Reason)
	}
	event.
		Int64("coupon_id", msg.CouponID).
		Int64("user_id", msg.UserID).
		Str("request_id", msg.RequestID).
		Str("state", string(res.State)).
		Bool("reservation_found", res.ReservationFound).
		Msg("confirmation resolved")
	return nil
}
