package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
)

// IssuanceOptions holds the reservation lifetimes used at admission.
type IssuanceOptions struct {
	ReservationTTL  time.Duration
	IssuedRetention time.Duration
}

// IssuanceService is the admission gateway. It decides synchronously from the
// reservation store alone and hands reserved claims to the confirmation queue.
type IssuanceService struct {
	catalog   CouponCatalogInterface
	store     ReservationStoreInterface
	publisher ConfirmationPublisher
	opts      IssuanceOptions
	now       func() time.Time
	requestID func() string
}

// NewIssuanceService creates a new IssuanceService.
func NewIssuanceService(catalog CouponCatalogInterface, store ReservationStoreInterface, publisher ConfirmationPublisher, opts IssuanceOptions) *IssuanceService {
	return &IssuanceService{
		catalog:   catalog,
		store:     store,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		requestID: func() string { return uuid.NewString() },
	}
}

// RequestIssuance admits or rejects one user's request for one unit of a coupon.
// Returns:
//   - ErrInvalidRequest for non-positive ids
//   - ErrCouponNotFound if the coupon is not in the catalog
//   - ErrCouponNotActive outside the validity window
//   - ErrTransient when the store or queue failed; nothing stays reserved in that case
func (s *IssuanceService) RequestIssuance(ctx context.Context, couponID, userID int64) (*model.IssueResult, error) {
	if couponID <= 0 || userID <= 0 {
		return nil, ErrInvalidRequest
	}

	meta, err := s.catalog.Get(ctx, couponID)
	if err != nil {
		return nil, fmt.Errorf("%w: load coupon meta: %w", ErrTransient, err)
	}
	if meta == nil {
		return nil, ErrCouponNotFound
	}
	now := s.now()
	if !meta.IsActiveAt(now) {
		return nil, ErrCouponNotActive
	}

	retention := keyRetention(meta.ValidTo, now, s.opts.IssuedRetention)
	res, err := s.store.Reserve(ctx, couponID, userID, meta.TotalQuantity, s.opts.ReservationTTL, retention)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	switch res.Outcome {
	case model.ReserveSoldOut:
		return &model.IssueResult{Status: model.IssueSoldOut}, nil
	case model.ReserveAlreadyIssued, model.ReserveAlreadyReserved:
		// A pending reservation was already published; the caller sees it as issued.
		return &model.IssueResult{Status: model.IssueAlreadyIssued}, nil
	}

	msg := &model.ConfirmationMessage{
		CouponID:    couponID,
		UserID:      userID,
		RequestID:   s.requestID(),
		RequestedAt: now,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.rollback(ctx, msg, err)
		return nil, fmt.Errorf("%w: publish confirmation: %w", ErrTransient, err)
	}

	log.Debug().
		Int64("coupon_id", couponID).
		Int64("user_id", userID).
		Str("request_id", msg.RequestID).
		Int64("sequence", res.SequenceNumber).
		Str("state", string(model.ClaimReserved)).
		Msg("reservation admitted")

	return &model.IssueResult{
		Status:         model.IssueReserved,
		SequenceNumber: res.SequenceNumber,
		RequestID:      msg.RequestID,
	}, nil
}

// keyRetention is how long a coupon's reservation and issued keys must live
// from now: retention past the end of the validity window, and never less
// than retention. Every caller derives the same deadline from validTo, so a
// later write never shortens what an earlier one set.
func keyRetention(validTo, now time.Time, retention time.Duration) time.Duration {
	if untilEnd := validTo.Sub(now) + retention; untilEnd > retention {
		return untilEnd
	}
	return retention
}

// rollback cancels a reservation whose confirmation message never reached the queue.
// The cancel runs detached from the request so a client disconnect cannot skip it.
func (s *IssuanceService) rollback(ctx context.Context, msg *model.ConfirmationMessage, cause error) {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger := log.With().
		Int64("coupon_id", msg.CouponID).
		Int64("user_id", msg.UserID).
		Str("request_id", msg.RequestID).
		Logger()

	if _, err := s.store.CancelReservation(cancelCtx, msg.CouponID, msg.UserID); err != nil {
		logger.Error().
			Err(err).
			AnErr("publish_error", cause).
			Msg("failed to cancel unpublished reservation, sweeper will reclaim it after ttl")
		return
	}
	logger.Warn().Err(cause).Str("state", string(model.ClaimCancelled)).Msg("publish failed, reservation cancelled")
}
