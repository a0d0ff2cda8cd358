package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
)

// ConfirmResult describes how a confirmation message was resolved.
type ConfirmResult struct {
	State model.ClaimState
	// Reason is the domain failure behind a cancellation.
	Reason error
	// ReservationFound is false when the store had no pending reservation to promote.
	ReservationFound bool
}

// ConfirmationService commits reserved claims to the ledger.
type ConfirmationService struct {
	pool           TxBeginner
	couponRepo     CouponRepositoryInterface
	userCouponRepo UserCouponRepositoryInterface
	store          ReservationStoreInterface
	retention      time.Duration
	now            func() time.Time
}

// NewConfirmationService creates a new ConfirmationService.
func NewConfirmationService(pool TxBeginner, couponRepo CouponRepositoryInterface, userCouponRepo UserCouponRepositoryInterface, store ReservationStoreInterface, retention time.Duration) *ConfirmationService {
	return &ConfirmationService{
		pool:           pool,
		couponRepo:     couponRepo,
		userCouponRepo: userCouponRepo,
		store:          store,
		retention:      retention,
		now:            time.Now,
	}
}

// Confirm resolves one confirmation message. It is safe to call more than once
// for the same message.
//
// A nil error means the message can be acknowledged. Any returned error is
// transient and the message must be redelivered.
func (s *ConfirmationService) Confirm(ctx context.Context, msg *model.ConfirmationMessage) (*ConfirmResult, error) {
	if msg == nil || msg.CouponID <= 0 || msg.UserID <= 0 {
		return nil, ErrInvalidRequest
	}

	coupon, err := s.commit(ctx, msg)
	switch {
	case err == nil:
		found, err := s.store.ConfirmIssued(ctx, msg.CouponID, msg.UserID, s.retentionFor(coupon))
		if err != nil {
			return nil, fmt.Errorf("promote reservation: %w", err)
		}
		return &ConfirmResult{State: model.ClaimConfirmed, ReservationFound: found}, nil

	case errors.Is(err, ErrAlreadyIssued):
		found, err := s.store.ConfirmIssued(ctx, msg.CouponID, msg.UserID, s.retentionFor(coupon))
		if err != nil {
			return nil, fmt.Errorf("promote replayed reservation: %w", err)
		}
		return &ConfirmResult{State: model.ClaimAlreadyIssued, ReservationFound: found}, nil

	case IsDomainFailure(err):
		found, cancelErr := s.store.CancelReservation(ctx, msg.CouponID, msg.UserID)
		if cancelErr != nil {
			return nil, fmt.Errorf("cancel reservation after %v: %w", err, cancelErr)
		}
		return &ConfirmResult{State: model.ClaimCancelled, Reason: err, ReservationFound: found}, nil

	default:
		return nil, err
	}
}

func (s *ConfirmationService) retentionFor(coupon *model.Coupon) time.Duration {
	if coupon == nil {
		return s.retention
	}
	return keyRetention(coupon.ValidTo, s.now(), s.retention)
}

// commit records the issuance in the ledger in one transaction and returns the
// locked coupon row, if it was read.
// The coupon row is locked first so confirmations for a coupon serialize.
func (s *ConfirmationService) commit(ctx context.Context, msg *model.ConfirmationMessage) (*model.Coupon, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op once committed

	coupon, err := s.couponRepo.GetForUpdate(ctx, tx, msg.CouponID)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon for update: %w", err)
	}

	exists, err := s.userCouponRepo.Exists(ctx, tx, msg.UserID, msg.CouponID)
	if err != nil {
		return coupon, fmt.Errorf("check existing issuance: %w", err)
	}
	if exists {
		return coupon, ErrAlreadyIssued
	}

	if coupon.IssuedQuantity >= coupon.TotalQuantity {
		return coupon, ErrSoldOut
	}

	// The window is judged at admission time so queue lag does not void admitted claims.
	admittedAt := msg.RequestedAt
	if admittedAt.IsZero() {
		admittedAt = s.now()
	}
	if !coupon.IsActiveAt(admittedAt) {
		return coupon, ErrCouponNotActive
	}

	err = s.userCouponRepo.Insert(ctx, tx, &model.UserCoupon{
		UserID:    msg.UserID,
		CouponID:  msg.CouponID,
		Status:    model.UserCouponAvailable,
		IssuedAt:  s.now(),
		ExpiresAt: coupon.ValidTo,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyIssued) {
			return coupon, ErrAlreadyIssued
		}
		return coupon, fmt.Errorf("insert user coupon: %w", err)
	}

	if err := s.couponRepo.IncrementIssued(ctx, tx, coupon.ID, coupon.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return coupon, ErrVersionConflict
		}
		return coupon, fmt.Errorf("increment issued: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return coupon, fmt.Errorf("commit tx: %w", err)
	}
	return coupon, nil
}
