package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
)

// CompensationService reclaims reservation capacity that will never be confirmed.
// The ledger is consulted before any release: a claim the ledger already holds
// is promoted to issued instead, so the store never undercounts an issuance.
type CompensationService struct {
	store     ReservationStoreInterface
	catalog   CouponCatalogInterface
	ledger    IssuanceLedger
	retention time.Duration
	now       func() time.Time
}

// NewCompensationService creates a new CompensationService.
func NewCompensationService(store ReservationStoreInterface, catalog CouponCatalogInterface, ledger IssuanceLedger, retention time.Duration) *CompensationService {
	return &CompensationService{
		store:     store,
		catalog:   catalog,
		ledger:    ledger,
		retention: retention,
		now:       time.Now,
	}
}

// Compensate releases the reservation behind a dead-lettered confirmation.
// It reports whether capacity was actually reclaimed; a confirmed or already
// released claim is left untouched.
func (s *CompensationService) Compensate(ctx context.Context, msg *model.ConfirmationMessage) (bool, error) {
	if msg == nil || msg.CouponID <= 0 || msg.UserID <= 0 {
		return false, ErrInvalidRequest
	}

	committed, err := s.promoteIfCommitted(ctx, msg.CouponID, msg.UserID)
	if err != nil {
		return false, fmt.Errorf("compensate: %w", err)
	}
	if committed {
		return false, nil
	}

	released, err := s.store.CompensateReservation(ctx, msg.CouponID, msg.UserID)
	if err != nil {
		return false, fmt.Errorf("compensate: %w", err)
	}
	return released, nil
}

// SweepExpired reclaims every reservation whose TTL ran out without a
// confirmation or compensation. It returns how many were reclaimed.
func (s *CompensationService) SweepExpired(ctx context.Context) (int, error) {
	couponIDs, err := s.catalog.CouponIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list catalog: %w", err)
	}

	reclaimed := 0
	for _, couponID := range couponIDs {
		userIDs, err := s.store.ExpiredReservations(ctx, couponID)
		if err != nil {
			return reclaimed, fmt.Errorf("list expired reservations: %w", err)
		}
		for _, userID := range userIDs {
			committed, err := s.promoteIfCommitted(ctx, couponID, userID)
			if err != nil {
				return reclaimed, fmt.Errorf("sweep: %w", err)
			}
			if committed {
				continue
			}

			released, err := s.store.ReleaseExpired(ctx, couponID, userID)
			if err != nil {
				return reclaimed, fmt.Errorf("release expired reservation: %w", err)
			}
			if !released {
				continue
			}
			reclaimed++
			log.Warn().
				Int64("coupon_id", couponID).
				Int64("user_id", userID).
				Str("state", string(model.ClaimCompensated)).
				Msg("expired reservation reclaimed")
		}
	}
	return reclaimed, nil
}

// promoteIfCommitted moves the claim to issued when the ledger already
// recorded it, which happens when the commit landed but the store promotion
// kept failing. It reports whether the ledger held the issuance.
func (s *CompensationService) promoteIfCommitted(ctx context.Context, couponID, userID int64) (bool, error) {
	issued, err := s.ledger.IsIssued(ctx, userID, couponID)
	if err != nil {
		return false, fmt.Errorf("check ledger issuance: %w", err)
	}
	if !issued {
		return false, nil
	}

	retention := s.retention
	meta, err := s.catalog.Get(ctx, couponID)
	if err != nil {
		return false, fmt.Errorf("load coupon meta: %w", err)
	}
	if meta != nil {
		retention = keyRetention(meta.ValidTo, s.now(), s.retention)
	}

	if _, err := s.store.ConfirmIssued(ctx, couponID, userID, retention); err != nil {
		return false, fmt.Errorf("promote committed issuance: %w", err)
	}
	log.Warn().
		Int64("coupon_id", couponID).
		Int64("user_id", userID).
		Str("state", string(model.ClaimConfirmed)).
		Msg("ledger already holds the issuance, claim promoted instead of released")
	return true, nil
}
