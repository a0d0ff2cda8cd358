package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/database"
)

// CouponRepositoryInterface defines the interface for coupon ledger access.
type CouponRepositoryInterface interface {
	Insert(ctx context.Context, coupon *model.Coupon) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Coupon, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Coupon, error)
	IncrementIssued(ctx context.Context, tx database.TxQuerier, id, version int64) error
	ListOpen(ctx context.Context, now time.Time) ([]model.Coupon, error)
}

// UserCouponRepositoryInterface defines the interface for issued user coupon access.
type UserCouponRepositoryInterface interface {
	Exists(ctx context.Context, tx database.TxQuerier, userID, couponID int64) (bool, error)
	Insert(ctx context.Context, tx database.TxQuerier, uc *model.UserCoupon) error
	ListByUser(ctx context.Context, userID int64, status model.UserCouponStatus) ([]model.UserCoupon, error)
}

// IssuanceLedger answers whether the ledger has committed an issuance.
type IssuanceLedger interface {
	IsIssued(ctx context.Context, userID, couponID int64) (bool, error)
}

// ReservationStoreInterface defines the fast reservation store operations.
type ReservationStoreInterface interface {
	Reserve(ctx context.Context, couponID, userID int64, capacity int, ttl, retention time.Duration) (*model.ReserveResult, error)
	ConfirmIssued(ctx context.Context, couponID, userID int64, retention time.Duration) (bool, error)
	CancelReservation(ctx context.Context, couponID, userID int64) (bool, error)
	CompensateReservation(ctx context.Context, couponID, userID int64) (bool, error)
	ReleaseExpired(ctx context.Context, couponID, userID int64) (bool, error)
	ExpiredReservations(ctx context.Context, couponID int64) ([]int64, error)
	Occupancy(ctx context.Context, couponID int64) (reserved, issued int64, err error)
}

// CouponCatalogInterface defines access to the admission metadata cache.
type CouponCatalogInterface interface {
	Put(ctx context.Context, meta *model.CouponMeta) error
	Get(ctx context.Context, couponID int64) (*model.CouponMeta, error)
	CouponIDs(ctx context.Context) ([]int64, error)
	Remove(ctx context.Context, couponID int64) error
}

// ConfirmationPublisher enqueues a reserved claim for durable confirmation.
type ConfirmationPublisher interface {
	Publish(ctx context.Context, msg *model.ConfirmationMessage) error
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
