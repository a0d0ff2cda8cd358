package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/service"
	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/database"
)

// UserCouponPoolInterface defines the database operations needed by UserCouponRepository.
type UserCouponPoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserCouponRepository provides ledger access for issued user coupons using pgx.
type UserCouponRepository struct {
	pool UserCouponPoolInterface
}

// NewUserCouponRepository creates a new UserCouponRepository with the given pool.
func NewUserCouponRepository(pool *pgxpool.Pool) *UserCouponRepository {
	return &UserCouponRepository{pool: pool}
}

// NewUserCouponRepositoryWithPool creates a new UserCouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewUserCouponRepositoryWithPool(pool UserCouponPoolInterface) *UserCouponRepository {
	return &UserCouponRepository{pool: pool}
}

// Exists reports whether the user already holds the coupon.
func (r *UserCouponRepository) Exists(ctx context.Context, tx database.TxQuerier, userID, couponID int64) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_coupons WHERE user_id = $1 AND coupon_id = $2)`,
		userID, couponID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user coupon exists: %w", err)
	}
	return exists, nil
}

// IsIssued reports whether the ledger holds the user's coupon, outside any transaction.
func (r *UserCouponRepository) IsIssued(ctx context.Context, userID, couponID int64) (bool, error) {
	return r.Exists(ctx, r.pool, userID, couponID)
}

// Insert inserts a new user coupon within a transaction.
// Returns service.ErrAlreadyIssued if the user already holds this coupon.
func (r *UserCouponRepository) Insert(ctx context.Context, tx database.TxQuerier, uc *model.UserCoupon) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO user_coupons (user_id, coupon_id, status, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		uc.UserID, uc.CouponID, string(uc.Status), uc.IssuedAt, uc.ExpiresAt,
	).Scan(&uc.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrAlreadyIssued
		}
		return fmt.Errorf("insert user coupon: %w", err)
	}
	return nil
}

// ListByUser returns the user's coupons, newest first, optionally filtered by status.
// On success, returns an empty slice (not nil) when none exist.
func (r *UserCouponRepository) ListByUser(ctx context.Context, userID int64, status model.UserCouponStatus) ([]model.UserCoupon, error) {
	query := `SELECT id, user_id, coupon_id, status, issued_at, used_at, expires_at
		FROM user_coupons WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY issued_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user coupons for %d: %w", userID, err)
	}
	defer rows.Close()

	coupons := []model.UserCoupon{}
	for rows.Next() {
		var uc model.UserCoupon
		var s string
		if err := rows.Scan(&uc.ID, &uc.UserID, &uc.CouponID, &s, &uc.IssuedAt, &uc.UsedAt, &uc.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan user coupon: %w", err)
		}
		uc.Status = model.UserCouponStatus(s)
		coupons = append(coupons, uc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user coupon rows: %w", err)
	}
	return coupons, nil
}
