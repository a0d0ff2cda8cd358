package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/service"
	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const couponColumns = `id, code, name, discount_rate, total_quantity, issued_quantity, version, valid_from, valid_to, created_at`

// CouponRepository provides ledger access for coupons using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Name,
		&c.DiscountRate,
		&c.TotalQuantity,
		&c.IssuedQuantity,
		&c.Version,
		&c.ValidFrom,
		&c.ValidTo,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Insert inserts a new coupon and returns its id.
// Returns service.ErrCouponExists if the code is already taken.
func (r *CouponRepository) Insert(ctx context.Context, coupon *model.Coupon) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (code, name, discount_rate, total_quantity, issued_quantity, valid_from, valid_to)
		 VALUES ($1, $2, $3, $4, 0, $5, $6) RETURNING id`,
		coupon.Code, coupon.Name, coupon.DiscountRate, coupon.TotalQuantity, coupon.ValidFrom, coupon.ValidTo,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, service.ErrCouponExists
		}
		return 0, fmt.Errorf("insert coupon: %w", err)
	}
	return id, nil
}

// GetByID retrieves a coupon by its id.
// Returns nil, nil if the coupon is not found (service layer handles this).
func (r *CouponRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	coupon, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by id %d: %w", id, err)
	}
	return coupon, nil
}

// GetForUpdate retrieves a coupon with a row lock (SELECT FOR UPDATE).
// The lock is held until the transaction completes.
// Returns service.ErrCouponNotFound if the coupon doesn't exist.
func (r *CouponRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Coupon, error) {
	coupon, err := scanCoupon(tx.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon for update %d: %w", id, err)
	}
	return coupon, nil
}

// IncrementIssued bumps issued_quantity by one under the optimistic version guard.
// Returns service.ErrVersionConflict when the version moved or capacity is exhausted.
func (r *CouponRepository) IncrementIssued(ctx context.Context, tx database.TxQuerier, id, version int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE coupons
		 SET issued_quantity = issued_quantity + 1, version = version + 1
		 WHERE id = $1 AND version = $2 AND issued_quantity < total_quantity`,
		id, version)
	if err != nil {
		return fmt.Errorf("increment issued for %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrVersionConflict
	}
	return nil
}

// ListOpen returns every coupon whose validity window has not ended at now.
// On success, returns an empty slice (not nil) when none exist.
func (r *CouponRepository) ListOpen(ctx context.Context, now time.Time) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE valid_to > $1 ORDER BY id`, now)
	if err != nil {
		return nil, fmt.Errorf("list open coupons: %w", err)
	}
	defer rows.Close()

	coupons := []model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupon rows: %w", err)
	}
	return coupons, nil
}
