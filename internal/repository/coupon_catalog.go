package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
)

const catalogKey = "coupon:catalog"

func metaKey(couponID int64) string { return fmt.Sprintf("coupon:{%d}:meta", couponID) }

// CouponCatalog keeps the capacity and validity window of each coupon in Redis
// so admission never reads the ledger.
type CouponCatalog struct {
	client redis.UniversalClient
}

// NewCouponCatalog creates a new CouponCatalog with the given client.
func NewCouponCatalog(client redis.UniversalClient) *CouponCatalog {
	return &CouponCatalog{client: client}
}

// Put registers or refreshes a coupon's admission metadata.
func (c *CouponCatalog) Put(ctx context.Context, meta *model.CouponMeta) error {
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, metaKey(meta.CouponID), map[string]any{
		"total_quantity": meta.TotalQuantity,
		"valid_from":     meta.ValidFrom.UnixMilli(),
		"valid_to":       meta.ValidTo.UnixMilli(),
	})
	pipe.SAdd(ctx, catalogKey, meta.CouponID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put catalog meta for coupon %d: %w", meta.CouponID, err)
	}
	return nil
}

// Get returns the coupon's admission metadata.
// Returns nil, nil if the coupon is not registered (service layer handles this).
func (c *CouponCatalog) Get(ctx context.Context, couponID int64) (*model.CouponMeta, error) {
	fields, err := c.client.HGetAll(ctx, metaKey(couponID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get catalog meta for coupon %d: %w", couponID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	total, err := strconv.Atoi(fields["total_quantity"])
	if err != nil {
		return nil, fmt.Errorf("parse total_quantity for coupon %d: %w", couponID, err)
	}
	from, err := strconv.ParseInt(fields["valid_from"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse valid_from for coupon %d: %w", couponID, err)
	}
	to, err := strconv.ParseInt(fields["valid_to"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse valid_to for coupon %d: %w", couponID, err)
	}

	return &model.CouponMeta{
		CouponID:      couponID,
		TotalQuantity: total,
		ValidFrom:     time.UnixMilli(from),
		ValidTo:       time.UnixMilli(to),
	}, nil
}

// Remove drops the coupon from the catalog set. Its meta hash stays so the
// gateway keeps answering "not active" rather than "not found".
func (c *CouponCatalog) Remove(ctx context.Context, couponID int64) error {
	if err := c.client.SRem(ctx, catalogKey, couponID).Err(); err != nil {
		return fmt.Errorf("remove coupon %d from catalog: %w", couponID, err)
	}
	return nil
}

// CouponIDs lists every registered coupon.
func (c *CouponCatalog) CouponIDs(ctx context.Context) ([]int64, error) {
	members, err := c.client.SMembers(ctx, catalogKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
