package model

import "time"

// Coupon represents a coupon campaign in the ledger.
// IssuedQuantity never exceeds TotalQuantity; TotalQuantity is fixed at creation.
type Coupon struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	DiscountRate   int       `json:"discount_rate"`
	TotalQuantity  int       `json:"total_quantity"`
	IssuedQuantity int       `json:"issued_quantity"`
	ValidFrom      time.Time `json:"valid_from"`
	ValidTo        time.Time `json:"valid_to"`
	Version        int64     `json:"-"`
	CreatedAt      time.Time `json:"-"` // Not exposed in API
}

// RemainingQuantity returns how many units the ledger can still confirm.
func (c *Coupon) RemainingQuantity() int {
	if c.IssuedQuantity >= c.TotalQuantity {
		return 0
	}
	return c.TotalQuantity - c.IssuedQuantity
}

// IsActiveAt reports whether t falls inside the coupon validity window.
func (c *Coupon) IsActiveAt(t time.Time) bool {
	return !t.Before(c.ValidFrom) && t.Before(c.ValidTo)
}

// CouponMeta is the slice of a coupon the admission path needs.
// It lives in the reservation store so the gateway never reads the ledger.
type CouponMeta struct {
	CouponID      int64
	TotalQuantity int
	ValidFrom     time.Time
	ValidTo       time.Time
}

// IsActiveAt reports whether t falls inside the validity window.
func (m *CouponMeta) IsActiveAt(t time.Time) bool {
	return !t.Before(m.ValidFrom) && t.Before(m.ValidTo)
}

// CouponResponse is the API response DTO for GET /api/coupons/:couponId
type CouponResponse struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	DiscountRate      int       `json:"discount_rate"`
	TotalQuantity     int       `json:"total_quantity"`
	IssuedQuantity    int       `json:"issued_quantity"`
	RemainingQuantity int       `json:"remaining_quantity"`
	PendingCount      int64     `json:"pending_reservations"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidTo           time.Time `json:"valid_to"`
}

// CreateCouponRequest is the DTO for creating a coupon
type CreateCouponRequest struct {
	Code          string    `json:"code" validate:"required,notblank,max=64,couponcode"`
	Name          string    `json:"name" validate:"required,notblank,max=255"`
	DiscountRate  *int      `json:"discount_rate" validate:"required,gte=0,lte=100"`
	TotalQuantity *int      `json:"total_quantity" validate:"required,gte=1"`
	ValidFrom     time.Time `json:"valid_from" validate:"required"`
	ValidTo       time.Time `json:"valid_to" validate:"required,gtfield=ValidFrom"`
}

// CreateCouponResponse is returned after a coupon has been created.
type CreateCouponResponse struct {
	ID int64 `json:"id"`
}
