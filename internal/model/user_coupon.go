package model

import "time"

// UserCouponStatus is the lifecycle state of an issued coupon.
type UserCouponStatus string

const (
	UserCouponAvailable UserCouponStatus = "AVAILABLE"
	UserCouponUsed      UserCouponStatus = "USED"
	UserCouponExpired   UserCouponStatus = "EXPIRED"
)

// Valid reports whether s is a known status.
func (s UserCouponStatus) Valid() bool {
	switch s {
	case UserCouponAvailable, UserCouponUsed, UserCouponExpired:
		return true
	}
	return false
}

// UserCoupon is a durable, confirmed issuance. At most one exists per (user, coupon).
type UserCoupon struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	CouponID  int64            `json:"coupon_id"`
	Status    UserCouponStatus `json:"status"`
	IssuedAt  time.Time        `json:"issued_at"`
	UsedAt    *time.Time       `json:"used_at,omitempty"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// UserCouponListResponse is the API response DTO for GET /api/users/:userId/coupons
type UserCouponListResponse struct {
	UserID  int64        `json:"user_id"`
	Coupons []UserCoupon `json:"coupons"`
}
