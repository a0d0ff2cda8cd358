package model

import "time"

// ReserveOutcome is the result of an atomic admission attempt in the reservation store.
type ReserveOutcome string

const (
	ReserveReserved        ReserveOutcome = "RESERVED"
	ReserveSoldOut         ReserveOutcome = "SOLD_OUT"
	ReserveAlreadyIssued   ReserveOutcome = "ALREADY_ISSUED"
	ReserveAlreadyReserved ReserveOutcome = "ALREADY_RESERVED"
)

// ReserveResult carries the outcome and, when reserved, the admission sequence number.
type ReserveResult struct {
	Outcome        ReserveOutcome
	SequenceNumber int64
}

// ClaimState names the states a reservation claim moves through.
//
//	START -> RESERVED -> CONFIRMED | CANCELLED | COMPENSATED
//	RESERVED -> ALREADY_ISSUED (replay)
type ClaimState string

const (
	ClaimReserved      ClaimState = "RESERVED"
	ClaimConfirmed     ClaimState = "CONFIRMED"
	ClaimAlreadyIssued ClaimState = "ALREADY_ISSUED"
	ClaimCancelled     ClaimState = "CANCELLED"
	ClaimCompensated   ClaimState = "COMPENSATED"
)

// IssueStatus is what the gateway reports to the caller.
type IssueStatus string

const (
	IssueReserved      IssueStatus = "RESERVED"
	IssueSoldOut       IssueStatus = "SOLD_OUT"
	IssueAlreadyIssued IssueStatus = "ALREADY_ISSUED"
)

// IssueResult is the gateway decision for one request.
type IssueResult struct {
	Status         IssueStatus `json:"status"`
	SequenceNumber int64       `json:"sequence_number,omitempty"`
	RequestID      string      `json:"request_id,omitempty"`
}

// IssueCouponRequest is the DTO for POST /api/coupons/:couponId/issue
type IssueCouponRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// ConfirmationMessage is the payload published to the confirmation queue.
// It is keyed by CouponID so all requests for a coupon share a partition.
type ConfirmationMessage struct {
	CouponID    int64     `json:"couponId"`
	UserID      int64     `json:"userId"`
	RequestID   string    `json:"requestId"`
	RequestedAt time.Time `json:"requestedAt"`
}
