package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/service"
)

// IssuanceServiceInterface defines the admission gateway.
type IssuanceServiceInterface interface {
	RequestIssuance(ctx context.Context, couponID, userID int64) (*model.IssueResult, error)
}

// IssueHandler handles coupon issuance requests.
type IssueHandler struct {
	service   IssuanceServiceInterface
	validator *validator.Validate
}

// NewIssueHandler creates a new IssueHandler with the given service and validator.
func NewIssueHandler(svc IssuanceServiceInterface, v *validator.Validate) *IssueHandler {
	return &IssueHandler{service: svc, validator: v}
}

// IssueCoupon handles POST /api/coupons/:couponId/issue.
//
// A reservation is answered with 202 Accepted since the ledger write happens
// asynchronously. Sold out and duplicate requests are decisions, not errors,
// and are answered with 200.
func (h *IssueHandler) IssueCoupon(c *fiber.Ctx) error {
	couponID, ok := parseID(c, "couponId")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: coupon id must be a positive integer",
		})
	}

	var req model.IssueCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	res, err := h.service.RequestIssuance(c.Context(), couponID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		case errors.Is(err, service.ErrCouponNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "coupon not found"})
		case errors.Is(err, service.ErrCouponNotActive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "coupon is not active"})
		case errors.Is(err, service.ErrTransient):
			log.Warn().
				Err(err).
				Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
				Int64("coupon_id", couponID).
				Int64("user_id", req.UserID).
				Msg("issuance temporarily unavailable")
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "temporarily unavailable, try again"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Int64("coupon_id", couponID).
			Int64("user_id", req.UserID).
			Msg("failed to issue coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	status := fiber.StatusOK
	if res.Status == model.IssueReserved {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(res)
}
