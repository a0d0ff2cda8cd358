package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/service"
)

// CouponServiceInterface defines the interface for coupon business logic.
type CouponServiceInterface interface {
	Create(ctx context.Context, req *model.CreateCouponRequest) (int64, error)
	Get(ctx context.Context, id int64) (*model.CouponResponse, error)
	ListUserCoupons(ctx context.Context, userID int64, status string) (*model.UserCouponListResponse, error)
}

// CouponHandler handles HTTP requests for coupon operations.
type CouponHandler struct {
	service   CouponServiceInterface
	validator *validator.Validate
}

// NewCouponHandler creates a new CouponHandler with the given service and validator.
func NewCouponHandler(svc CouponServiceInterface, v *validator.Validate) *CouponHandler {
	return &CouponHandler{service: svc, validator: v}
}

// formatValidationError converts validator errors to client-facing messages.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "Code", "Name":
				name := "code"
				if field == "Name" {
					name = "name"
				}
				switch tag {
				case "required":
					return "invalid request: " + name + " is required"
				case "notblank":
					return "invalid request: " + name + " cannot be whitespace only"
				case "max":
					return "invalid request: " + name + " exceeds maximum length of " + fe.Param()
				case "couponcode":
					return "invalid request: code may only contain letters, digits, '-' and '_'"
				}
				return "invalid request: " + name + " is invalid"
			case "DiscountRate":
				if tag == "required" {
					return "invalid request: discount_rate is required"
				}
				return "invalid request: discount_rate must be between 0 and 100"
			case "TotalQuantity":
				if tag == "required" {
					return "invalid request: total_quantity is required"
				}
				if tag == "gte" {
					return "invalid request: total_quantity must be at least 1"
				}
				return "invalid request: total_quantity is invalid"
			case "ValidFrom":
				return "invalid request: valid_from is required"
			case "ValidTo":
				if tag == "gtfield" {
					return "invalid request: valid_to must be after valid_from"
				}
				return "invalid request: valid_to is required"
			case "UserID":
				if tag == "required" {
					return "invalid request: user_id is required"
				}
				return "invalid request: user_id must be positive"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// parseID reads a positive int64 path parameter.
func parseID(c *fiber.Ctx, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CreateCoupon handles POST /api/coupons requests to create a new coupon.
func (h *CouponHandler) CreateCoupon(c *fiber.Ctx) error {
	var req model.CreateCouponRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	id, err := h.service.Create(c.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrCouponExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "coupon already exists"})
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		log.Error().Err(err).Str("coupon_code", req.Code).Msg("failed to create coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().Int64("coupon_id", id).Str("coupon_code", req.Code).Msg("coupon created")
	return c.Status(fiber.StatusCreated).JSON(model.CreateCouponResponse{ID: id})
}

// GetCoupon handles GET /api/coupons/:couponId requests to retrieve coupon details.
func (h *CouponHandler) GetCoupon(c *fiber.Ctx) error {
	id, ok := parseID(c, "couponId")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: coupon id must be a positive integer",
		})
	}

	coupon, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCouponNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "coupon not found",
			})
		}
		log.Error().Err(err).Int64("coupon_id", id).Msg("failed to get coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(coupon)
}

// ListUserCoupons handles GET /api/users/:userId/coupons?status= requests.
func (h *CouponHandler) ListUserCoupons(c *fiber.Ctx) error {
	userID, ok := parseID(c, "userId")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: user id must be a positive integer",
		})
	}

	resp, err := h.service.ListUserCoupons(c.Context(), userID, c.Query("status"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request: status must be one of AVAILABLE, USED, EXPIRED",
			})
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to list user coupons")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(resp)
}
