package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
)

// CouponService provides coupon management and lookup.
// Admission-critical data is mirrored into the reservation store catalog.
type CouponService struct {
	couponRepo     CouponRepositoryInterface
	userCouponRepo UserCouponRepositoryInterface
	store          ReservationStoreInterface
	catalog        CouponCatalogInterface
	now            func() time.Time
}

// NewCouponService creates a new CouponService with the given repositories and stores.
func NewCouponService(couponRepo CouponRepositoryInterface, userCouponRepo UserCouponRepositoryInterface, store ReservationStoreInterface, catalog CouponCatalogInterface) *CouponService {
	return &CouponService{
		couponRepo:     couponRepo,
		userCouponRepo: userCouponRepo,
		store:          store,
		catalog:        catalog,
		now:            time.Now,
	}
}

// Create creates a new coupon from the request and registers it for admission.
// Returns ErrCouponExists if the code is taken.
// Returns ErrInvalidRequest if request data is nil or incomplete.
func (s *CouponService) Create(ctx context.Context, req *model.CreateCouponRequest) (int64, error) {
	if req == nil || req.DiscountRate == nil || req.TotalQuantity == nil {
		return 0, ErrInvalidRequest
	}
	if *req.DiscountRate < 0 || *req.DiscountRate > 100 || *req.TotalQuantity < 1 {
		return 0, ErrInvalidRequest
	}
	if !req.ValidFrom.Before(req.ValidTo) {
		return 0, ErrInvalidRequest
	}

	coupon := &model.Coupon{
		Code:          strings.TrimSpace(req.Code),
		Name:          strings.TrimSpace(req.Name),
		DiscountRate:  *req.DiscountRate,
		TotalQuantity: *req.TotalQuantity,
		ValidFrom:     req.ValidFrom,
		ValidTo:       req.ValidTo,
	}
	id, err := s.couponRepo.Insert(ctx, coupon)
	if err != nil {
		return 0, err
	}
	coupon.ID = id

	// The ledger row is the source of truth; a missed catalog write is repaired by the next sync.
	if err := s.catalog.Put(ctx, metaOf(coupon)); err != nil {
		log.Error().Err(err).Int64("coupon_id", id).Msg("coupon created but not registered in catalog")
	}
	return id, nil
}

// Get retrieves a coupon with its current reservation occupancy.
// Returns ErrCouponNotFound if the coupon doesn't exist.
func (s *CouponService) Get(ctx context.Context, id int64) (*model.CouponResponse, error) {
	coupon, err := s.couponRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}

	reserved, _, err := s.store.Occupancy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get occupancy: %w", err)
	}

	return &model.CouponResponse{
		ID:                coupon.ID,
		Code:              coupon.Code,
		Name:              coupon.Name,
		DiscountRate:      coupon.DiscountRate,
		TotalQuantity:     coupon.TotalQuantity,
		IssuedQuantity:    coupon.IssuedQuantity,
		RemainingQuantity: coupon.RemainingQuantity(),
		PendingCount:      reserved,
		ValidFrom:         coupon.ValidFrom,
		ValidTo:           coupon.ValidTo,
	}, nil
}

// ListUserCoupons returns the coupons issued to a user, optionally filtered by status.
func (s *CouponService) ListUserCoupons(ctx context.Context, userID int64, status string) (*model.UserCouponListResponse, error) {
	if userID <= 0 {
		return nil, ErrInvalidRequest
	}
	filter := model.UserCouponStatus(strings.ToUpper(strings.TrimSpace(status)))
	if filter != "" && !filter.Valid() {
		return nil, ErrInvalidRequest
	}

	coupons, err := s.userCouponRepo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list user coupons: %w", err)
	}
	return &model.UserCouponListResponse{UserID: userID, Coupons: coupons}, nil
}

// catalogPruneGrace is how long an ended coupon stays in the catalog, so the
// sweeper still visits claims admitted just before the window closed.
const catalogPruneGrace = time.Hour

// SyncCatalog mirrors every coupon whose window has not ended into the catalog
// and drops coupons that ended more than catalogPruneGrace ago with no pending
// reservation. It returns the number of coupons registered.
func (s *CouponService) SyncCatalog(ctx context.Context) (int, error) {
	now := s.now()
	coupons, err := s.couponRepo.ListOpen(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list open coupons: %w", err)
	}

	open := make(map[int64]struct{}, len(coupons))
	for i := range coupons {
		if err := s.catalog.Put(ctx, metaOf(&coupons[i])); err != nil {
			return i, fmt.Errorf("sync coupon %d: %w", coupons[i].ID, err)
		}
		open[coupons[i].ID] = struct{}{}
	}

	pruned, err := s.pruneCatalog(ctx, open, now)
	if err != nil {
		return len(coupons), err
	}
	if pruned > 0 {
		log.Info().Int("pruned", pruned).Msg("ended coupons removed from catalog")
	}
	return len(coupons), nil
}

func (s *CouponService) pruneCatalog(ctx context.Context, open map[int64]struct{}, now time.Time) (int, error) {
	ids, err := s.catalog.CouponIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list catalog: %w", err)
	}

	pruned := 0
	for _, id := range ids {
		if _, ok := open[id]; ok {
			continue
		}
		meta, err := s.catalog.Get(ctx, id)
		if err != nil {
			return pruned, fmt.Errorf("load coupon meta %d: %w", id, err)
		}
		if meta != nil && meta.ValidTo.Add(catalogPruneGrace).After(now) {
			continue
		}
		reserved, _, err := s.store.Occupancy(ctx, id)
		if err != nil {
			return pruned, fmt.Errorf("occupancy for coupon %d: %w", id, err)
		}
		if reserved > 0 {
			continue
		}
		if err := s.catalog.Remove(ctx, id); err != nil {
			return pruned, fmt.Errorf("prune coupon %d: %w", id, err)
		}
		pruned++
	}
	return pruned, nil
}

func metaOf(c *model.Coupon) *model.CouponMeta {
	return &model.CouponMeta{
		CouponID:      c.ID,
		TotalQuantity: c.TotalQuantity,
		ValidFrom:     c.ValidFrom,
		ValidTo:       c.ValidTo,
	}
}
