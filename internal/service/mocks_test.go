package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/database"
)

// mockCouponRepository is a mock implementation of CouponRepositoryInterface.
type mockCouponRepository struct {
	insertFn          func(ctx context.Context, coupon *model.Coupon) (int64, error)
	getByIDFn         func(ctx context.Context, id int64) (*model.Coupon, error)
	getForUpdateFn    func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Coupon, error)
	incrementIssuedFn func(ctx context.Context, tx database.TxQuerier, id, version int64) error
	listOpenFn        func(ctx context.Context, now time.Time) ([]model.Coupon, error)
}

func (m *mockCouponRepository) Insert(ctx context.Context, coupon *model.Coupon) (int64, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, coupon)
	}
	return 1, nil
}

func (m *mockCouponRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCouponRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Coupon, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, id)
	}
	return nil, ErrCouponNotFound
}

func (m *mockCouponRepository) IncrementIssued(ctx context.Context, tx database.TxQuerier, id, version int64) error {
	if m.incrementIssuedFn != nil {
		return m.incrementIssuedFn(ctx, tx, id, version)
	}
	return nil
}

func (m *mockCouponRepository) ListOpen(ctx context.Context, now time.Time) ([]model.Coupon, error) {
	if m.listOpenFn != nil {
		return m.listOpenFn(ctx, now)
	}
	return []model.Coupon{}, nil
}

// mockUserCouponRepository is a mock implementation of UserCouponRepositoryInterface.
type mockUserCouponRepository struct {
	existsFn     func(ctx context.Context, tx database.TxQuerier, userID, couponID int64) (bool, error)
	insertFn     func(ctx context.Context, tx database.TxQuerier, uc *model.UserCoupon) error
	listByUserFn func(ctx context.Context, userID int64, status model.UserCouponStatus) ([]model.UserCoupon, error)
}

func (m *mockUserCouponRepository) Exists(ctx context.Context, tx database.TxQuerier, userID, couponID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, tx, userID, couponID)
	}
	return false, nil
}

func (m *mockUserCouponRepository) Insert(ctx context.Context, tx database.TxQuerier, uc *model.UserCoupon) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, uc)
	}
	return nil
}

func (m *mockUserCouponRepository) ListByUser(ctx context.Context, userID int64, status model.UserCouponStatus) ([]model.UserCoupon, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, status)
	}
	return []model.UserCoupon{}, nil
}

// mockReservationStore is a mock implementation of ReservationStoreInterface.
type mockReservationStore struct {
	reserveFn             func(ctx context.Context, couponID, userID int64, capacity int, ttl, retention time.Duration) (*model.ReserveResult, error)
	confirmIssuedFn       func(ctx context.Context, couponID, userID int64, retention time.Duration) (bool, error)
	cancelReservationFn   func(ctx context.Context, couponID, userID int64) (bool, error)
	compensateFn          func(ctx context.Context, couponID, userID int64) (bool, error)
	releaseExpiredFn      func(ctx context.Context, couponID, userID int64) (bool, error)
	expiredReservationsFn func(ctx context.Context, couponID int64) ([]int64, error)
	occupancyFn           func(ctx context.Context, couponID int64) (int64, int64, error)
}

func (m *mockReservationStore) Reserve(ctx context.Context, couponID, userID int64, capacity int, ttl, retention time.Duration) (*model.ReserveResult, error) {
	if m.reserveFn != nil {
		return m.reserveFn(ctx, couponID, userID, capacity, ttl, retention)
	}
	return &model.ReserveResult{Outcome: model.ReserveReserved, SequenceNumber: 1}, nil
}

func (m *mockReservationStore) ConfirmIssued(ctx context.Context, couponID, userID int64, retention time.Duration) (bool, error) {
	if m.confirmIssuedFn != nil {
		return m.confirmIssuedFn(ctx, couponID, userID, retention)
	}
	return true, nil
}

func (m *mockReservationStore) CancelReservation(ctx context.Context, couponID, userID int64) (bool, error) {
	if m.cancelReservationFn != nil {
		return m.cancelReservationFn(ctx, couponID, userID)
	}
	return true, nil
}

func (m *mockReservationStore) CompensateReservation(ctx context.Context, couponID, userID int64) (bool, error) {
	if m.compensateFn != nil {
		return m.compensateFn(ctx, couponID, userID)
	}
	return true, nil
}

func (m *mockReservationStore) ReleaseExpired(ctx context.Context, couponID, userID int64) (bool, error) {
	if m.releaseExpiredFn != nil {
		return m.releaseExpiredFn(ctx, couponID, userID)
	}
	return true, nil
}

func (m *mockReservationStore) ExpiredReservations(ctx context.Context, couponID int64) ([]int64, error) {
	if m.expiredReservationsFn != nil {
		return m.expiredReservationsFn(ctx, couponID)
	}
	return []int64{}, nil
}

func (m *mockReservationStore) Occupancy(ctx context.Context, couponID int64) (int64, int64, error) {
	if m.occupancyFn != nil {
		return m.occupancyFn(ctx, couponID)
	}
	return 0, 0, nil
}

// mockCatalog is a mock implementation of CouponCatalogInterface.
type mockCatalog struct {
	putFn       func(ctx context.Context, meta *model.CouponMeta) error
	getFn       func(ctx context.Context, couponID int64) (*model.CouponMeta, error)
	couponIDsFn func(ctx context.Context) ([]int64, error)
	removeFn    func(ctx context.Context, couponID int64) error
}

func (m *mockCatalog) Put(ctx context.Context, meta *model.CouponMeta) error {
	if m.putFn != nil {
		return m.putFn(ctx, meta)
	}
	return nil
}

func (m *mockCatalog) Get(ctx context.Context, couponID int64) (*model.CouponMeta, error) {
	if m.getFn != nil {
		return m.getFn(ctx, couponID)
	}
	return nil, nil
}

func (m *mockCatalog) CouponIDs(ctx context.Context) ([]int64, error) {
	if m.couponIDsFn != nil {
		return m.couponIDsFn(ctx)
	}
	return []int64{}, nil
}

func (m *mockCatalog) Remove(ctx context.Context, couponID int64) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, couponID)
	}
	return nil
}

// mockLedger is a mock implementation of IssuanceLedger.
type mockLedger struct {
	isIssuedFn func(ctx context.Context, userID, couponID int64) (bool, error)
}

func (m *mockLedger) IsIssued(ctx context.Context, userID, couponID int64) (bool, error) {
	if m.isIssuedFn != nil {
		return m.isIssuedFn(ctx, userID, couponID)
	}
	return false, nil
}

// mockPublisher is a mock implementation of ConfirmationPublisher.
type mockPublisher struct {
	publishFn func(ctx context.Context, msg *model.ConfirmationMessage) error
}

func (m *mockPublisher) Publish(ctx context.Context, msg *model.ConfirmationMessage) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, msg)
	}
	return nil
}

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
	committed  bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

func intPtr(i int) *int {
	return &i
}
