package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
)

// All keys of one coupon share the {id} hash tag so every script touches a single cluster slot.
func sequenceKey(couponID int64) string     { return fmt.Sprintf("coupon:{%d}:sequence", couponID) }
func reservationsKey(couponID int64) string { return fmt.Sprintf("coupon:{%d}:reservations", couponID) }
func issuedKey(couponID int64) string       { return fmt.Sprintf("coupon:{%d}:issued", couponID) }

func markerKey(couponID, userID int64) string {
	return fmt.Sprintf("coupon:{%d}:reservation:%d", couponID, userID)
}

func claimKeys(couponID, userID int64) []string {
	return []string{
		reservationsKey(couponID),
		issuedKey(couponID),
		sequenceKey(couponID),
		markerKey(couponID, userID),
	}
}

const (
	reserveCodeReserved        = 1
	reserveCodeSoldOut         = 2
	reserveCodeAlreadyIssued   = 3
	reserveCodeAlreadyReserved = 4
)

// KEYS: reservations, issued, sequence, marker
// ARGV: userId, capacity, reservation ttl (ms), retention (ms)
var reserveScript = redis.NewScript(`
local user = ARGV[1]
if redis.call('SISMEMBER', KEYS[2], user) == 1 then
	return {3, 0}
end
if redis.call('SISMEMBER', KEYS[1], user) == 1 then
	return {4, 0}
end

local capacity = tonumber(ARGV[2])
local occupied = redis.call('SCARD', KEYS[1]) + redis.call('SCARD', KEYS[2])
if occupied >= capacity then
	return {2, 0}
end

redis.call('SADD', KEYS[1], user)
local seq = redis.call('INCR', KEYS[3])
redis.call('SET', KEYS[4], tostring(seq), 'PX', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
redis.call('PEXPIRE', KEYS[3], ARGV[4])
return {1, seq}
`)

// KEYS: reservations, issued, sequence, marker
// ARGV: userId, retention (ms)
// Returns 1 when a reservation was promoted or the user was already issued,
// 0 when no reservation existed and the issuance was recorded late.
var confirmScript = redis.NewScript(`
local user = ARGV[1]
if redis.call('SISMEMBER', KEYS[2], user) == 1 then
	return 1
end

local reserved = redis.call('SREM', KEYS[1], user)
redis.call('DEL', KEYS[4])
redis.call('SADD', KEYS[2], user)
redis.call('PEXPIRE', KEYS[2], ARGV[2])
if reserved == 0 then
	redis.call('INCR', KEYS[3])
	redis.call('PEXPIRE', KEYS[3], ARGV[2])
	return 0
end
return 1
`)

// KEYS: reservations, issued, sequence, marker
// ARGV: userId, onlyExpired ("1" skips claims whose marker is still alive)
// Returns 1 when a reservation was released, 0 otherwise.
var releaseScript = redis.NewScript(`
local user = ARGV[1]
if redis.call('SISMEMBER', KEYS[2], user) == 1 then
	return 0
end
if ARGV[2] == '1' and redis.call('EXISTS', KEYS[4]) == 1 then
	return 0
end
if redis.call('SREM', KEYS[1], user) == 0 then
	return 0
end

redis.call('DEL', KEYS[4])
local seq = tonumber(redis.call('GET', KEYS[3]) or '0')
if seq > 0 then
	redis.call('DECR', KEYS[3])
end
return 1
`)

// ReservationStore is the fast admission-control store backed by Redis.
// It is the only component that mutates reservation keys.
type ReservationStore struct {
	client redis.UniversalClient
}

// NewReservationStore creates a new ReservationStore with the given client.
func NewReservationStore(client redis.UniversalClient) *ReservationStore {
	return &ReservationStore{client: client}
}

// Reserve atomically claims one unit of couponID for userID.
// Occupancy counts both pending reservations and confirmed issuances against capacity.
func (s *ReservationStore) Reserve(ctx context.Context, couponID, userID int64, capacity int, ttl, retention time.Duration) (*model.ReserveResult, error) {
	res, err := reserveScript.Run(ctx, s.client, claimKeys(couponID, userID),
		userID, capacity, ttl.Milliseconds(), retention.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("reserve coupon %d for user %d: %w", couponID, userID, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("reserve coupon %d for user %d: unexpected script reply %v", couponID, userID, res)
	}

	switch res[0] {
	case reserveCodeReserved:
		return &model.ReserveResult{Outcome: model.ReserveReserved, SequenceNumber: res[1]}, nil
	case reserveCodeSoldOut:
		return &model.ReserveResult{Outcome: model.ReserveSoldOut}, nil
	case reserveCodeAlreadyIssued:
		return &model.ReserveResult{Outcome: model.ReserveAlreadyIssued}, nil
	case reserveCodeAlreadyReserved:
		return &model.ReserveResult{Outcome: model.ReserveAlreadyReserved}, nil
	default:
		return nil, fmt.Errorf("reserve coupon %d for user %d: unknown outcome code %d", couponID, userID, res[0])
	}
}

// ConfirmIssued promotes the user's reservation to issued. Idempotent.
// It returns false when no reservation was found (the issuance is still recorded).
func (s *ReservationStore) ConfirmIssued(ctx context.Context, couponID, userID int64, retention time.Duration) (bool, error) {
	n, err := confirmScript.Run(ctx, s.client, claimKeys(couponID, userID),
		userID, retention.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("confirm issued coupon %d for user %d: %w", couponID, userID, err)
	}
	return n == 1, nil
}

// CancelReservation releases a reservation the ledger refused. No-op for issued users.
func (s *ReservationStore) CancelReservation(ctx context.Context, couponID, userID int64) (bool, error) {
	released, err := s.release(ctx, couponID, userID, false)
	if err != nil {
		return false, fmt.Errorf("cancel reservation coupon %d for user %d: %w", couponID, userID, err)
	}
	return released, nil
}

// CompensateReservation reclaims capacity after a permanent confirmation failure.
// Idempotent, and a no-op once the user has been confirmed.
func (s *ReservationStore) CompensateReservation(ctx context.Context, couponID, userID int64) (bool, error) {
	released, err := s.release(ctx, couponID, userID, false)
	if err != nil {
		return false, fmt.Errorf("compensate reservation coupon %d for user %d: %w", couponID, userID, err)
	}
	return released, nil
}

// ReleaseExpired reclaims the reservation only if its TTL marker is gone.
func (s *ReservationStore) ReleaseExpired(ctx context.Context, couponID, userID int64) (bool, error) {
	released, err := s.release(ctx, couponID, userID, true)
	if err != nil {
		return false, fmt.Errorf("release expired reservation coupon %d for user %d: %w", couponID, userID, err)
	}
	return released, nil
}

func (s *ReservationStore) release(ctx context.Context, couponID, userID int64, onlyExpired bool) (bool, error) {
	flag := "0"
	if onlyExpired {
		flag = "1"
	}
	n, err := releaseScript.Run(ctx, s.client, claimKeys(couponID, userID), userID, flag).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpiredReservations lists users holding a reservation whose TTL marker has expired.
func (s *ReservationStore) ExpiredReservations(ctx context.Context, couponID int64) ([]int64, error) {
	members, err := s.client.SMembers(ctx, reservationsKey(couponID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list reservations for coupon %d: %w", couponID, err)
	}
	if len(members) == 0 {
		return []int64{}, nil
	}

	userIDs := make([]int64, 0, len(members))
	cmds := make([]*redis.IntCmd, 0, len(members))
	pipe := s.client.Pipeline()
	for _, m := range members {
		userID, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		userIDs = append(userIDs, userID)
		cmds = append(cmds, pipe.Exists(ctx, markerKey(couponID, userID)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("check reservation markers for coupon %d: %w", couponID, err)
	}

	expired := []int64{}
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			expired = append(expired, userIDs[i])
		}
	}
	return expired, nil
}

// Occupancy returns the number of pending reservations and confirmed issuances.
func (s *ReservationStore) Occupancy(ctx context.Context, couponID int64) (reserved, issued int64, err error) {
	pipe := s.client.Pipeline()
	reservedCmd := pipe.SCard(ctx, reservationsKey(couponID))
	issuedCmd := pipe.SCard(ctx, issuedKey(couponID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("occupancy for coupon %d: %w", couponID, err)
	}
	return reservedCmd.Val(), issuedCmd.Val(), nil
}

// Sequence returns the current value of the coupon's sequence counter.
func (s *ReservationStore) Sequence(ctx context.Context, couponID int64) (int64, error) {
	n, err := s.client.Get(ctx, sequenceKey(couponID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("sequence for coupon %d: %w", couponID, err)
	}
	return n, nil
}

// Ping checks connectivity to Redis.
func (s *ReservationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
