package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/model"
)

func TestPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client)
	requestedAt := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), &model.ConfirmationMessage{
		CouponID:    3,
		UserID:      1001,
		RequestID:   "req-1",
		RequestedAt: requestedAt,
	})

	require.NoError(t, err)
	require.Len(t, client.produced, 1)
	r := client.produced[0]
	assert.Equal(t, TopicIssueRequested, r.Topic)
	assert.Equal(t, []byte("3"), r.Key)
	assert.Equal(t, "req-1", Header(r, HeaderRequestID))
	assert.JSONEq(t, `{"couponId":3,"userId":1001,"requestId":"req-1","requestedAt":"2026-10-14T10:00:00Z"}`, string(r.Value))

	msg, err := DecodeConfirmation(r)
	require.NoError(t, err)
	assert.Equal(t, int64(3), msg.CouponID)
	assert.Equal(t, int64(1001), msg.UserID)
	assert.True(t, requestedAt.Equal(msg.RequestedAt))
}

func TestPublisher_Publish_ProduceError(t *testing.T) {
	client := &fakeClient{produceErrs: []error{errors.New("not enough replicas")}}
	pub := NewPublisher(client)

	err := pub.Publish(context.Background(), &model.ConfirmationMessage{CouponID: 3, UserID: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "produce to coupon-issue-requested")
}

func TestCouponKey_SameCouponSameKey(t *testing.T) {
	assert.Equal(t, CouponKey(42), CouponKey(42))
	assert.NotEqual(t, CouponKey(42), CouponKey(43))
}

func TestDecodeConfirmation_Malformed(t *testing.T) {
	_, err := DecodeConfirmation(&kgo.Record{Topic: TopicIssueRequested, Partition: 2, Offset: 9, Value: []byte("{")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "coupon-issue-requested/2@9")
}

func TestHeader_Missing(t *testing.T) {
	assert.Empty(t, Header(&kgo.Record{}, HeaderError))
}
