package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pehlione.com/shop/internal/modules/orders"
)

func paidOrder(id, total, ref string) orders.Order {
	o := pendingOrder(id, total)
	o.Status = orders.StatusProcessing
	o.PaymentStatus = orders.PaymentPaid
	o.PaymentReference = &ref
	return o
}

func newRefundService(store RefundStore, gw Refunder) *RefundService {
	svc := NewRefundService(store, gw, 0)
	svc.SetLogger(discardLogger())
	return svc
}

func TestRefundOrder_RefundsAndCancels(t *testing.T) {
	store := newMemStore(paidOrder("ord-1", "100.00", "ref_1"))
	gw := &fakeGateway{refundResp: RefundResponse{RefundRef: "3018284", Status: "pending"}}

	res, err := newRefundService(store, gw).RefundOrder(context.Background(), RefundOrderInput{
		OrderID: "ord-1", ActorUserID: "admin-7", Reason: "damaged",
	})
	require.NoError(t, err)
	assert.False(t, res.Idempotent)
	assert.Equal(t, "3018284", res.RefundRef)
	assert.Equal(t, "100.00", res.Amount)

	o := store.order("ord-1")
	assert.Equal(t, orders.PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	require.Len(t, store.refunds, 1)
	assert.Equal(t, "admin-7", store.refunds[0].ActorUserID)
	assert.Equal(t, "damaged", store.refunds[0].Reason)
}

func TestRefundOrder_AlreadyRefundedIsIdempotent(t *testing.T) {
	o := paidOrder("ord-1", "100.00", "ref_1")
	o.PaymentStatus = orders.PaymentRefunded
	o.Status = orders.StatusCancelled
	store := newMemStore(o)
	gw := &fakeGateway{}

	res, err := newRefundService(store, gw).RefundOrder(context.Background(), RefundOrderInput{OrderID: "ord-1", ActorUserID: "admin"})
	require.NoError(t, err)
	assert.True(t, res.Idempotent)
	assert.Zero(t, gw.refundCalls)
}

func TestRefundOrder_NotRefundable(t *testing.T) {
	store := newMemStore(pendingOrder("ord-1", "100.00"))
	gw := &fakeGateway{}
	svc := newRefundService(store, gw)

	_, err := svc.RefundOrder(context.Background(), RefundOrderInput{OrderID: "ord-1", ActorUserID: "admin"})
	require.ErrorIs(t, err, ErrNotRefundable)

	_, err = svc.RefundOrder(context.Background(), RefundOrderInput{OrderID: "missing", ActorUserID: "admin"})
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Zero(t, gw.refundCalls)
}

func TestRefundOrder_GatewayFailureKeepsOrderPaid(t *testing.T) {
	store := newMemStore(paidOrder("ord-1", "100.00", "ref_1"))
	gw := &fakeGateway{refundErr: ErrGatewayDeclined}

	_, err := newRefundService(store, gw).RefundOrder(context.Background(), RefundOrderInput{OrderID: "ord-1", ActorUserID: "admin"})
	require.ErrorIs(t, err, ErrGatewayDeclined)
	assert.Equal(t, orders.PaymentPaid, store.order("ord-1").PaymentStatus)
	assert.Empty(t, store.refunds)
}

func TestRefundOrder_DeliveredStaysDelivered(t *testing.T) {
	o := paidOrder("ord-1", "100.00", "ref_1")
	o.Status = orders.StatusDelivered
	store := newMemStore(o)

	_, err := newRefundService(store, &fakeGateway{}).RefundOrder(context.Background(), RefundOrderInput{OrderID: "ord-1", ActorUserID: "admin"})
	require.NoError(t, err)
	got := store.order("ord-1")
	assert.Equal(t, orders.StatusDelivered, got.Status)
	assert.Equal(t, orders.PaymentRefunded, got.PaymentStatus)
}
