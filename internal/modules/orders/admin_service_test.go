package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pehlione.com/shop/internal/testutil"
)

func statusPtr(s Status) *Status { return &s }
func strPtr(s string) *string    { return &s }

func TestAdminUpdate_Status(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewAdminService(db)
	ctx := context.Background()
	o := newOrder(t, db, "buyer@example.com", "10.00")

	got, err := svc.Update(ctx, UpdateInput{OrderID: o.ID, ActorUserID: "admin-1", Status: statusPtr(StatusProcessing)})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, PaymentPending, got.PaymentStatus, "admin updates never touch payment fields")
	assert.EqualValues(t, 1, count(t, db, &OrderEvent{}, "order_id = ? AND action = ? AND actor_user_id = ?", o.ID, "status", "admin-1"))

	_, err = svc.Update(ctx, UpdateInput{OrderID: o.ID, ActorUserID: "admin-1", Status: statusPtr(StatusPending)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Update(ctx, UpdateInput{OrderID: o.ID, ActorUserID: "admin-1", Status: statusPtr("teleported")})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdminUpdate_TerminalOrder(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewAdminService(db)
	ctx := context.Background()
	o := newOrder(t, db, "buyer@example.com", "10.00")

	_, err := svc.Update(ctx, UpdateInput{OrderID: o.ID, ActorUserID: "admin", Status: statusPtr(StatusCancelled)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdateInput{OrderID: o.ID, ActorUserID: "admin", Status: statusPtr(StatusProcessing)})
	assert.ErrorIs(t, err, ErrTerminal)

	// notes stay editable on a terminal order
	got, err := svc.Update(ctx, UpdateInput{OrderID: o.ID, ActorUserID: "admin", Notes: strPtr("  called the customer ")})
	require.NoError(t, err)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "called the customer", *got.Notes)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestAdminUpdate_ClearNotes(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewAdminService(db)
	ctx := context.Background()
	o := newOrder(t, db, "buyer@example.com", "10.00")

	_, err := svc.Update(ctx, UpdateInput{OrderID: o.ID, ActorUserID: "admin", Notes: strPtr("gift wrap")})
	require.NoError(t, err)
	got, err := svc.Update(ctx, UpdateInput{OrderID: o.ID, ActorUserID: "admin", Notes: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, got.Notes)
}

func TestAdminUpdate_BadInput(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewAdminService(db)
	ctx := context.Background()

	_, err := svc.Update(ctx, UpdateInput{OrderID: "x", ActorUserID: "admin"})
	assert.ErrorIs(t, err, ErrNothingToUpdate)
	_, err = svc.Update(ctx, UpdateInput{OrderID: "missing", ActorUserID: "admin", Notes: strPtr("n")})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, UpdateInput{OrderID: "x", Notes: strPtr("n")})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestAdminDelete(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewAdminService(db)
	repo := NewRepo(db)
	ctx := context.Background()

	unpaid := newOrder(t, db, "a@example.com", "10.00")
	require.NoError(t, svc.Delete(ctx, unpaid.ID))
	_, err := repo.Get(ctx, unpaid.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, count(t, db, &OrderEvent{}, "order_id = ?", unpaid.ID))

	paid := newOrder(t, db, "b@example.com", "10.00")
	ok, err := repo.CommitPayment(ctx, payCommit(paid, "ref_b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.ErrorIs(t, svc.Delete(ctx, paid.ID), ErrPaidNotDeletable)
	_, err = repo.Get(ctx, paid.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, ""), ErrInvalidOrder)
}
