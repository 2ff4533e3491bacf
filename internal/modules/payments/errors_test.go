package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"pehlione.com/shop/internal/modules/orders"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{ErrInvalidSignature, ClassAuth},
		{ErrMalformedEvent, ClassValidation},
		{ErrMissingMetadata, ClassValidation},
		{ErrOrderNotFound, ClassNotFound},
		{orders.ErrNotFound, ClassNotFound},
		{ErrOrderTerminal, ClassConflict},
		{ErrPaidOtherReference, ClassConflict},
		{ErrOrderNotPayable, ClassConflict},
		{ErrNotRefundable, ClassConflict},
		{orders.ErrReferenceInUse, ClassConflict},
		{ErrPaymentNotSucceeded, ClassBusinessRule},
		{ErrAmountMismatch, ClassBusinessRule},
		{ErrMetadataMismatch, ClassBusinessRule},
		{ErrGatewayDeclined, ClassBusinessRule},
		{ErrGatewayUnavailable, ClassTransient},
		{ErrStoreUnavailable, ClassTransient},
		{ErrConcurrentUpdate, ClassTransient},
		{fmt.Errorf("%w: status now shipped", ErrConcurrentUpdate), ClassTransient},
		{context.Canceled, ClassInternal},
		{errors.New("boom"), ClassInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestClass_IsClientError(t *testing.T) {
	for _, c := range []Class{ClassAuth, ClassValidation, ClassNotFound, ClassConflict, ClassBusinessRule} {
		assert.True(t, c.IsClientError(), c)
	}
	for _, c := range []Class{ClassNone, ClassTransient, ClassInternal} {
		assert.False(t, c.IsClientError(), c)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "ref_1", truncate("ref_1", 64))
	assert.Equal(t, "ba", truncate("baş", 3))
	long := strings.Repeat("€", 100)
	got := truncate(long, 250)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, 249)
}
