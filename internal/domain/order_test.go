package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderSnapshotsItems(t *testing.T) {
	items := []LineItem{{Name: "Tea", Quantity: 2, UnitPrice: 10}, {Name: "Chips", Quantity: 1, UnitPrice: 15}}
	o := NewOrder("TL-1", "sess", "Ravi", items, time.Unix(100, 0))

	assert.Equal(t, int64(35), o.Total)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentUnpaid, o.PaymentStatus)

	items[0].Quantity = 9
	assert.Equal(t, 2, o.Items[0].Quantity)
	require.NoError(t, o.Validate())
}

func TestValidate(t *testing.T) {
	base := NewOrder("TL-1", "", "", []LineItem{{Name: "Tea", Quantity: 1, UnitPrice: 10}}, time.Now())

	noID := base.Clone()
	noID.ID = ""
	assert.ErrorIs(t, noID.Validate(), ErrInvalidOrder)

	empty := base.Clone()
	empty.Items = nil
	empty.Total = 0
	assert.ErrorIs(t, empty.Validate(), ErrInvalidOrder)

	badTotal := base.Clone()
	badTotal.Total = 99
	assert.ErrorIs(t, badTotal.Validate(), ErrInvalidOrder)

	zeroQty := base.Clone()
	zeroQty.Items[0].Quantity = 0
	zeroQty.Total = 0
	assert.ErrorIs(t, zeroQty.Validate(), ErrInvalidOrder)
}

func TestStatusTransitions(t *testing.T) {
	o := Order{Status: StatusPending, PaymentStatus: PaymentUnpaid}

	require.NoError(t, o.SetStatus(StatusAccepted))
	assert.Equal(t, StatusAccepted, o.Status)

	err := o.SetStatus(StatusPending)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	require.NoError(t, o.SetStatus(StatusAccepted))
	require.NoError(t, o.SetStatus(StatusPaid))
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	assert.ErrorIs(t, o.SetStatus("cooking"), ErrIllegalTransition)
}

func TestPaymentTransitions(t *testing.T) {
	pending := Order{Status: StatusPending, PaymentStatus: PaymentUnpaid}
	assert.ErrorIs(t, pending.SetPayment(PaymentPaid), ErrIllegalTransition)
	require.NoError(t, pending.SetPayment(PaymentUnpaid))

	accepted := Order{Status: StatusAccepted, PaymentStatus: PaymentUnpaid}
	require.NoError(t, accepted.SetPayment(PaymentUnpaid))
	assert.Equal(t, StatusAccepted, accepted.Status)

	require.NoError(t, accepted.SetPayment(PaymentPaid))
	assert.Equal(t, StatusPaid, accepted.Status)
	assert.Equal(t, PaymentPaid, accepted.PaymentStatus)

	assert.ErrorIs(t, accepted.SetPayment(PaymentUnpaid), ErrIllegalTransition)
	assert.ErrorIs(t, accepted.SetPayment("refunded"), ErrIllegalTransition)
}
