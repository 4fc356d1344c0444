package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
)

func TestRepositoryCreateAndFind(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repository := NewRepository(conn)
	ctx := context.Background()

	order := &models.Order{
		BuyerID:     uuid.New(),
		PaymentMode: enums.PaymentModeCredit,
		Status:      enums.OrderStatusCreated,
		TotalCents:  12_000,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), Qty: 3, UnitPriceCents: 4_000},
		},
	}
	require.NoError(t, repository.Create(ctx, order))
	require.NotEqual(t, uuid.Nil, order.ID)

	found, err := repository.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, int64(12_000), found.TotalCents)
	require.Len(t, found.Items, 1)
	assert.Equal(t, 3, found.Items[0].Qty)
}

func TestRepositoryUpdateStatusIsCompareAndSwap(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repository := NewRepository(conn)
	ctx := context.Background()

	order := &models.Order{
		BuyerID:     uuid.New(),
		PaymentMode: enums.PaymentModeCash,
		Status:      enums.OrderStatusCreated,
		TotalCents:  500,
	}
	require.NoError(t, repository.Create(ctx, order))

	affected, err := repository.UpdateStatus(ctx, order.ID, enums.OrderStatusCreated, enums.OrderStatusValidated)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// stale expectation must not move the row
	affected, err = repository.UpdateStatus(ctx, order.ID, enums.OrderStatusCreated, enums.OrderStatusFailed)
	require.NoError(t, err)
	assert.Zero(t, affected)

	found, err := repository.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusValidated, found.Status)
}

func TestRepositoryAssignSeller(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repository := NewRepository(conn)
	ctx := context.Background()

	order := &models.Order{
		BuyerID:     uuid.New(),
		PaymentMode: enums.PaymentModeCredit,
		Status:      enums.OrderStatusVendorNotified,
		TotalCents:  900,
	}
	require.NoError(t, repository.Create(ctx, order))
	require.Nil(t, order.SellerID)

	seller := uuid.New()
	require.NoError(t, repository.AssignSeller(ctx, order.ID, seller))

	found, err := repository.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found.SellerID)
	assert.Equal(t, seller, *found.SellerID)
}

func TestRepositoryEventLogHistory(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repository := NewRepository(conn)
	ctx := context.Background()

	orderID := uuid.New()
	transitions := []struct {
		from, to enums.OrderStatus
	}{
		{enums.OrderStatusCreated, enums.OrderStatusValidated},
		{enums.OrderStatusValidated, enums.OrderStatusCreditReserved},
		{enums.OrderStatusCreditReserved, enums.OrderStatusStockReserved},
	}
	for _, tr := range transitions {
		require.NoError(t, repository.CreateEvent(ctx, &models.OrderEvent{
			OrderID:     orderID,
			FromStatus:  tr.from,
			ToStatus:    tr.to,
			PerformedBy: "system",
		}))
	}

	events, err := repository.ListEvents(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, enums.OrderStatusValidated, events[0].ToStatus)

	reached, err := repository.HasEventReaching(ctx, orderID, enums.OrderStatusStockReserved)
	require.NoError(t, err)
	assert.True(t, reached)

	reached, err = repository.HasEventReaching(ctx, orderID, enums.OrderStatusFulfilled)
	require.NoError(t, err)
	assert.False(t, reached)

	reached, err = repository.HasEventReaching(ctx, orderID)
	require.NoError(t, err)
	assert.False(t, reached)
}
