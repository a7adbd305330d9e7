package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasya-arogya/engine/pkg/state"
)

func TestVendorQueryAsksAndWaits(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewVendorQuery(deps)

	s := prescribedState("recommend treatment and where to buy")
	require.NoError(t, n.Execute(context.Background(), s))

	assert.True(t, s.RequiresUserInput)
	assert.Contains(t, s.AssistantResponse, "suppliers")
	assert.True(t, s.StreamImmediately)
}

func TestShowVendorsListsByTreatmentType(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewShowVendors(deps)

	s := prescribedState("yes, show me")
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Equal(t, ActionAwaitVendor, s.NextAction)
	require.NotEmpty(t, s.VendorOptions)
	assert.Contains(t, s.AssistantResponse, "1. ")
	assert.True(t, s.RequiresUserInput)
}

func TestShowVendorsAcceptsDirectSelection(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewShowVendors(deps)

	s := prescribedState("1 please")
	s.VendorOptions = []state.Vendor{{Name: "AgroChem Supplies", Location: "Hyderabad", Contact: "040", Price: "₹620"}}
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Equal(t, ActionOrder, s.NextAction)
	require.NotNil(t, s.SelectedVendor)
	assert.Equal(t, "AgroChem Supplies", s.SelectedVendor.Name)
}

func TestOrderBookingConfirms(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewOrderBooking(deps)

	s := prescribedState("book it")
	s.SelectedVendor = &state.Vendor{
		Name: "AgroChem Supplies", Location: "Hyderabad", Contact: "040-2233-4455", Price: "₹620 per liter",
	}
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Equal(t, ActionComplete, s.NextAction)
	assert.Contains(t, s.OrderDetails, "AgroChem Supplies")
	assert.Contains(t, s.AssistantResponse, "Hyderabad")
}

func TestOrderBookingWithoutSelectionErrors(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewOrderBooking(deps)

	s := prescribedState("book it")
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Equal(t, ActionError, s.NextAction)
	assert.NotEmpty(t, s.ErrorMessage)
}
