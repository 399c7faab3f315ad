package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapProviderStatus(t *testing.T) {
	cases := map[ProviderStatus]PaymentStatus{
		ProviderSuccess:    PaymentCompleted,
		ProviderFailed:     PaymentFailed,
		ProviderCancelled:  PaymentCancelled,
		ProviderAbandoned:  PaymentCancelled,
		ProviderProcessing: PaymentProcessing,
		ProviderPending:    PaymentPending,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapProviderStatus(in), in)
	}

	// A status we have never seen must stay inconclusive.
	assert.Equal(t, PaymentPending, MapProviderStatus("reversed"))
}

func TestTerminal(t *testing.T) {
	assert.False(t, PaymentPending.Terminal())
	assert.False(t, PaymentProcessing.Terminal())
	assert.True(t, PaymentCompleted.Terminal())
	assert.True(t, PaymentFailed.Terminal())
	assert.True(t, PaymentCancelled.Terminal())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(PaymentPending, PaymentCompleted))
	assert.True(t, CanTransition(PaymentProcessing, PaymentFailed))
	assert.True(t, CanTransition(PaymentPending, PaymentCancelled))

	// Terminal states never move again.
	assert.False(t, CanTransition(PaymentCompleted, PaymentCancelled))
	assert.False(t, CanTransition(PaymentFailed, PaymentCompleted))
	assert.False(t, CanTransition(PaymentCancelled, PaymentCompleted))

	// Corrections only land on terminal states.
	assert.False(t, CanTransition(PaymentPending, PaymentProcessing))
	assert.False(t, CanTransition(PaymentProcessing, PaymentPending))
}

func TestFulfillmentFor(t *testing.T) {
	assert.Equal(t, OrderConfirmed, FulfillmentFor(PaymentCompleted))
	assert.Equal(t, OrderCancelled, FulfillmentFor(PaymentFailed))
	assert.Equal(t, OrderCancelled, FulfillmentFor(PaymentCancelled))
	assert.Equal(t, OrderPending, FulfillmentFor(PaymentProcessing))
}
