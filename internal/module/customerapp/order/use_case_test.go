package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateSharesSumsExactly(t *testing.T) {
	items := []Item{
		{UnitPrice: 3333, Quantity: 1},
		{UnitPrice: 3333, Quantity: 1},
		{UnitPrice: 3334, Quantity: 1},
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * item.Quantity
	}

	tax := int64(1100)
	fee := int64(500)

	allocateShares(items, subtotal, tax, fee)

	var taxSum, feeSum int64
	for _, item := range items {
		taxSum += item.AllocatedTax
		feeSum += item.AllocatedFee
	}

	assert.Equal(t, tax, taxSum, "allocated tax shares must sum to the order tax")
	assert.Equal(t, fee, feeSum, "allocated fee shares must sum to the order fee")
}

func TestAllocateSharesProportional(t *testing.T) {
	items := []Item{
		{UnitPrice: 1000, Quantity: 3},
		{UnitPrice: 1000, Quantity: 1},
	}

	allocateShares(items, 4000, 400, 200)

	assert.Equal(t, int64(300), items[0].AllocatedTax)
	assert.Equal(t, int64(100), items[1].AllocatedTax)
	assert.Equal(t, int64(150), items[0].AllocatedFee)
	assert.Equal(t, int64(50), items[1].AllocatedFee)
}

func TestAllocateSharesSingleItem(t *testing.T) {
	items := []Item{{UnitPrice: 2500, Quantity: 2}}

	allocateShares(items, 5000, 550, 250)

	assert.Equal(t, int64(550), items[0].AllocatedTax)
	assert.Equal(t, int64(250), items[0].AllocatedFee)
}

func TestAllocateSharesZeroSubtotal(t *testing.T) {
	items := []Item{{UnitPrice: 0, Quantity: 1}}

	allocateShares(items, 0, 0, 0)

	assert.Equal(t, int64(0), items[0].AllocatedTax)
	assert.Equal(t, int64(0), items[0].AllocatedFee)
}
