package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowsElevatedBypass(t *testing.T) {
	admin := &AccessProfile{Roles: []string{RoleAdmin}, Permissions: []string{}, Elevated: true}
	assert.True(t, admin.Allows(PermProductView))
	assert.True(t, admin.Allows("ANYTHING_AT_ALL"))

	client := &AccessProfile{Roles: []string{RoleClient}, Permissions: []string{PermOrderView}}
	assert.True(t, client.Allows(PermOrderView))
	assert.False(t, client.Allows(PermProductView))

	var none *AccessProfile
	assert.False(t, none.Allows(PermOrderView))
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransition(OrderStatusProcessing))
	assert.True(t, OrderStatusProcessing.CanTransition(OrderStatusShipped))
	assert.True(t, OrderStatusShipped.CanTransition(OrderStatusDelivered))
	assert.False(t, OrderStatusPending.CanTransition(OrderStatusDelivered))
	assert.False(t, OrderStatusCancelled.CanTransition(OrderStatusProcessing))
	assert.False(t, OrderStatusReturned.CanTransition(OrderStatusPending))
}

func TestOrderItemsSubtotal(t *testing.T) {
	items := OrderItems{
		{ProductID: "p1", Price: 1000, Quantity: 2},
		{ProductID: "p2", Price: 500, Quantity: 1},
	}
	assert.Equal(t, int64(2500), items.Subtotal())
}

func TestJSONBScan(t *testing.T) {
	var items OrderItems
	require.NoError(t, items.Scan([]byte(`[{"product_id":"p1","name":"Tuna","price":1200,"quantity":3}]`)))
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	var info RecipientInfo
	require.NoError(t, info.Scan(nil))
	assert.Empty(t, info.Email)

	assert.Error(t, info.Scan(42))
}

func TestScopeCovers(t *testing.T) {
	assert.True(t, AccessScope{Kind: ScopeAll}.Covers("c1"))
	assert.True(t, AccessScope{Kind: ScopeClient, ClientID: "c1"}.Covers("c1"))
	assert.False(t, AccessScope{Kind: ScopeClient, ClientID: "c1"}.Covers("c2"))
	assert.False(t, AccessScope{Kind: ScopeNone}.Covers("c1"))
}

func TestPaymentNotificationMissing(t *testing.T) {
	n := &PaymentNotification{MerchantID: "m", OrderID: "o", StatusCode: "2"}
	assert.Equal(t, []string{"payhere_amount", "payhere_currency", "md5sig"}, n.Missing())
}

func TestPaymentNotificationReceipt(t *testing.T) {
	n := &PaymentNotification{PaymentID: "320025071278", Method: " master ", CardNo: "************1292"}
	assert.Equal(t, PaymentReceipt{
		Reference:        "320025071278",
		CardBrand:        "MASTER",
		MaskedCardNumber: "************1292",
	}, n.Receipt())

	assert.Equal(t, "************4242", MaskCardNumber("4242 4242 4242 4242"))
	assert.Empty(t, MaskCardNumber("***12"))
	assert.Empty(t, MaskCardNumber(""))
}

func TestProductPriceOf(t *testing.T) {
	p := &Product{Types: ProductVariants{{Type: "whole", Price: 2000}, {Type: "fillet", Price: 3500}}}

	v, ok := p.PriceOf("fillet")
	require.True(t, ok)
	assert.Equal(t, int64(3500), v.Price)

	v, ok = p.PriceOf("")
	require.True(t, ok)
	assert.Equal(t, "whole", v.Type)

	_, ok = p.PriceOf("smoked")
	assert.False(t, ok)
}
