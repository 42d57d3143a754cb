package service

import (
	"context"
	"testing"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/redisclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guestTTL = 30 * 24 * time.Hour

func TestCartAddItemMergesLinesAndChecksStock(t *testing.T) {
	f := newFixture(t)
	carts := newMemCarts()
	svc := NewCartService(carts, f.store, guestTTL)
	ctx := context.Background()
	guest := CartOwner{ClientID: f.clientID, SessionID: "sess-1"}

	cart, err := svc.AddItem(ctx, guest, CartItemInput{ProductID: f.salmonID, Type: "whole", Quantity: 4})
	require.NoError(t, err)
	cart, err = svc.AddItem(ctx, guest, CartItemInput{ProductID: f.salmonID, Type: "whole", Quantity: 3})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	assert.Equal(t, int64(250000), cart.Items[0].Price)
	assert.Equal(t, guestTTL, carts.ttls[redisclient.CartKey(f.clientID, "", "sess-1")])

	_, err = svc.AddItem(ctx, guest, CartItemInput{ProductID: f.salmonID, Type: "whole", Quantity: 4})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.AddItem(ctx, CartOwner{ClientID: f.otherID, SessionID: "sess-1"}, CartItemInput{ProductID: f.salmonID, Quantity: 1})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.AddItem(ctx, CartOwner{ClientID: f.clientID}, CartItemInput{ProductID: f.salmonID, Quantity: 1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCartUpdateAndRemove(t *testing.T) {
	f := newFixture(t)
	svc := NewCartService(newMemCarts(), f.store, guestTTL)
	ctx := context.Background()
	owner := CartOwner{ClientID: f.clientID, UserID: f.customer}

	_, err := svc.AddItem(ctx, owner, CartItemInput{ProductID: f.salmonID, Type: "fillet", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, CartItemInput{ProductID: f.prawnID, Quantity: 1})
	require.NoError(t, err)

	cart, err := svc.UpdateItem(ctx, owner, CartItemInput{ProductID: f.salmonID, Type: "fillet", Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5*320000+180000), cart.Total())

	cart, err = svc.UpdateItem(ctx, owner, CartItemInput{ProductID: f.prawnID, Quantity: 0})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	_, err = svc.RemoveItem(ctx, owner, f.prawnID, "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, svc.Clear(ctx, owner))
	cart, err = svc.Get(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartMergeFoldsGuestCartIntoUserCart(t *testing.T) {
	f := newFixture(t)
	carts := newMemCarts()
	svc := NewCartService(carts, f.store, guestTTL)
	ctx := context.Background()
	guest := CartOwner{ClientID: f.clientID, SessionID: "sess-9"}
	user := CartOwner{ClientID: f.clientID, UserID: f.customer}

	_, err := svc.AddItem(ctx, guest, CartItemInput{ProductID: f.salmonID, Type: "whole", Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, CartItemInput{ProductID: f.prawnID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user, CartItemInput{ProductID: f.salmonID, Type: "whole", Quantity: 1})
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, f.clientID, f.customer, "sess-9")
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, 3, merged.Items[merged.Find(f.salmonID, "whole")].Quantity)

	left, err := carts.GetCart(ctx, redisclient.CartKey(f.clientID, "", "sess-9"))
	require.NoError(t, err)
	assert.Nil(t, left)

	items := ToOrderItems(merged)
	assert.Len(t, items, 2)
}

func TestCartMergeKeepsConcurrentUserEdits(t *testing.T) {
	f := newFixture(t)
	carts := newMemCarts()
	svc := NewCartService(carts, f.store, guestTTL)
	ctx := context.Background()
	guest := CartOwner{ClientID: f.clientID, SessionID: "sess-3"}
	user := CartOwner{ClientID: f.clientID, UserID: f.customer}

	_, err := svc.AddItem(ctx, guest, CartItemInput{ProductID: f.salmonID, Type: "whole", Quantity: 2})
	require.NoError(t, err)

	// the user adds prawns from another tab while the merge is folding
	once := false
	carts.beforeCommit = func() {
		if once {
			return
		}
		once = true
		_, err := svc.AddItem(ctx, user, CartItemInput{ProductID: f.prawnID, Quantity: 1})
		require.NoError(t, err)
	}

	merged, err := svc.Merge(ctx, f.clientID, f.customer, "sess-3")
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, 2, merged.Items[merged.Find(f.salmonID, "whole")].Quantity)
	assert.Equal(t, 1, merged.Items[merged.Find(f.prawnID, "")].Quantity)

	stored, err := svc.Get(ctx, user)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}

func TestCartMergeCapsQuantitiesAtStock(t *testing.T) {
	f := newFixture(t)
	carts := newMemCarts()
	svc := NewCartService(carts, f.store, guestTTL)
	ctx := context.Background()
	guest := CartOwner{ClientID: f.clientID, SessionID: "sess-4"}
	user := CartOwner{ClientID: f.clientID, UserID: f.customer}

	_, err := svc.AddItem(ctx, guest, CartItemInput{ProductID: f.salmonID, Type: "fillet", Quantity: 8})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, CartItemInput{ProductID: f.prawnID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user, CartItemInput{ProductID: f.salmonID, Type: "fillet", Quantity: 5})
	require.NoError(t, err)

	require.NoError(t, f.store.SetDeleted(ctx, models.EntityProduct, f.prawnID, true))

	merged, err := svc.Merge(ctx, f.clientID, f.customer, "sess-4")
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, f.salmonID, merged.Items[0].ProductID)
	assert.Equal(t, 10, merged.Items[0].Quantity)
}

func TestCartMergeWithoutGuestCartReturnsUserCart(t *testing.T) {
	f := newFixture(t)
	svc := NewCartService(newMemCarts(), f.store, guestTTL)
	ctx := context.Background()
	user := CartOwner{ClientID: f.clientID, UserID: f.customer}

	_, err := svc.AddItem(ctx, user, CartItemInput{ProductID: f.salmonID, Quantity: 1})
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, f.clientID, f.customer, "sess-none")
	require.NoError(t, err)
	assert.Len(t, merged.Items, 1)
}
