package cart

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/catalog/catalogtest"
	dbpkg "github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *catalogtest.Stub, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	stub := catalogtest.NewStub()
	stub.Put(1, "SKU-A", "Widget", "100.00", 10)
	stub.Put(2, "SKU-B", "Gadget", "19.99", -1)
	svc, err := NewService(NewRepository(conn), dbpkg.NewFromConn(conn), stub, nil)
	require.NoError(t, err)
	return svc, stub, conn
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()
	if _, err := NewService(nil, nil, nil, nil); err == nil {
		t.Fatal("expected missing repository to fail")
	}
}

func TestCreateOrReuse(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, created, err := svc.CreateOrReuse(ctx, "", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enums.CartStatusOpen, first.Status)
	assert.NotEmpty(t, first.Token)
	assert.Empty(t, first.Items)
	assert.Equal(t, "0.00", first.Totals.Subtotal.StringFixed(2))

	again, created, err := svc.CreateOrReuse(ctx, first.Token, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	fresh, created, err := svc.CreateOrReuse(ctx, "unknown-token", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, fresh.ID)
	assert.NotEqual(t, "unknown-token", fresh.Token)
}

func TestCreateOrReuseByUser(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	user := "user-42"

	owned, created, err := svc.CreateOrReuse(ctx, "", &user)
	require.NoError(t, err)
	require.True(t, created)

	reused, created, err := svc.CreateOrReuse(ctx, "", &user)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, owned.ID, reused.ID)

	blank := "   "
	anon, created, err := svc.CreateOrReuse(ctx, "", &blank)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, owned.ID, anon.ID)
}

// staleUserLookup misses the first user lookup, as a caller racing another creator would.
type staleUserLookup struct {
	CartRepository
	missed bool
}

func (r *staleUserLookup) FindOpenByUser(ctx context.Context, userID string) (*models.Cart, error) {
	if !r.missed {
		r.missed = true
		return nil, gorm.ErrRecordNotFound
	}
	return r.CartRepository.FindOpenByUser(ctx, userID)
}

func TestCreateOrReuseLosesCreateRace(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	user := "user-race"

	winner := &models.Cart{Token: uuid.NewString(), UserID: &user}
	require.NoError(t, repo.Create(ctx, winner))

	svc, err := NewService(&staleUserLookup{CartRepository: repo}, dbpkg.NewFromConn(conn), catalogtest.NewStub(), nil)
	require.NoError(t, err)

	view, created, err := svc.CreateOrReuse(ctx, "", &user)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, view.ID)

	var open int64
	require.NoError(t, conn.Model(&models.Cart{}).
		Where("user_id = ? AND status = ?", user, enums.CartStatusOpen).Count(&open).Error)
	assert.EqualValues(t, 1, open)
}

func TestOneOpenCartPerUser(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	user := "user-9"

	first := &models.Cart{Token: uuid.NewString(), UserID: &user}
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, &models.Cart{Token: uuid.NewString(), UserID: &user})
	require.Error(t, err)
	assert.True(t, dbpkg.IsUniqueViolation(err, ""))

	require.NoError(t, conn.Model(&models.Cart{}).Where("id = ?", first.ID).
		Update("status", enums.CartStatusCheckedOut).Error)
	require.NoError(t, repo.Create(ctx, &models.Cart{Token: uuid.NewString(), UserID: &user}))
	require.NoError(t, repo.Create(ctx, &models.Cart{Token: uuid.NewString()}))
	require.NoError(t, repo.Create(ctx, &models.Cart{Token: uuid.NewString()}))
}

func TestGetUnknownToken(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "missing")
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.Get(context.Background(), "")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestAddItemMergesSameProduct(t *testing.T) {
	t.Parallel()
	svc, stub, conn := newTestService(t)
	ctx := context.Background()

	cart, _, err := svc.CreateOrReuse(ctx, "", nil)
	require.NoError(t, err)

	view, err := svc.AddItem(ctx, cart.Token, catalog.ProductRef{SKU: "SKU-A"}, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "200.00", view.Totals.Subtotal.StringFixed(2))

	stub.SetPrice(1, "95.50")
	view, err = svc.AddItem(ctx, cart.Token, catalog.ProductRef{ID: 1}, 3)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, "95.50", view.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "477.50", view.Items[0].LineTotal.StringFixed(2))
	assert.Equal(t, "477.50", view.Totals.Subtotal.StringFixed(2))

	var rows int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestAddItemSubtotalAcrossProducts(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cart, _, err := svc.CreateOrReuse(ctx, "", nil)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.Token, catalog.ProductRef{ID: 1}, 1)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, cart.Token, catalog.ProductRef{SKU: "SKU-B"}, 3)
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, "159.97", view.Totals.Subtotal.StringFixed(2))
}

func TestAddItemErrors(t *testing.T) {
	t.Parallel()
	svc, stub, _ := newTestService(t)
	ctx := context.Background()
	cart, _, err := svc.CreateOrReuse(ctx, "", nil)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, cart.Token, catalog.ProductRef{ID: 1}, 0)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.AddItem(ctx, cart.Token, catalog.ProductRef{}, 1)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.AddItem(ctx, "missing", catalog.ProductRef{ID: 1}, 1)
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "Cart not found.", pkgerrors.As(err).Message())

	_, err = svc.AddItem(ctx, cart.Token, catalog.ProductRef{ID: 99}, 1)
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "Product not found in Catalog.", pkgerrors.As(err).Message())

	stub.Put(3, "", "Unpriced", "", 5)
	_, err = svc.AddItem(ctx, cart.Token, catalog.ProductRef{ID: 3}, 1)
	requireCode(t, err, pkgerrors.CodeUpstreamUnavailable)

	stub.Err = pkgerrors.New(pkgerrors.CodeUpstreamUnavailable, "Unable to reach Catalog service.")
	_, err = svc.AddItem(ctx, cart.Token, catalog.ProductRef{ID: 1}, 1)
	requireCode(t, err, pkgerrors.CodeUpstreamUnavailable)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	cart, _, err := svc.CreateOrReuse(ctx, "", nil)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, cart.Token, catalog.ProductRef{ID: 2}, 1)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	view, err = svc.UpdateItemQuantity(ctx, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[0].Quantity)
	assert.Equal(t, "79.96", view.Totals.Subtotal.StringFixed(2))

	_, err = svc.UpdateItemQuantity(ctx, itemID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.UpdateItemQuantity(ctx, uuid.New(), 2)
	requireCode(t, err, pkgerrors.CodeNotFound)

	view, err = svc.RemoveItem(ctx, itemID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, "0.00", view.Totals.Subtotal.StringFixed(2))

	_, err = svc.RemoveItem(ctx, itemID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestMutationsRejectedOnCheckedOutCart(t *testing.T) {
	t.Parallel()
	svc, _, conn := newTestService(t)
	ctx := context.Background()
	cart, _, err := svc.CreateOrReuse(ctx, "", nil)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, cart.Token, catalog.ProductRef{ID: 1}, 1)
	require.NoError(t, err)

	affected, err := NewRepository(conn).MarkCheckedOut(ctx, cart.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	_, err = svc.UpdateItemQuantity(ctx, view.Items[0].ID, 3)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = svc.RemoveItem(ctx, view.Items[0].ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = svc.Get(ctx, cart.Token)
	requireCode(t, err, pkgerrors.CodeNotFound)

	affected, err = NewRepository(conn).MarkCheckedOut(ctx, cart.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)
}
