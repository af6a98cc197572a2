package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	dbpkg "github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const msgCartNotFound = "Cart not found."

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the cart store operations.
type Service interface {
	CreateOrReuse(ctx context.Context, token string, userID *string) (*View, bool, error)
	Get(ctx context.Context, token string) (*View, error)
	AddItem(ctx context.Context, token string, ref catalog.ProductRef, quantity int) (*View, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (*View, error)
}

type service struct {
	repo    CartRepository
	tx      txRunner
	catalog catalog.Reader
	logg    *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, reader catalog.Reader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if reader == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &service{repo: repo, tx: tx, catalog: reader, logg: logg}, nil
}

// CreateOrReuse returns the open cart for the token, then the user's open cart, else a new one.
// The boolean reports whether a cart was created.
func (s *service) CreateOrReuse(ctx context.Context, token string, userID *string) (*View, bool, error) {
	token = strings.TrimSpace(token)
	if token != "" {
		existing, err := s.repo.FindOpenByToken(ctx, token)
		if err == nil {
			return NewView(existing), false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
	}

	userID = normalizeUserID(userID)
	if userID != nil {
		existing, err := s.repo.FindOpenByUser(ctx, *userID)
		if err == nil {
			return NewView(existing), false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user cart")
		}
	}

	created := &models.Cart{
		Token:  uuid.NewString(),
		UserID: userID,
		Status: enums.CartStatusOpen,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		if userID != nil && dbpkg.IsUniqueViolation(err, "") {
			return s.reuseUserCart(ctx, *userID, err)
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithCartID(ctx, created.ID.String()), "cart.created")
	}
	return NewView(created), true, nil
}

// reuseUserCart resolves a lost create race on ux_carts_open_user by returning the winner's cart.
func (s *service) reuseUserCart(ctx context.Context, userID string, createErr error) (*View, bool, error) {
	existing, err := s.repo.FindOpenByUser(ctx, userID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(createErr, err), "create cart")
	}
	return NewView(existing), false, nil
}

func (s *service) Get(ctx context.Context, token string) (*View, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart_token is required")
	}
	cart, err := s.repo.FindOpenByToken(ctx, token)
	if err != nil {
		return nil, mapCartLookup(err)
	}
	return NewView(cart), nil
}

// AddItem snapshots the current catalog price; a product already in the cart has its quantity
// incremented and its snapshot overwritten.
func (s *service) AddItem(ctx context.Context, token string, ref catalog.ProductRef, quantity int) (*View, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart_token is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if err := ref.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if _, err := s.repo.FindOpenByToken(ctx, token); err != nil {
		return nil, mapCartLookup(err)
	}

	product, err := s.catalog.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	if product.Price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstreamUnavailable, "Product pricing unavailable.")
	}
	price := product.Price.Round(2)

	var cartID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockOpenByToken(ctx, token)
		if err != nil {
			return mapCartLookup(err)
		}
		cartID = cart.ID

		item, err := repo.FindItemByProduct(ctx, cart.ID, product.ID)
		switch {
		case err == nil:
			item.Quantity += quantity
			item.UnitPriceSnapshot = price
			if err := repo.SaveItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := repo.CreateItem(ctx, &models.CartItem{
				CartID:            cart.ID,
				ProductID:         product.ID,
				Quantity:          quantity,
				UnitPriceSnapshot: price,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart item")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, cartID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return s.mutateItem(ctx, itemID, func(repo CartRepository, item *models.CartItem) error {
		item.Quantity = quantity
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, itemID uuid.UUID) (*View, error) {
	return s.mutateItem(ctx, itemID, func(repo CartRepository, item *models.CartItem) error {
		affected, err := repo.DeleteItem(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Cart item not found.")
		}
		return nil
	})
}

// mutateItem locks the owning cart so item writes serialize with placement.
func (s *service) mutateItem(ctx context.Context, itemID uuid.UUID, apply func(CartRepository, *models.CartItem) error) (*View, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Cart item not found.")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}
		cart, err := repo.LockByID(ctx, item.CartID)
		if err != nil {
			return mapCartLookup(err)
		}
		if !cart.Status.Mutable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Cart is no longer open.")
		}
		cartID = cart.ID
		return apply(repo, item)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, cartID)
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*View, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, mapCartLookup(err)
	}
	return NewView(cart), nil
}

func mapCartLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgCartNotFound)
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
}

func normalizeUserID(userID *string) *string {
	if userID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*userID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
