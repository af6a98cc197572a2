package cart

import (
	"context"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart store and placement.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cart *models.Cart) error
	FindOpenByToken(ctx context.Context, token string) (*models.Cart, error)
	FindOpenByUser(ctx context.Context, userID string) (*models.Cart, error)
	LockOpenByToken(ctx context.Context, token string) (*models.Cart, error)
	FindByToken(ctx context.Context, token string) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID uuid.UUID, productID int64) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) (int64, error)
	MarkCheckedOut(ctx context.Context, id uuid.UUID) (int64, error)
}
