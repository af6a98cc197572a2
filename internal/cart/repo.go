package cart

import (
	"context"

	dbpkg "github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	if cart.Status == "" {
		cart.Status = enums.CartStatusOpen
	}
	return r.db.WithContext(ctx).Create(cart).Error
}

// FindOpenByToken loads an open cart with its items.
func (r *Repository) FindOpenByToken(ctx context.Context, token string) (*models.Cart, error) {
	return r.first(r.withItems(ctx).Where("token = ? AND status = ?", token, enums.CartStatusOpen))
}

// FindOpenByUser loads the user's open cart with its items.
func (r *Repository) FindOpenByUser(ctx context.Context, userID string) (*models.Cart, error) {
	return r.first(r.withItems(ctx).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusOpen).
		Order("created_at DESC"))
}

// LockOpenByToken loads an open cart and, where supported, holds its row lock until the transaction ends.
func (r *Repository) LockOpenByToken(ctx context.Context, token string) (*models.Cart, error) {
	return r.first(r.locked(r.withItems(ctx)).Where("token = ? AND status = ?", token, enums.CartStatusOpen))
}

// FindByToken loads a cart of any status.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.Cart, error) {
	return r.first(r.db.WithContext(ctx).Where("token = ?", token))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return r.first(r.withItems(ctx).Where("id = ?", id))
}

// LockByID loads a cart regardless of status, holding its row lock where supported.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return r.first(r.locked(r.withItems(ctx)).Where("id = ?", id))
}

func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) FindItemByProduct(ctx context.Context, cartID uuid.UUID, productID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", itemID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// MarkCheckedOut flips an open cart to checked_out; zero rows means another placement won.
func (r *Repository) MarkCheckedOut(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", id, enums.CartStatusOpen).
		Update("status", enums.CartStatusCheckedOut)
	return res.RowsAffected, res.Error
}

func (r *Repository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC").Order("id ASC")
	})
}

func (r *Repository) locked(q *gorm.DB) *gorm.DB {
	if dbpkg.SupportsRowLocks(r.db) {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *Repository) first(q *gorm.DB) (*models.Cart, error) {
	var cart models.Cart
	if err := q.First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}
