package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Order is the write-once record produced by a successful placement.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex"`
	CartID          *uuid.UUID        `gorm:"column:cart_id;type:uuid"`
	UserID          *string           `gorm:"column:user_id"`
	Email           string            `gorm:"column:email;not null"`
	CustomerName    string            `gorm:"column:customer_name;not null"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	ShippingMethod  *string           `gorm:"column:shipping_method"`
	Status          enums.OrderStatus `gorm:"column:status;not null"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax             decimal.Decimal   `gorm:"column:tax;type:numeric(12,2);not null"`
	Shipping        decimal.Decimal   `gorm:"column:shipping;type:numeric(12,2);not null"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment         *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return enums.Validate("order status", o.Status)
}

// OrderItem is an immutable product snapshot on an order.
type OrderItem struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID           int64           `gorm:"column:product_id;not null"`
	ProductNameSnapshot string          `gorm:"column:product_name_snapshot;not null"`
	UnitPriceSnapshot   decimal.Decimal `gorm:"column:unit_price_snapshot;type:numeric(12,2);not null"`
	Quantity            int             `gorm:"column:quantity;not null"`
	LineTotal           decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Payment is the 1:1 capture record of an order.
type Payment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Provider          enums.PaymentProvider `gorm:"column:provider;not null"`
	ProviderReference *string               `gorm:"column:provider_reference"`
	Status            enums.PaymentStatus   `gorm:"column:status;not null"`
	Amount            decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return errors.Join(
		enums.Validate("payment provider", p.Provider),
		enums.Validate("payment status", p.Status),
	)
}
