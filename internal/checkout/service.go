package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	dbpkg "github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxOrderNumberAttempts = 5
	defaultPublishTimeout  = 5 * time.Second
)

var inputValidator = validator.New()

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderEventPublisher delivers OrderCreated for a committed order.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
}

// PlaceOrderInput carries the caller-supplied contact, shipping and amount fields.
type PlaceOrderInput struct {
	CartToken       string
	UserID          *string
	Email           string
	CustomerName    string
	ShippingAddress string
	ShippingMethod  *string
	Tax             *decimal.Decimal
	Shipping        *decimal.Decimal
	PaymentToken    *string
}

// Service converts an open cart into a paid order.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*orders.View, error)
}

type service struct {
	cartRepo       cart.CartRepository
	ordersRepo     orders.Repository
	tx             txRunner
	reconciler     *Reconciler
	publisher      OrderEventPublisher
	metrics        *metrics.CheckoutMetrics
	logg           *logger.Logger
	publishTimeout time.Duration
	orderNumbers   func() (string, error)
}

// ServiceParams wires the placement service.
type ServiceParams struct {
	CartRepo       cart.CartRepository
	OrdersRepo     orders.Repository
	Tx             txRunner
	Reconciler     *Reconciler
	Publisher      OrderEventPublisher
	Metrics        *metrics.CheckoutMetrics
	Logger         *logger.Logger
	PublishTimeout time.Duration
	// OrderNumbers overrides NewOrderNumber.
	OrderNumbers func() (string, error)
}

func NewService(params ServiceParams) (Service, error) {
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("order event publisher required")
	}
	timeout := params.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	numbers := params.OrderNumbers
	if numbers == nil {
		numbers = NewOrderNumber
	}
	return &service{
		cartRepo:       params.CartRepo,
		ordersRepo:     params.OrdersRepo,
		tx:             params.Tx,
		reconciler:     params.Reconciler,
		publisher:      params.Publisher,
		metrics:        params.Metrics,
		logg:           params.Logger,
		publishTimeout: timeout,
		orderNumbers:   numbers,
	}, nil
}

// PlaceOrder reconciles and materializes inside one transaction holding the cart row,
// then publishes OrderCreated after commit. Publish failures never fail the placement.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*orders.View, error) {
	started := time.Now()
	order, err := s.place(ctx, input)
	s.metrics.ObservePlacement(outcomeFor(err), time.Since(started))
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "order.placed")
	}
	s.publish(ctx, order)
	return orders.NewView(order), nil
}

func (s *service) place(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	input, tax, shipping, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	var placed *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		record, err := cartRepo.LockOpenByToken(ctx, input.CartToken)
		if err != nil {
			return s.missingOpenCart(ctx, cartRepo, input.CartToken, err)
		}
		if err := helpers.ValidatePlaceableCart(record); err != nil {
			return err
		}

		reconciled, err := s.reconciler.Reconcile(ctx, record)
		if err != nil {
			return err
		}
		totals := helpers.ComputeTotals(reconciled.Subtotal, tax, shipping)

		cartID := record.ID
		userID := input.UserID
		if userID == nil {
			userID = record.UserID
		}
		order := &models.Order{
			CartID:          &cartID,
			UserID:          userID,
			Email:           input.Email,
			CustomerName:    input.CustomerName,
			ShippingAddress: input.ShippingAddress,
			ShippingMethod:  input.ShippingMethod,
			Status:          enums.OrderStatusPaid,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			Shipping:        totals.Shipping,
			Total:           totals.Total,
		}
		if err := s.insertOrder(ctx, tx, ordersRepo, order); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(reconciled.Lines))
		for _, line := range reconciled.Lines {
			items = append(items, models.OrderItem{
				OrderID:             order.ID,
				ProductID:           line.Item.ProductID,
				ProductNameSnapshot: line.ProductName,
				UnitPriceSnapshot:   line.UnitPrice,
				Quantity:            line.Item.Quantity,
				LineTotal:           line.LineTotal,
			})
		}
		if err := ordersRepo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
		}

		if err := ordersRepo.CreatePayment(ctx, &models.Payment{
			OrderID:           order.ID,
			Provider:          enums.PaymentProviderMock,
			ProviderReference: input.PaymentToken,
			Status:            enums.PaymentStatusCaptured,
			Amount:            order.Total,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
		}

		affected, err := cartRepo.MarkCheckedOut(ctx, record.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close cart")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "Cart has already been checked out.")
		}

		placed, err = ordersRepo.FindByOrderNumber(ctx, order.OrderNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "place order")
		}
		return nil, err
	}
	return placed, nil
}

// insertOrder retries order number collisions inside a savepoint so the outer transaction survives.
func (s *service) insertOrder(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order) error {
	for attempt := 1; ; attempt++ {
		number, err := s.orderNumbers()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.OrderNumber = number
		err = tx.Transaction(func(sp *gorm.DB) error {
			return repo.WithTx(sp).CreateOrder(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !isOrderNumberCollision(err) || attempt >= maxOrderNumberAttempts {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "order number collision, regenerating")
		}
	}
}

// missingOpenCart distinguishes an already placed cart from an unknown token.
func (s *service) missingOpenCart(ctx context.Context, repo cart.CartRepository, token string, lookupErr error) error {
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, lookupErr, "load cart")
	}
	existing, err := repo.FindByToken(ctx, token)
	if err == nil && existing.Status == enums.CartStatusCheckedOut {
		return pkgerrors.New(pkgerrors.CodeConflict, "Cart has already been checked out.")
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found.")
}

func (s *service) publish(ctx context.Context, order *models.Order) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.PublishOrderCreated(pubCtx, order); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithOrderNumber(ctx, order.OrderNumber), "Failed to dispatch OrderCreated message", err)
	}
}

func normalizeInput(input PlaceOrderInput) (PlaceOrderInput, decimal.Decimal, decimal.Decimal, error) {
	input.CartToken = strings.TrimSpace(input.CartToken)
	input.Email = strings.TrimSpace(input.Email)
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.ShippingAddress = strings.TrimSpace(input.ShippingAddress)
	input.ShippingMethod = trimOptional(input.ShippingMethod)
	input.PaymentToken = trimOptional(input.PaymentToken)
	input.UserID = trimOptional(input.UserID)

	details := map[string]string{}
	if input.CartToken == "" {
		details["cart_token"] = "is required"
	}
	if err := inputValidator.Var(input.Email, "required,email,max=255"); err != nil {
		details["email"] = "must be a valid email"
	}
	if len(input.CustomerName) > 255 {
		details["customer_name"] = "must be at most 255"
	}
	if input.ShippingAddress == "" {
		details["shipping_address"] = "is required"
	}
	if input.ShippingMethod != nil && len(*input.ShippingMethod) > 100 {
		details["shipping_method"] = "must be at most 100"
	}
	if len(details) > 0 {
		return input, decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	tax, err := helpers.NonNegativeAmount("tax", input.Tax)
	if err != nil {
		return input, decimal.Zero, decimal.Zero, err
	}
	shipping, err := helpers.NonNegativeAmount("shipping", input.Shipping)
	if err != nil {
		return input, decimal.Zero, decimal.Zero, err
	}
	return input, tax, shipping, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isOrderNumberCollision(err error) bool {
	return dbpkg.IsUniqueViolation(err, "ux_orders_order_number") ||
		dbpkg.IsUniqueViolation(err, "orders.order_number")
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeEmptyCart:
		return metrics.OutcomeEmptyCart
	case pkgerrors.CodePriceChanged:
		return metrics.OutcomePriceChanged
	case pkgerrors.CodeInsufficientStock:
		return metrics.OutcomeInsufficientStock
	case pkgerrors.CodeUpstreamUnavailable:
		return metrics.OutcomeUpstream
	case pkgerrors.CodeConflict:
		return metrics.OutcomeConflict
	case pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case pkgerrors.CodeValidation:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
