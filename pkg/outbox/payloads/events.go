package payloads

// OrderCreatedEvent is the body of every message on the order-events queue.
// Money fields are fixed two-place decimal strings.
type OrderCreatedEvent struct {
	OrderNumber string             `json:"order_number"`
	Email       string             `json:"email"`
	Status      string             `json:"status"`
	Subtotal    string             `json:"subtotal"`
	Tax         string             `json:"tax"`
	Shipping    string             `json:"shipping"`
	Total       string             `json:"total"`
	Items       []OrderCreatedItem `json:"items"`
}

type OrderCreatedItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}
