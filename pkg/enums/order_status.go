package enums

// OrderStatus is the lifecycle state of a materialized order. Placement only
// produces paid orders.
type OrderStatus string

const OrderStatusPaid OrderStatus = "paid"

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool { return known(o, OrderStatusPaid) }
