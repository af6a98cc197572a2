package enums

// CartStatus tracks whether a cart is still mutable or already converted into an order.
type CartStatus string

const (
	CartStatusOpen       CartStatus = "open"
	CartStatusCheckedOut CartStatus = "checked_out"
)

func (c CartStatus) String() string { return string(c) }

func (c CartStatus) IsValid() bool {
	return known(c, CartStatusOpen, CartStatusCheckedOut)
}

// Mutable reports whether items may still change.
func (c CartStatus) Mutable() bool { return c == CartStatusOpen }
