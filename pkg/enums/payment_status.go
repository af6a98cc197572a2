package enums

// PaymentStatus tracks the outcome of a payment capture.
type PaymentStatus string

const (
	PaymentStatusCaptured PaymentStatus = "captured"
	PaymentStatusFailed   PaymentStatus = "failed"
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	return known(p, PaymentStatusCaptured, PaymentStatusFailed)
}

// PaymentProvider names the gateway that captured a payment.
type PaymentProvider string

const PaymentProviderMock PaymentProvider = "mock"

func (p PaymentProvider) String() string { return string(p) }

func (p PaymentProvider) IsValid() bool { return known(p, PaymentProviderMock) }
