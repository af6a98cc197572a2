package enums

// EmailType classifies rows in email_logs.
type EmailType string

const EmailTypeOrderConfirmation EmailType = "order_confirmation"

func (t EmailType) IsValid() bool { return known(t, EmailTypeOrderConfirmation) }

// EmailStatus records whether a notification was handed to the sender.
type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

func (s EmailStatus) String() string { return string(s) }

func (s EmailStatus) IsValid() bool {
	return known(s, EmailStatusSent, EmailStatusFailed)
}
