package enums

// ConfirmationSource names the path that observed a successful payment.
type ConfirmationSource string

const (
	ConfirmationSourceVerification ConfirmationSource = "verification"
	ConfirmationSourceWebhook      ConfirmationSource = "webhook"
	ConfirmationSourceManual       ConfirmationSource = "manual"
)

func (s ConfirmationSource) String() string {
	return string(s)
}
