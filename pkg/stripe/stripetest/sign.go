// Package stripetest builds signed webhook deliveries for handler tests.
package stripetest

import (
	"time"

	"github.com/stripe/stripe-go/v84/webhook"
)

// SignPayload returns a Stripe-Signature header value for payload signed with
// secret at ts.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: ts,
	})
	return signed.Header
}
