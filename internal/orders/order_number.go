package orders

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"
)

const orderNumberSuffixLen = 6

var orderNumberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewOrderNumber returns a human-facing identifier such as ORD-20260301-K3M9QX.
func NewOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	suffix := orderNumberEncoding.EncodeToString(buf)[:orderNumberSuffixLen]
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix), nil
}
