// Package instance names the running process for logs and lock ownership.
package instance

import (
	"os"
	"strings"
)

var lookupOrder = []string{"WORKER_ID", "DYNO", "HOSTNAME"}

// ID returns the first of WORKER_ID, DYNO or HOSTNAME that is set, else fallback.
func ID(fallback string) string {
	for _, key := range lookupOrder {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return fallback
}
