package billing

import (
	"fmt"
	"time"
)

// subscriptionExpiry returns when a subscription started at start ends.
// Zero days means the subscription never expires.
func subscriptionExpiry(start time.Time, days int) *time.Time {
	if days <= 0 {
		return nil
	}
	end := start.AddDate(0, 0, days)
	return &end
}

// formatAmount renders cents as a decimal amount, e.g. 4900 -> "49.00".
func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
