package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"

	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// PH mobile numbers: +63 917 123 4567, 0917-123-4567, 09171234567.
	phoneRe = regexp.MustCompile(`(?:\+?63|0)[\s\-]?9\d{2}[\s\-]?\d{3}[\s\-]?\d{4}`)
)

// HashCustomer returns the hex-encoded SHA-256 hash of a customer id.
func HashCustomer(customerID string) string {
	h := sha256.Sum256([]byte(customerID))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Product names and free text are kept for analytics.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubJourney returns a copy of j with the customer id hashed and every
// message and response scrubbed.
func ScrubJourney(j *conversion.Journey) *conversion.Journey {
	out := j.Clone()
	if out == nil {
		return nil
	}
	out.CustomerID = HashCustomer(j.CustomerID)
	for i := range out.Interactions {
		out.Interactions[i].Message = ScrubPII(out.Interactions[i].Message)
		out.Interactions[i].Response = ScrubPII(out.Interactions[i].Response)
	}
	return out
}
