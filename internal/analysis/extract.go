package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	phoneRegion = "PH"
	maxQuantity = 999
)

var (
	mobilePattern   = regexp.MustCompile(`(\+63|63|0)[\s-]?9\d{2}[\s-]?\d{3}[\s-]?\d{4}`)
	landlinePattern = regexp.MustCompile(`(\+63|63|0)[\s-]?\d{1,2}[\s-]?\d{3}[\s-]?\d{4}`)
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneStrip      = regexp.MustCompile(`[\s-]`)

	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)my name is ([a-z\s]+)`),
		regexp.MustCompile(`(?i)name:\s*([a-z\s]+)`),
		regexp.MustCompile(`(?i)\bi'm ([a-z\s]+)`),
		regexp.MustCompile(`(?i)\bi am ([a-z\s]+)`),
	}

	quantityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*(?:pieces?|pcs?|items?)\b`),
		regexp.MustCompile(`(?i)quantity[:\s]*(\d+)`),
		regexp.MustCompile(`(?i)i want (\d+)`),
		regexp.MustCompile(`(?i)order (\d+)`),
	}
	variantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)size[:\s]+(small|medium|large|xxl|xl|xs|s|m|l|\d+)\b`),
		regexp.MustCompile(`(?i)colou?r[:\s]+(\w+)`),
		regexp.MustCompile(`(?i)variant[:\s]+(\w+)`),
	}
	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)address[:\s]+(.{4,})`),
		regexp.MustCompile(`(?i)deliver to[:\s]+(.{4,})`),
		regexp.MustCompile(`(?i)location[:\s]+(.{4,})`),
	}
)

// Words that end a captured name ("my name is Ana and my phone ...").
var nameStopWords = map[string]struct{}{
	"and": {}, "phone": {}, "my": {}, "number": {}, "email": {}, "from": {}, "here": {},
	"with": {}, "at": {}, "mobile": {}, "contact": {}, "address": {},
}

// "I'm ..." phrases that describe a state rather than introduce a name.
var nonNameLeads = map[string]struct{}{
	"looking": {}, "interested": {}, "ready": {}, "not": {}, "just": {}, "going": {},
	"asking": {}, "wondering": {}, "a": {}, "an": {}, "the": {}, "so": {}, "very": {},
	"also": {}, "okay": {}, "ok": {}, "fine": {}, "good": {}, "in": {}, "on": {},
	"sure": {}, "thinking": {}, "trying": {}, "planning": {}, "buying": {}, "gonna": {},
	"still": {}, "really": {}, "happy": {}, "sorry": {}, "done": {}, "back": {},
	"busy": {}, "new": {}, "waiting": {}, "checking": {}, "considering": {}, "from": {},
}

// ExtractContactInfo pulls a phone (E.164 when valid), email and name out of text.
func ExtractContactInfo(text string) *ContactInfo {
	info := &ContactInfo{}

	if m := mobilePattern.FindString(text); m != "" {
		info.Phone = normalizePhone(m)
	} else if m := landlinePattern.FindString(text); m != "" {
		info.Phone = normalizePhone(m)
	}
	if m := emailPattern.FindString(text); m != "" {
		info.Email = m
	}
	for i, pattern := range namePatterns {
		match := pattern.FindStringSubmatch(text)
		if len(match) < 2 {
			continue
		}
		name := cleanName(match[1], i >= 2)
		if name != "" {
			info.Name = name
			break
		}
	}

	if info.Empty() {
		return nil
	}
	return info
}

func normalizePhone(raw string) string {
	digits := phoneStrip.ReplaceAllString(raw, "")
	num, err := phonenumbers.Parse(digits, phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return digits
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func cleanName(raw string, casual bool) string {
	words := strings.Fields(raw)
	if len(words) == 0 {
		return ""
	}
	if casual {
		if _, skip := nonNameLeads[strings.ToLower(words[0])]; skip {
			return ""
		}
	}
	kept := make([]string, 0, 3)
	for _, w := range words {
		if _, stop := nameStopWords[strings.ToLower(w)]; stop {
			break
		}
		kept = append(kept, w)
		if len(kept) == 3 {
			break
		}
	}
	name := strings.Join(kept, " ")
	if len(name) <= 1 {
		return ""
	}
	return name
}

// ExtractOrderDetails pulls quantity, variant and delivery address out of text.
func ExtractOrderDetails(text string) *OrderDetails {
	details := &OrderDetails{}

	for _, pattern := range quantityPatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			if qty, err := strconv.Atoi(m[1]); err == nil && qty > 0 && qty <= maxQuantity {
				details.Quantity = qty
				break
			}
		}
	}
	for _, pattern := range variantPatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			details.Variant = m[1]
			break
		}
	}
	for _, pattern := range addressPatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			details.Address = strings.TrimSpace(m[1])
			break
		}
	}

	if details.Empty() {
		return nil
	}
	return details
}
