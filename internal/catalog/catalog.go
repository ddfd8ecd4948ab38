package catalog

import (
	"strconv"
	"strings"
)

// Catalog answers product and FAQ lookups against the message text.
type Catalog struct {
	products []Product
	faqs     []FAQ
	byID     map[string]int
}

// NewCatalog builds a catalog over copies of the given products and FAQs.
func NewCatalog(products []Product, faqs []FAQ) *Catalog {
	c := &Catalog{
		products: append([]Product(nil), products...),
		faqs:     append([]FAQ(nil), faqs...),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range c.products {
		c.byID[p.ID] = i
	}
	return c
}

// Products returns all products in catalog order.
func (c *Catalog) Products() []Product {
	return append([]Product(nil), c.products...)
}

// Lookup returns the product with the given id.
func (c *Catalog) Lookup(id string) (Product, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[idx], true
}

// FindByName resolves product names (case-insensitive, exact after trimming).
func (c *Catalog) FindByName(names []string) []Product {
	var out []Product
	seen := make(map[string]struct{})
	for _, name := range names {
		needle := strings.ToLower(strings.TrimSpace(name))
		if needle == "" {
			continue
		}
		for _, p := range c.products {
			if strings.ToLower(p.Name) != needle {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Union merges product lists into one list without duplicates, in catalog
// order. Products unknown to the catalog are dropped.
func (c *Catalog) Union(lists ...[]Product) []Product {
	wanted := make(map[string]struct{})
	for _, list := range lists {
		for _, p := range list {
			wanted[p.ID] = struct{}{}
		}
	}
	var out []Product
	for _, p := range c.products {
		if _, ok := wanted[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// FindMentioned returns the products whose name, any keyword, or category occurs
// in text (case-insensitive substring). Results are unique and in catalog order.
func (c *Catalog) FindMentioned(text string) []Product {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	var out []Product
	for _, p := range c.products {
		if mentions(lower, p) {
			out = append(out, p)
		}
	}
	return out
}

func mentions(lower string, p Product) bool {
	if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" && strings.Contains(lower, name) {
		return true
	}
	for _, kw := range p.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	if cat := strings.ToLower(strings.TrimSpace(p.Category)); cat != "" && strings.Contains(lower, cat) {
		return true
	}
	return false
}

// MatchFAQ returns the first FAQ with a keyword contained in text.
func (c *Catalog) MatchFAQ(text string) (FAQ, bool) {
	lower := strings.ToLower(text)
	for _, faq := range c.faqs {
		for _, kw := range faq.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lower, kw) {
				return faq, true
			}
		}
	}
	return FAQ{}, false
}

// FormatPeso renders an amount the way the shop displays prices, e.g. ₱1,250 or ₱99.50.
func FormatPeso(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	cents := int64(amount*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₱")
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != 0 {
		b.WriteByte('.')
		if frac < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(frac, 10))
	}
	return b.String()
}

// Render substitutes {shopName}, {productName} and {price} style placeholders.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
