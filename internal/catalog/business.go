package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const placeholderShopName = "Your Business Name"

var (
	// ErrInvalidConfig wraps every validation failure returned by Validate.
	ErrInvalidConfig = errors.New("catalog: invalid business config")
)

// Product is a sellable catalog entry.
type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Price       float64  `json:"price" yaml:"price"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Category    string   `json:"category,omitempty" yaml:"category"`
	Stock       int      `json:"stock" yaml:"stock"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords"`
	Variants    []string `json:"variants,omitempty" yaml:"variants"`
}

// FAQ is a canned answer matched by keywords.
type FAQ struct {
	ID       string   `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question"`
	Answer   string   `json:"answer" yaml:"answer"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords"`
}

// BusinessInfo groups the shop's policies.
type BusinessInfo struct {
	Description         string   `json:"description" yaml:"description"`
	PaymentMethods      []string `json:"paymentMethods" yaml:"payment_methods"`
	ShippingFee         string   `json:"shippingFee" yaml:"shipping_fee"`
	FreeShippingMinimum float64  `json:"freeShippingMinimum" yaml:"free_shipping_minimum"`
	BusinessHours       string   `json:"businessHours" yaml:"business_hours"`
	Phone               string   `json:"phone,omitempty" yaml:"phone"`
	Email               string   `json:"email,omitempty" yaml:"email"`
}

// ResponseTemplates holds the canned reply variants per situation.
// Placeholders: {shopName}, {productName}, {price}.
type ResponseTemplates struct {
	Greeting       []string `json:"greeting" yaml:"greeting"`
	ProductInquiry []string `json:"productInquiry" yaml:"product_inquiry"`
	Pricing        []string `json:"pricing" yaml:"pricing"`
	Availability   []string `json:"availability" yaml:"availability"`
	Purchase       []string `json:"purchase" yaml:"purchase"`
	Support        []string `json:"support" yaml:"support"`
	General        []string `json:"general" yaml:"general"`
}

// BusinessConfig is the seller's shop identity, catalog and policies.
// Defaults are resolved once by ApplyDefaults; callers never null-coalesce fields.
type BusinessConfig struct {
	ShopName     string            `json:"shopName" yaml:"shop_name"`
	BusinessType string            `json:"businessType" yaml:"business_type"`
	Location     string            `json:"location" yaml:"location"`
	Info         BusinessInfo      `json:"businessInfo" yaml:"business_info"`
	Products     []Product         `json:"products" yaml:"products"`
	FAQs         []FAQ             `json:"faqs" yaml:"faqs"`
	Templates    ResponseTemplates `json:"responseTemplates" yaml:"response_templates"`
}

// Default returns the stock configuration used when no file is provided.
func Default() *BusinessConfig {
	cfg := &BusinessConfig{
		ShopName:     "My Online Shop",
		BusinessType: "General Store",
		Location:     "Philippines",
		Products: []Product{
			{
				ID:          "p1",
				Name:        "Sample Product",
				Price:       999,
				Description: "High-quality sample product",
				Category:    "Electronics",
				Stock:       50,
				Keywords:    []string{"sample", "product", "quality"},
			},
			{
				ID:          "s1",
				Name:        "Sample Service",
				Price:       500,
				Description: "Professional service offering",
				Category:    "Professional Services",
				Stock:       0,
				Keywords:    []string{"service", "professional"},
			},
		},
		FAQs: []FAQ{
			{
				ID:       "faq1",
				Question: "Do you offer warranty?",
				Answer:   "Yes, we provide 1-year warranty on all products with free repair or replacement.",
				Keywords: []string{"warranty", "guarantee", "repair", "replacement"},
			},
			{
				ID:       "faq2",
				Question: "What payment methods do you accept?",
				Answer:   "We accept Cash on Delivery, GCash, Bank Transfer and Credit Card.",
				Keywords: []string{"payment", "pay", "gcash", "bank", "credit card"},
			},
			{
				ID:       "faq3",
				Question: "How long is delivery?",
				Answer:   "Metro Manila: 1-2 days. Provincial: 3-5 days.",
				Keywords: []string{"shipping", "delivery", "how long", "days"},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML business config from path, resolves defaults and validates it.
func Load(path string) (*BusinessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var cfg BusinessConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every optional field so downstream code can rely on it.
func (c *BusinessConfig) ApplyDefaults() {
	if strings.TrimSpace(c.BusinessType) == "" {
		c.BusinessType = "General Store"
	}
	if strings.TrimSpace(c.Location) == "" {
		c.Location = "Philippines"
	}
	if c.Info.Description == "" {
		c.Info.Description = "We sell quality products at affordable prices"
	}
	if len(c.Info.PaymentMethods) == 0 {
		c.Info.PaymentMethods = []string{"Cash", "GCash", "Bank Transfer", "Credit Card"}
	}
	if c.Info.ShippingFee == "" {
		c.Info.ShippingFee = "₱50-150"
	}
	if c.Info.FreeShippingMinimum == 0 {
		c.Info.FreeShippingMinimum = 1000
	}
	if c.Info.BusinessHours == "" {
		c.Info.BusinessHours = "Mon-Sat 9AM-6PM"
	}
	for i := range c.Products {
		if c.Products[i].ID == "" {
			c.Products[i].ID = fmt.Sprintf("p%d", i+1)
		}
		if c.Products[i].Category == "" {
			c.Products[i].Category = "General"
		}
	}
	for i := range c.FAQs {
		if c.FAQs[i].ID == "" {
			c.FAQs[i].ID = fmt.Sprintf("faq%d", i+1)
		}
	}

	t := &c.Templates
	if len(t.Greeting) == 0 {
		t.Greeting = []string{
			"Welcome to {shopName}! How can I help you today?",
			"Hi there! Thanks for visiting {shopName}. What are you looking for?",
			"Hello! I'm here to help you find exactly what you need at {shopName}!",
		}
	}
	if len(t.ProductInquiry) == 0 {
		t.ProductInquiry = []string{
			"Great choice! Our {productName} is one of our bestsellers.",
			"I'd love to tell you about our {productName}!",
		}
	}
	if len(t.Pricing) == 0 {
		t.Pricing = []string{
			"Our {productName} is competitively priced at {price}.",
			"For {price}, you're getting incredible value with {productName}.",
			"The {productName} is {price} - and worth every peso!",
		}
	}
	if len(t.Availability) == 0 {
		t.Availability = []string{
			"Let me check our stock for you! Which product are you interested in?",
		}
	}
	if len(t.Purchase) == 0 {
		t.Purchase = []string{
			"Excellent! I'd be happy to help you place an order. Which product would you like?",
		}
	}
	if len(t.Support) == 0 {
		t.Support = []string{
			"I'm here to help! Could you tell me a bit more about the issue?",
		}
	}
	if len(t.General) == 0 {
		t.General = []string{
			"Thanks for your message! How can I assist you today?",
			"I'm here to help! What would you like to know about our products?",
		}
	}
}

// Validate reports every problem in the configuration at once.
func (c *BusinessConfig) Validate() error {
	var problems []error
	if name := strings.TrimSpace(c.ShopName); name == "" || name == placeholderShopName {
		problems = append(problems, errors.New("shop name is required"))
	}
	if len(c.Products) == 0 {
		problems = append(problems, errors.New("at least one product is required"))
	}
	seen := make(map[string]struct{}, len(c.Products))
	for i, p := range c.Products {
		if strings.TrimSpace(p.Name) == "" {
			problems = append(problems, fmt.Errorf("product %d: name is required", i))
		}
		if p.Price <= 0 {
			problems = append(problems, fmt.Errorf("product %q: price must be positive", p.ID))
		}
		if p.Stock < 0 {
			problems = append(problems, fmt.Errorf("product %q: stock cannot be negative", p.ID))
		}
		if _, dup := seen[p.ID]; dup {
			problems = append(problems, fmt.Errorf("product %q: duplicate id", p.ID))
		}
		seen[p.ID] = struct{}{}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
}

// Catalog returns a lookup view over the configured products and FAQs.
func (c *BusinessConfig) Catalog() *Catalog {
	return NewCatalog(c.Products, c.FAQs)
}
