package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProducts() []Product {
	return []Product{
		{ID: "lav", Name: "Lavender Oil", Price: 350, Category: "Essential Oils", Stock: 12, Keywords: []string{"lavender", "oil"}},
		{ID: "tea", Name: "Tea Tree Oil", Price: 420, Category: "Essential Oils", Stock: 4, Keywords: []string{"tea tree"}},
		{ID: "dif", Name: "Diffuser", Price: 1250, Category: "Devices", Stock: 3, Keywords: []string{"diffuser", "humidifier"}},
	}
}

func TestFindMentioned(t *testing.T) {
	c := NewCatalog(testProducts(), nil)

	got := c.FindMentioned("I want to buy the Lavender Oil")
	require.Len(t, got, 1)
	assert.Equal(t, "lav", got[0].ID)
}

func TestFindMentionedKeywordAndCategory(t *testing.T) {
	c := NewCatalog(testProducts(), nil)

	got := c.FindMentioned("do you sell a humidifier?")
	require.Len(t, got, 1)
	assert.Equal(t, "dif", got[0].ID)

	got = c.FindMentioned("show me your essential oils")
	require.Len(t, got, 2)
	assert.Equal(t, []string{"lav", "tea"}, []string{got[0].ID, got[1].ID})
}

func TestFindMentionedNoMatch(t *testing.T) {
	c := NewCatalog(testProducts(), nil)
	assert.Empty(t, c.FindMentioned("how much is it?"))
	assert.Empty(t, c.FindMentioned("   "))
}

func TestFindByNameDeduplicates(t *testing.T) {
	c := NewCatalog(testProducts(), nil)
	got := c.FindByName([]string{"diffuser", " Diffuser ", "unknown"})
	require.Len(t, got, 1)
	assert.Equal(t, "dif", got[0].ID)
}

func TestLookup(t *testing.T) {
	c := NewCatalog(testProducts(), nil)
	p, ok := c.Lookup("tea")
	require.True(t, ok)
	assert.Equal(t, "Tea Tree Oil", p.Name)
	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestMatchFAQ(t *testing.T) {
	cfg := Default()
	faq, ok := cfg.Catalog().MatchFAQ("Can I pay with GCash?")
	require.True(t, ok)
	assert.Equal(t, "faq2", faq.ID)

	_, ok = cfg.Catalog().MatchFAQ("hello")
	assert.False(t, ok)
}

func TestFormatPeso(t *testing.T) {
	cases := map[float64]string{
		0:       "₱0",
		350:     "₱350",
		1250:    "₱1,250",
		99.5:    "₱99.50",
		1234567: "₱1,234,567",
		12.05:   "₱12.05",
	}
	for amount, want := range cases {
		assert.Equal(t, want, FormatPeso(amount), "amount %v", amount)
	}
}

func TestRender(t *testing.T) {
	out := Render("The {productName} is {price} at {shopName}", map[string]string{
		"productName": "Diffuser",
		"price":       FormatPeso(1250),
		"shopName":    "Oil Haus",
	})
	assert.Equal(t, "The Diffuser is ₱1,250 at Oil Haus", out)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"Cash", "GCash", "Bank Transfer", "Credit Card"}, cfg.Info.PaymentMethods)
	assert.Equal(t, float64(1000), cfg.Info.FreeShippingMinimum)
	assert.NotEmpty(t, cfg.Templates.Greeting)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := &BusinessConfig{
		ShopName: "Your Business Name",
		Products: []Product{
			{ID: "a", Name: "", Price: 0},
			{ID: "a", Name: "Dup", Price: 10},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "shop name is required")
	assert.Contains(t, err.Error(), "price must be positive")
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.yaml")
	doc := `
shop_name: Oil Haus
location: Cebu
products:
  - name: Lavender Oil
    price: 350
    stock: 12
    keywords: [lavender]
faqs:
  - question: Do you deliver?
    answer: Yes, nationwide.
    keywords: [deliver]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Oil Haus", cfg.ShopName)
	assert.Equal(t, "Cebu", cfg.Location)
	assert.Equal(t, "General Store", cfg.BusinessType)
	require.Len(t, cfg.Products, 1)
	assert.Equal(t, "p1", cfg.Products[0].ID)
	assert.Equal(t, "General", cfg.Products[0].Category)
	assert.Equal(t, "faq1", cfg.FAQs[0].ID)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shop_name: ''\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestUnionKeepsCatalogOrder(t *testing.T) {
	c := NewCatalog(testProducts(), nil)
	a := []Product{{ID: "dif"}, {ID: "ghost"}}
	b := []Product{{ID: "lav"}, {ID: "dif"}}

	got := c.Union(a, b)
	require.Len(t, got, 2)
	assert.Equal(t, "lav", got[0].ID)
	assert.Equal(t, "Diffuser", got[1].Name)
	assert.Empty(t, c.Union())
}
