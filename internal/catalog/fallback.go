package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/drstein77/hostfront/internal/models"
)

//go:embed fallback.yaml
var fallbackYAML []byte

type fallbackProduct struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Term        string `yaml:"term"`
	List        int64  `yaml:"list"`
	Sale        int64  `yaml:"sale"`
	Description string `yaml:"description"`
}

type fallbackDoc struct {
	Currency   string             `yaml:"currency"`
	Products   []fallbackProduct  `yaml:"products"`
	Agreements []models.Agreement `yaml:"agreements"`
}

// Fallback is the static catalog used when the vendor cannot be reached.
type Fallback struct {
	Products   []models.Product
	Agreements []models.Agreement
}

// LoadFallback parses a fallback document.
func LoadFallback(raw []byte) (*Fallback, error) {
	var doc fallbackDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse fallback catalog: %w", err)
	}

	fb := &Fallback{Agreements: doc.Agreements}
	for _, p := range doc.Products {
		fb.Products = append(fb.Products, models.Product{
			ID:          p.ID,
			Title:       p.Title,
			Category:    CategoryOf(p.ID),
			Description: p.Description,
			Term:        p.Term,
			ListPrice:   models.NewMoney(p.List, doc.Currency),
			SalePrice:   models.NewMoney(p.Sale, doc.Currency),
			OnSale:      p.Sale < p.List,
		})
	}
	return fb, nil
}

// DefaultFallback returns the embedded fallback catalog.
func DefaultFallback() *Fallback {
	fb, err := LoadFallback(fallbackYAML)
	if err != nil {
		panic(err)
	}
	return fb
}

func (f *Fallback) product(id string) (models.Product, bool) {
	for _, p := range f.Products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}
