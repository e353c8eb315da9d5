package models

import (
	"fmt"
	"strings"
	"time"
)

// Envelope wraps every JSON response of the site API.
type Envelope struct {
	Success  bool   `json:"success"`
	Fallback bool   `json:"fallback,omitempty"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Money is an amount in minor units plus its display form.
type Money struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// NewMoney builds Money with a display string such as "USD 12.99".
func NewMoney(cents int64, currency string) Money {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	return Money{Cents: cents, Currency: currency, Display: FormatCents(cents, currency)}
}

// FormatCents renders minor units with a currency symbol when one is known.
func FormatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if sym, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return sign + sym + amount
	}
	if currency == "" {
		return sign + amount
	}
	return sign + strings.ToUpper(currency) + " " + amount
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
}

type Product struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Term        string `json:"term,omitempty"`
	ListPrice   Money  `json:"listPrice"`
	SalePrice   Money  `json:"salePrice"`
	OnSale      bool   `json:"onSale"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type DomainResult struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	Unknown   bool   `json:"unknown,omitempty"`
	ListPrice Money  `json:"listPrice"`
	SalePrice Money  `json:"salePrice"`
}

type DomainSearch struct {
	Query       string         `json:"query"`
	Exact       *DomainResult  `json:"exact,omitempty"`
	Suggestions []DomainResult `json:"suggestions"`
}

// TLDPrice is one row of the domain pricing table.
type TLDPrice struct {
	TLD       string `json:"tld"`
	ProductID string `json:"productId"`
	Term      string `json:"term,omitempty"`
	ListPrice Money  `json:"listPrice"`
	SalePrice Money  `json:"salePrice"`
}

type CartItem struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Label     string `json:"label,omitempty"`
	Domain    string `json:"domain,omitempty"`
	Quantity  int    `json:"quantity"`
	Term      string `json:"term,omitempty"`
	ListPrice Money  `json:"listPrice"`
	SalePrice Money  `json:"salePrice"`
}

type Cart struct {
	Items       []CartItem `json:"items"`
	ItemCount   int        `json:"itemCount"`
	Subtotal    Money      `json:"subtotal"`
	CheckoutURL string     `json:"checkoutUrl,omitempty"`
}

type Country struct {
	Code     string `json:"code" yaml:"code"`
	Name     string `json:"name" yaml:"name"`
	Currency string `json:"currency" yaml:"currency"`
	Market   string `json:"market" yaml:"market"`
}

type Agreement struct {
	Key     string `json:"key" yaml:"key"`
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Content string `json:"content,omitempty" yaml:"content"`
}

type Page struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	HTML  string `json:"html,omitempty"`
}

type FAQ struct {
	Topic    string `json:"topic" yaml:"topic"`
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Session is the first-party visitor session. It owns the vendor cart token.
type Session struct {
	ID        string     `json:"id"`
	CartToken string     `json:"-"`
	Items     []CartItem `json:"items"`
	Country   string     `json:"country,omitempty"`
	Currency  string     `json:"currency,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at t.
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// Clone returns a deep copy safe to hand out of a store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Items != nil {
		c.Items = append([]CartItem(nil), s.Items...)
	}
	return &c
}
