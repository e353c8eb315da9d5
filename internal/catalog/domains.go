package catalog

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/drstein77/hostfront/internal/models"
	"github.com/drstein77/hostfront/internal/reseller"
)

const (
	MaxBulkDomains = 20
	bulkWorkers    = 4
)

var (
	ErrInvalidDomain = errors.New("invalid domain query")
	ErrTooManyNames  = errors.New("too many domains in one request")
)

var domainRe = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// NormalizeDomain turns free text into a searchable domain: lower case,
// no scheme, no "www.", no path, ".com" when no TLD was typed.
func NormalizeDomain(q string) (string, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	for _, p := range []string{"https://", "http://"} {
		q = strings.TrimPrefix(q, p)
	}
	q = strings.TrimPrefix(q, "www.")
	if i := strings.IndexAny(q, "/?#"); i >= 0 {
		q = q[:i]
	}
	q = strings.Join(strings.Fields(q), "")
	q = strings.TrimSuffix(q, ".")
	if q == "" {
		return "", ErrInvalidDomain
	}
	if !strings.Contains(q, ".") {
		q += ".com"
	}
	if !domainRe.MatchString(q) {
		return "", ErrInvalidDomain
	}
	return q, nil
}

// SearchDomain checks availability of q and collects vendor suggestions.
func (s *Service) SearchDomain(ctx context.Context, q string, m Market) (Result[models.DomainSearch], error) {
	domain, err := NormalizeDomain(q)
	if err != nil {
		return Result[models.DomainSearch]{}, err
	}

	resp, err := s.up.SearchDomain(ctx, domain, m.Currency, m.ID)
	if err != nil {
		s.log.Warn("domain search unavailable, serving fallback", zap.String("domain", domain), zap.Error(err))
		return Result[models.DomainSearch]{Data: s.fallbackSearch(domain), Fallback: true, Err: err}, nil
	}

	out := models.DomainSearch{Query: domain, Suggestions: make([]models.DomainResult, 0, len(resp.SuggestedDomains))}
	if resp.ExactMatchDomain != nil {
		exact := reshapeDomain(*resp.ExactMatchDomain, m.Currency)
		out.Exact = &exact
	}
	for _, d := range resp.SuggestedDomains {
		out.Suggestions = append(out.Suggestions, reshapeDomain(d, m.Currency))
	}
	return Result[models.DomainSearch]{Data: out}, nil
}

// BulkSearch checks several names at once. Failures of single names turn
// into fallback entries; the batch itself only fails on bad input.
func (s *Service) BulkSearch(ctx context.Context, names []string, m Market) (Result[[]models.DomainResult], error) {
	if len(names) > MaxBulkDomains {
		return Result[[]models.DomainResult]{}, ErrTooManyNames
	}

	domains := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		d, err := NormalizeDomain(n)
		if err != nil {
			return Result[[]models.DomainResult]{}, err
		}
		if !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}

	results := make([]models.DomainResult, len(domains))
	fallback := make([]bool, len(domains))
	errs := make([]error, len(domains))

	// workers never fail; a name the vendor cannot check becomes a fallback entry
	var g errgroup.Group
	g.SetLimit(bulkWorkers)
	for i, d := range domains {
		i, d := i, d
		g.Go(func() error {
			resp, err := s.up.SearchDomain(ctx, d, m.Currency, m.ID)
			if err != nil || resp.ExactMatchDomain == nil {
				if err == nil {
					err = errors.New("no exact match in vendor answer")
				}
				results[i] = *s.fallbackSearch(d).Exact
				fallback[i], errs[i] = true, err
				return nil
			}
			results[i] = reshapeDomain(*resp.ExactMatchDomain, m.Currency)
			return nil
		})
	}
	_ = g.Wait()

	res := Result[[]models.DomainResult]{Data: results}
	for i := range domains {
		if fallback[i] {
			res.Fallback = true
			res.Err = errors.Join(res.Err, errs[i])
		}
	}
	if res.Fallback {
		s.log.Warn("bulk domain search partially served from fallback", zap.Error(res.Err))
	}
	return res, nil
}

// DomainPricing builds the TLD price table from the catalog's domain products.
func (s *Service) DomainPricing(ctx context.Context, m Market) Result[[]models.TLDPrice] {
	all := s.Products(ctx, m)
	return Result[[]models.TLDPrice]{Data: tldTable(all.Data), Fallback: all.Fallback, Err: all.Err}
}

func tldTable(products []models.Product) []models.TLDPrice {
	table := make([]models.TLDPrice, 0)
	for _, p := range products {
		if p.Category != CategoryDomain {
			continue
		}
		tld := tldOf(p.ID)
		if tld == "" {
			continue
		}
		table = append(table, models.TLDPrice{
			TLD:       tld,
			ProductID: p.ID,
			Term:      p.Term,
			ListPrice: p.ListPrice,
			SalePrice: p.SalePrice,
		})
	}
	sort.SliceStable(table, func(i, j int) bool { return table[i].SalePrice.Cents < table[j].SalePrice.Cents })
	return table
}

// fallbackSearch marks availability unknown and prices from the static
// TLD table; suggestions reuse the label with the other static TLDs.
func (s *Service) fallbackSearch(domain string) models.DomainSearch {
	table := tldTable(s.fallback.Products)
	label, tld := splitDomain(domain)

	out := models.DomainSearch{Query: domain, Suggestions: make([]models.DomainResult, 0, len(table))}
	exact := models.DomainResult{Domain: domain, Unknown: true}
	for _, row := range table {
		if row.TLD == tld {
			exact.ListPrice, exact.SalePrice = row.ListPrice, row.SalePrice
			continue
		}
		out.Suggestions = append(out.Suggestions, models.DomainResult{
			Domain:    label + row.TLD,
			Unknown:   true,
			ListPrice: row.ListPrice,
			SalePrice: row.SalePrice,
		})
	}
	out.Exact = &exact
	return out
}

func splitDomain(domain string) (label, tld string) {
	i := strings.Index(domain, ".")
	if i < 0 {
		return domain, ""
	}
	return domain[:i], domain[i:]
}

func reshapeDomain(d reseller.VendorDomain, currency string) models.DomainResult {
	list, _ := ParsePrice(d.ListPrice)
	sale, err := ParsePrice(d.SalePrice)
	if err != nil {
		sale = list
	}
	return models.DomainResult{
		Domain:    strings.ToLower(d.Domain),
		Available: d.Available,
		ListPrice: models.NewMoney(list, currency),
		SalePrice: models.NewMoney(sale, currency),
	}
}
