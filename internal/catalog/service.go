package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/drstein77/hostfront/internal/models"
	"github.com/drstein77/hostfront/internal/reseller"
)

// defaultFetchTimeout bounds a shared catalog fetch that no caller waits for.
const defaultFetchTimeout = 30 * time.Second

var (
	ErrNotFound        = errors.New("product not found")
	ErrUnknownCategory = errors.New("unknown category")
)

// Upstream is the part of the reseller API the catalog needs.
type Upstream interface {
	Products(ctx context.Context, currency, market string) ([]reseller.VendorProduct, error)
	Product(ctx context.Context, id, currency, market string) (*reseller.VendorProduct, error)
	SearchDomain(ctx context.Context, query, currency, market string) (*reseller.DomainSearchResponse, error)
	Agreements(ctx context.Context, keys []string, market string) ([]reseller.VendorAgreement, error)
}

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
}

// Result carries data together with how it was obtained. When Fallback is
// set, Data is static and Err holds the upstream failure.
type Result[T any] struct {
	Data     T
	Fallback bool
	Err      error
}

// Market selects the currency and market a request is priced in.
type Market struct {
	Currency string
	ID       string
}

func (m Market) key() string {
	return strings.ToUpper(m.Currency) + "|" + m.ID
}

type cacheEntry struct {
	products []models.Product
	expires  time.Time
}

// Service reshapes vendor catalog data for the site.
type Service struct {
	up       Upstream
	fallback *Fallback
	ttl      time.Duration
	log      Log
	policy   *bluemonday.Policy
	now      func() time.Time

	fetchTimeout time.Duration

	mx    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group
}

func NewService(up Upstream, fallback *Fallback, ttl time.Duration, log Log) *Service {
	if fallback == nil {
		fallback = DefaultFallback()
	}
	return &Service{
		up:       up,
		fallback: fallback,
		ttl:      ttl,
		log:      log,
		policy:   bluemonday.UGCPolicy(),
		now:      time.Now,
		cache:    make(map[string]cacheEntry),

		fetchTimeout: defaultFetchTimeout,
	}
}

// Products returns the whole catalog for m. Concurrent misses share one
// vendor call; it runs detached from any single caller, so one caller
// giving up does not fail the others.
func (s *Service) Products(ctx context.Context, m Market) Result[[]models.Product] {
	if cached, ok := s.cached(m); ok {
		return Result[[]models.Product]{Data: cached}
	}

	ch := s.group.DoChan(m.key(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		vendor, err := s.up.Products(fetchCtx, m.Currency, m.ID)
		if err != nil {
			return nil, err
		}
		products := make([]models.Product, 0, len(vendor))
		for _, vp := range vendor {
			products = append(products, s.reshape(vp, m.Currency))
		}
		s.store(m, products)
		s.log.Info("catalog refreshed", zap.String("market", m.key()), zap.Int("count", len(products)))
		return products, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return Result[[]models.Product]{Data: res.Val.([]models.Product)}
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.log.Warn("catalog unavailable, serving fallback", zap.String("market", m.key()), zap.Error(err))
	return Result[[]models.Product]{Data: s.fallbackProducts(), Fallback: true, Err: err}
}

// Product returns one product. The error is only ever ErrNotFound; upstream
// failures are reported through the result.
func (s *Service) Product(ctx context.Context, id string, m Market) (Result[models.Product], error) {
	if cached, ok := s.cached(m); ok {
		for _, p := range cached {
			if p.ID == id {
				return Result[models.Product]{Data: p}, nil
			}
		}
	}

	vp, err := s.up.Product(ctx, id, m.Currency, m.ID)
	if err == nil {
		return Result[models.Product]{Data: s.reshape(*vp, m.Currency)}, nil
	}
	if errors.Is(err, reseller.ErrNotFound) {
		return Result[models.Product]{}, ErrNotFound
	}

	s.log.Warn("product unavailable, trying fallback", zap.String("id", id), zap.Error(err))
	if p, ok := s.fallback.product(id); ok {
		return Result[models.Product]{Data: p, Fallback: true, Err: err}, nil
	}
	return Result[models.Product]{Fallback: true, Err: err}, ErrNotFound
}

// Hosting returns the plans of one marketing section, cheapest first.
func (s *Service) Hosting(ctx context.Context, category string, m Market) (Result[[]models.Product], error) {
	category = strings.ToLower(category)
	if !KnownCategory(category) {
		return Result[[]models.Product]{}, ErrUnknownCategory
	}

	all := s.Products(ctx, m)
	plans := make([]models.Product, 0)
	for _, p := range all.Data {
		if p.Category == category {
			plans = append(plans, p)
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].SalePrice.Cents < plans[j].SalePrice.Cents
	})
	return Result[[]models.Product]{Data: plans, Fallback: all.Fallback, Err: all.Err}, nil
}

// Invalidate drops every cached catalog.
func (s *Service) Invalidate() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.cache = make(map[string]cacheEntry)
}

func (s *Service) reshape(vp reseller.VendorProduct, currency string) models.Product {
	list, listErr := ParsePrice(vp.ListPrice)
	sale, saleErr := ParsePrice(vp.SalePrice)
	if saleErr != nil {
		sale = list
	}
	if listErr != nil {
		list = sale
	}

	return models.Product{
		ID:          vp.ID,
		Title:       strings.TrimSpace(vp.Title),
		Category:    CategoryOf(vp.ID),
		Description: s.policy.Sanitize(vp.Content),
		Term:        vp.Term,
		ListPrice:   models.NewMoney(list, currency),
		SalePrice:   models.NewMoney(sale, currency),
		OnSale:      sale < list,
		ImageURL:    vp.ImageURL,
	}
}

func (s *Service) cached(m Market) ([]models.Product, bool) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	e, ok := s.cache[m.key()]
	if !ok || !s.now().Before(e.expires) {
		return nil, false
	}
	return e.products, true
}

func (s *Service) store(m Market, products []models.Product) {
	if s.ttl <= 0 {
		return
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	s.cache[m.key()] = cacheEntry{products: products, expires: s.now().Add(s.ttl)}
}

func (s *Service) fallbackProducts() []models.Product {
	return append([]models.Product(nil), s.fallback.Products...)
}
