package catalog

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drstein77/hostfront/internal/logger"
	"github.com/drstein77/hostfront/internal/models"
	"github.com/drstein77/hostfront/internal/reseller"
)

type fakeUpstream struct {
	mu           sync.Mutex
	productCalls int

	products   func() ([]reseller.VendorProduct, error)
	product    func(id string) (*reseller.VendorProduct, error)
	search     func(q string) (*reseller.DomainSearchResponse, error)
	agreements func(keys []string) ([]reseller.VendorAgreement, error)
}

func (f *fakeUpstream) Products(context.Context, string, string) ([]reseller.VendorProduct, error) {
	f.mu.Lock()
	f.productCalls++
	f.mu.Unlock()
	return f.products()
}

func (f *fakeUpstream) Product(_ context.Context, id, _, _ string) (*reseller.VendorProduct, error) {
	return f.product(id)
}

func (f *fakeUpstream) SearchDomain(_ context.Context, q, _, _ string) (*reseller.DomainSearchResponse, error) {
	return f.search(q)
}

func (f *fakeUpstream) Agreements(_ context.Context, keys []string, _ string) ([]reseller.VendorAgreement, error) {
	return f.agreements(keys)
}

func (f *fakeUpstream) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.productCalls
}

var errDown = errors.New("vendor down")

var usd = Market{Currency: "USD", ID: "en-US"}

func vendorCatalog() ([]reseller.VendorProduct, error) {
	return []reseller.VendorProduct{
		{ID: "cpanel-deluxe", Title: " Deluxe ", ListPrice: "$14.99", SalePrice: "$8.99", Term: "month",
			Content: `<p>Fast</p><script>alert(1)</script>`},
		{ID: "cpanel-starter", Title: "Starter", ListPrice: "$9.99", SalePrice: "$5.99", Term: "month"},
		{ID: "domain-com", Title: ".com", ListPrice: "$21.99", SalePrice: "$11.99", Term: "year"},
		{ID: "ssl-standard", Title: "SSL", ListPrice: "$99.99", SalePrice: "", Term: "year"},
	}, nil
}

func newService(up Upstream) *Service {
	return NewService(up, nil, time.Minute, logger.Nop())
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"$9.99", 999},
		{"$1,234.56", 123456},
		{"€9,99", 999},
		{"1.234,56 €", 123456},
		{"¥1,200", 120000},
		{"US$ 0.5", 50},
		{"$12", 1200},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParsePrice("free")
	assert.ErrorIs(t, err, ErrBadPrice)
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryHosting, CategoryOf("cpanel-starter"))
	assert.Equal(t, CategoryWordPress, CategoryOf("wordpress-hosting-basic"))
	assert.Equal(t, CategoryEmail, CategoryOf("email-essentials"))
	assert.Equal(t, CategorySSL, CategoryOf("SSL-standard"))
	assert.Equal(t, CategoryDomain, CategoryOf("domain-com"))
	assert.Equal(t, CategoryOther, CategoryOf("website-builder-x"))
	assert.Equal(t, ".co.uk", tldOf("tld-co-uk"))
}

func TestProductsReshapesAndCaches(t *testing.T) {
	up := &fakeUpstream{products: vendorCatalog}
	s := newService(up)

	res := s.Products(context.Background(), usd)
	require.False(t, res.Fallback)
	require.Len(t, res.Data, 4)

	deluxe := res.Data[0]
	assert.Equal(t, "Deluxe", deluxe.Title)
	assert.Equal(t, CategoryHosting, deluxe.Category)
	assert.Equal(t, int64(1499), deluxe.ListPrice.Cents)
	assert.Equal(t, "$8.99", deluxe.SalePrice.Display)
	assert.True(t, deluxe.OnSale)
	assert.Contains(t, deluxe.Description, "<p>Fast</p>")
	assert.NotContains(t, deluxe.Description, "script")

	ssl := res.Data[3]
	assert.Equal(t, ssl.ListPrice.Cents, ssl.SalePrice.Cents)
	assert.False(t, ssl.OnSale)

	s.Products(context.Background(), usd)
	assert.Equal(t, 1, up.calls())

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	s.Products(context.Background(), usd)
	assert.Equal(t, 2, up.calls())
}

func TestProductsFallback(t *testing.T) {
	up := &fakeUpstream{products: func() ([]reseller.VendorProduct, error) { return nil, errDown }}
	s := newService(up)

	res := s.Products(context.Background(), usd)
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, errDown)
	assert.NotEmpty(t, res.Data)

	s.Products(context.Background(), usd)
	assert.Equal(t, 2, up.calls(), "fallback data must not be cached")
}

func TestProduct(t *testing.T) {
	up := &fakeUpstream{product: func(id string) (*reseller.VendorProduct, error) {
		switch id {
		case "cpanel-starter":
			return &reseller.VendorProduct{ID: id, ListPrice: "$9.99", SalePrice: "$5.99"}, nil
		case "missing":
			return nil, &reseller.APIError{Status: 404}
		default:
			return nil, errDown
		}
	}}
	s := newService(up)

	res, err := s.Product(context.Background(), "cpanel-starter", usd)
	require.NoError(t, err)
	assert.Equal(t, int64(599), res.Data.SalePrice.Cents)

	_, err = s.Product(context.Background(), "missing", usd)
	assert.ErrorIs(t, err, ErrNotFound)

	res, err = s.Product(context.Background(), "wordpress-basic", usd)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "Managed WordPress Basic", res.Data.Title)

	_, err = s.Product(context.Background(), "nothing-like-it", usd)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHosting(t *testing.T) {
	s := newService(&fakeUpstream{products: vendorCatalog})

	res, err := s.Hosting(context.Background(), "Hosting", usd)
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "cpanel-starter", res.Data[0].ID)
	assert.Equal(t, "cpanel-deluxe", res.Data[1].ID)

	_, err = s.Hosting(context.Background(), "games", usd)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestNormalizeDomain(t *testing.T) {
	tests := map[string]string{
		"Example":                     "example.com",
		"https://www.Example.org/x?y": "example.org",
		" my site.io ":                "mysite.io",
		"shop.co.uk.":                 "shop.co.uk",
	}
	for in, want := range tests {
		got, err := NormalizeDomain(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "   ", "-bad-.com", "a_b.com"} {
		_, err := NormalizeDomain(bad)
		assert.ErrorIs(t, err, ErrInvalidDomain, bad)
	}
}

func TestSearchDomain(t *testing.T) {
	up := &fakeUpstream{search: func(q string) (*reseller.DomainSearchResponse, error) {
		return &reseller.DomainSearchResponse{
			ExactMatchDomain: &reseller.VendorDomain{Domain: q, Available: true, ListPrice: "$21.99", SalePrice: "$11.99"},
			SuggestedDomains: []reseller.VendorDomain{{Domain: "Example.NET", Available: true, ListPrice: "$23.99"}},
		}, nil
	}}
	s := newService(up)

	res, err := s.SearchDomain(context.Background(), "example", usd)
	require.NoError(t, err)
	require.NotNil(t, res.Data.Exact)
	assert.Equal(t, "example.com", res.Data.Exact.Domain)
	assert.True(t, res.Data.Exact.Available)
	require.Len(t, res.Data.Suggestions, 1)
	assert.Equal(t, "example.net", res.Data.Suggestions[0].Domain)
	assert.Equal(t, int64(2399), res.Data.Suggestions[0].SalePrice.Cents)
}

func TestSearchDomainFallback(t *testing.T) {
	s := newService(&fakeUpstream{search: func(string) (*reseller.DomainSearchResponse, error) { return nil, errDown }})

	res, err := s.SearchDomain(context.Background(), "example.com", usd)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.NotNil(t, res.Data.Exact)
	assert.True(t, res.Data.Exact.Unknown)
	assert.False(t, res.Data.Exact.Available)
	assert.Equal(t, int64(1199), res.Data.Exact.SalePrice.Cents)
	for _, sug := range res.Data.Suggestions {
		assert.True(t, strings.HasPrefix(sug.Domain, "example."))
		assert.NotEqual(t, "example.com", sug.Domain)
	}

	_, err = s.SearchDomain(context.Background(), "", usd)
	assert.ErrorIs(t, err, ErrInvalidDomain)
}

func TestBulkSearch(t *testing.T) {
	up := &fakeUpstream{search: func(q string) (*reseller.DomainSearchResponse, error) {
		if q == "broken.com" {
			return nil, errDown
		}
		return &reseller.DomainSearchResponse{
			ExactMatchDomain: &reseller.VendorDomain{Domain: q, Available: true, SalePrice: "$1.00"},
		}, nil
	}}
	s := newService(up)

	res, err := s.BulkSearch(context.Background(), []string{"alpha", "broken.com", "beta.net", "ALPHA.com"}, usd)
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "alpha.com", res.Data[0].Domain)
	assert.True(t, res.Data[0].Available)
	assert.Equal(t, "broken.com", res.Data[1].Domain)
	assert.True(t, res.Data[1].Unknown)
	assert.Equal(t, "beta.net", res.Data[2].Domain)
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, errDown)

	many := make([]string, MaxBulkDomains+1)
	for i := range many {
		many[i] = "x.com"
	}
	_, err = s.BulkSearch(context.Background(), many, usd)
	assert.ErrorIs(t, err, ErrTooManyNames)
}

func TestDomainPricingFromFallback(t *testing.T) {
	s := newService(&fakeUpstream{products: func() ([]reseller.VendorProduct, error) { return nil, errDown }})

	res := s.DomainPricing(context.Background(), usd)
	assert.True(t, res.Fallback)
	require.NotEmpty(t, res.Data)
	for i := 1; i < len(res.Data); i++ {
		assert.LessOrEqual(t, res.Data[i-1].SalePrice.Cents, res.Data[i].SalePrice.Cents)
	}
	assert.Equal(t, ".org", res.Data[0].TLD)
}

func TestAgreements(t *testing.T) {
	var asked []string
	up := &fakeUpstream{agreements: func(keys []string) ([]reseller.VendorAgreement, error) {
		asked = keys
		return []reseller.VendorAgreement{{AgreementKey: "DNRA", Title: "Registration", Content: `<b onclick="x()">terms</b>`}}, nil
	}}
	s := newService(up)

	res := s.Agreements(context.Background(), []string{"dnra, utos"}, "en-US")
	assert.Equal(t, []string{"DNRA", "UTOS"}, asked)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "<b>terms</b>", res.Data[0].Content)

	s = newService(&fakeUpstream{agreements: func([]string) ([]reseller.VendorAgreement, error) { return nil, errDown }})
	res = s.Agreements(context.Background(), []string{"DNRA"}, "en-US")
	assert.True(t, res.Fallback)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "DNRA", res.Data[0].Key)

	res = s.Agreements(context.Background(), nil, "en-US")
	assert.Len(t, res.Data, len(DefaultAgreementKeys))
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, DefaultFallback().Products[:1]))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,title,category,term,list,sale,currency", lines[0])
	assert.Equal(t, "cpanel-starter,Web Hosting Economy,hosting,month,9.99,5.99,USD", lines[1])
}

// slowUpstream holds Products until release is closed and records whether
// the shared fetch saw a cancelled context.
type slowUpstream struct {
	*fakeUpstream
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	ctxErr  atomic.Value
}

func (u *slowUpstream) Products(ctx context.Context, currency, market string) ([]reseller.VendorProduct, error) {
	u.once.Do(func() { close(u.entered) })
	<-u.release
	if err := ctx.Err(); err != nil {
		u.ctxErr.Store(err)
		return nil, err
	}
	return vendorCatalog()
}

func TestProductsSharedFetchOutlivesCancelledCaller(t *testing.T) {
	up := &slowUpstream{fakeUpstream: &fakeUpstream{}, entered: make(chan struct{}), release: make(chan struct{})}
	svc := newService(up)

	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan Result[[]models.Product], 1)
	go func() { resA <- svc.Products(ctxA, usd) }()
	<-up.entered

	resB := make(chan Result[[]models.Product], 1)
	go func() { resB <- svc.Products(context.Background(), usd) }()

	cancelA()
	a := <-resA
	assert.True(t, a.Fallback, "the caller that gave up gets the fallback")
	assert.ErrorIs(t, a.Err, context.Canceled)

	close(up.release)
	b := <-resB
	assert.False(t, b.Fallback, "a healthy caller is not failed by another caller's cancel")
	assert.NoError(t, b.Err)
	assert.Len(t, b.Data, 4)
	assert.Nil(t, up.ctxErr.Load())

	cached := svc.Products(context.Background(), usd)
	assert.False(t, cached.Fallback)
}
