package cart

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drstein77/hostfront/internal/catalog"
	"github.com/drstein77/hostfront/internal/logger"
	"github.com/drstein77/hostfront/internal/models"
	"github.com/drstein77/hostfront/internal/reseller"
	"github.com/drstein77/hostfront/internal/session"
	"github.com/drstein77/hostfront/internal/storage"
	"github.com/drstein77/hostfront/internal/validation"
)

// fakeVendor keeps one cart per token and rotates the token on every write.
type fakeVendor struct {
	mu       sync.Mutex
	carts    map[string][]reseller.VendorCartItem
	seen     []string
	seq      int
	down     bool
	nextStep string
	markets  []string
}

func newFakeVendor() *fakeVendor {
	return &fakeVendor{carts: make(map[string][]reseller.VendorCartItem)}
}

func (f *fakeVendor) result(token string) *reseller.CartResult {
	res := &reseller.CartResult{Token: token}
	res.Cart.Items = append([]reseller.VendorCartItem(nil), f.carts[token]...)
	res.Cart.NextStepURL = f.nextStep
	return res
}

func (f *fakeVendor) rotate(old string) string {
	f.seq++
	tok := fmt.Sprintf("t%d", f.seq)
	f.carts[tok] = f.carts[old]
	delete(f.carts, old)
	return tok
}

func (f *fakeVendor) Cart(_ context.Context, token, _, _ string) (*reseller.CartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("vendor down")
	}
	return f.result(token), nil
}

func (f *fakeVendor) AddToCart(_ context.Context, token, currency, market string, items []reseller.CartAddItem) (*reseller.CartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, token)
	f.markets = append(f.markets, currency+"|"+market)
	if f.down {
		return nil, errors.New("vendor down")
	}
	tok := f.rotate(token)
	for _, it := range items {
		f.carts[tok] = append(f.carts[tok], reseller.VendorCartItem{
			ItemID:    fmt.Sprintf("line-%d", len(f.carts[tok])+1),
			ID:        it.ID,
			Domain:    it.Domain,
			Quantity:  it.Quantity,
			SalePrice: "$10.00",
			ListPrice: "$12.00",
		})
	}
	return f.result(tok), nil
}

func (f *fakeVendor) RemoveFromCart(_ context.Context, token, _, _, itemID string) (*reseller.CartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("vendor down")
	}
	lines := f.carts[token]
	for i, l := range lines {
		if l.ItemID == itemID {
			f.carts[token] = append(lines[:i:i], lines[i+1:]...)
			return f.result(token), nil
		}
	}
	return nil, &reseller.APIError{Status: 404}
}

func (f *fakeVendor) PLID() string { return "123456" }

var usd = catalog.Market{Currency: "USD", ID: "en-US"}

func setup(t *testing.T) (*Service, *fakeVendor, *storage.MemoryStorage, string) {
	t.Helper()
	return setupWithKeeper(t, nil)
}

func setupWithKeeper(t *testing.T, keeper storage.Keeper) (*Service, *fakeVendor, *storage.MemoryStorage, string) {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemoryStorage(ctx, keeper, logger.Nop())
	mgr := session.NewManager(session.NewCodec([]byte("s"), session.CookieName, false, time.Hour), st, time.Hour, logger.Nop())
	require.NoError(t, st.Create(ctx, &models.Session{ID: "sess", ExpiresAt: time.Now().Add(time.Hour)}))

	vendor := newFakeVendor()
	svc := NewService(vendor, mgr, validation.New(), "https://cart.example.com", "USD", logger.Nop())
	return svc, vendor, st, "sess"
}

func TestAddPathsShareOneVendorCart(t *testing.T) {
	svc, vendor, st, id := setup(t)
	ctx := context.Background()

	// a hosting plan from the pricing table
	res, err := svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "cpanel-starter"}}})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, 1, res.Data.ItemCount)

	// a domain from the search page
	res, err = svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "domain", Domain: "Example.com", Quantity: 2}}})
	require.NoError(t, err)
	require.Len(t, res.Data.Items, 2)
	assert.Equal(t, "example.com", res.Data.Items[1].Domain)
	assert.Equal(t, 3, res.Data.ItemCount)
	assert.Equal(t, int64(3000), res.Data.Subtotal.Cents)

	assert.Equal(t, []string{"", "t1"}, vendor.seen, "second add must reuse the token of the first")
	sess, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "t2", sess.CartToken)
	assert.Len(t, sess.Items, 2)
}

func TestAddValidation(t *testing.T) {
	svc, vendor, _, id := setup(t)

	_, err := svc.Add(context.Background(), id, usd, AddRequest{Items: []AddItem{{ProductID: "", Quantity: 500, Domain: "not a domain"}}})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].productId")
	assert.Contains(t, verr.Fields, "items[0].quantity")
	assert.Contains(t, verr.Fields, "items[0].domain")

	_, err = svc.Add(context.Background(), id, usd, AddRequest{})
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, vendor.seen)
}

func TestVendorFailuresFallBackToLocalCart(t *testing.T) {
	svc, vendor, _, id := setup(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "ssl-standard"}}})
	require.NoError(t, err)

	vendor.down = true
	res, err := svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "email-essentials"}}})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Error(t, res.Err)
	require.Len(t, res.Data.Items, 1)
	assert.Equal(t, "ssl-standard", res.Data.Items[0].ProductID)

	res, err = svc.Get(ctx, id, usd)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Len(t, res.Data.Items, 1)
}

func TestGetWithoutVendorCart(t *testing.T) {
	svc, _, _, id := setup(t)

	res, err := svc.Get(context.Background(), id, usd)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.NotNil(t, res.Data.Items)
	assert.Empty(t, res.Data.Items)
	assert.Equal(t, "USD", res.Data.Subtotal.Currency)

	_, err = svc.Get(context.Background(), "no-such-session", usd)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestRemove(t *testing.T) {
	svc, _, _, id := setup(t)
	ctx := context.Background()

	_, err := svc.Remove(ctx, id, usd, "line-1")
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "a"}, {ProductID: "b"}}})
	require.NoError(t, err)

	res, err := svc.Remove(ctx, id, usd, "line-1")
	require.NoError(t, err)
	require.Len(t, res.Data.Items, 1)
	assert.Equal(t, "b", res.Data.Items[0].ProductID)

	_, err = svc.Remove(ctx, id, usd, "line-9")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestCheckout(t *testing.T) {
	svc, vendor, _, id := setup(t)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, id, usd)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "cpanel-starter"}}})
	require.NoError(t, err)

	redirect, err := svc.Checkout(ctx, id, usd)
	require.NoError(t, err)
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "cart.example.com", u.Host)
	assert.Equal(t, "123456", u.Query().Get("plid"))
	assert.Equal(t, "t1", u.Query().Get("cartToken"))

	vendor.nextStep = "https://cart.example.com/go?x=1"
	redirect, err = svc.Checkout(ctx, id, usd)
	require.NoError(t, err)
	assert.Equal(t, "https://cart.example.com/go?x=1", redirect)
}

func TestClear(t *testing.T) {
	svc, _, st, id := setup(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "a"}}})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, id))

	sess, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, sess.CartToken)
	assert.Empty(t, sess.Items)
}

// brokenKeeper accepts nothing, like a database that went away.
type brokenKeeper struct{}

var errDBGone = errors.New("db gone")

func (brokenKeeper) LoadSessions(context.Context) ([]*models.Session, error) { return nil, nil }
func (brokenKeeper) SaveSession(context.Context, *models.Session) error      { return errDBGone }
func (brokenKeeper) DeleteSession(context.Context, string) error             { return errDBGone }
func (brokenKeeper) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errDBGone
}
func (brokenKeeper) Ping(context.Context) bool { return false }
func (brokenKeeper) Close() bool               { return true }

func TestAddSurvivesDatabaseFailure(t *testing.T) {
	svc, vendor, st, id := setupWithKeeper(t, brokenKeeper{})
	ctx := context.Background()

	res, err := svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "cpanel-starter"}}})
	require.NoError(t, err, "the vendor cart changed, so the add is reported")
	assert.False(t, res.Fallback)
	assert.Equal(t, 1, res.Data.ItemCount)

	res, err = svc.Add(ctx, id, usd, AddRequest{Items: []AddItem{{ProductID: "ssl-standard"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Data.ItemCount)

	assert.Equal(t, []string{"", "t1"}, vendor.seen, "the rotated token is kept in memory")
	sess, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "t2", sess.CartToken)
	assert.Len(t, sess.Items, 2)
}

func TestVendorCallsCarryTheMarket(t *testing.T) {
	svc, vendor, _, id := setup(t)
	ctx := context.Background()

	eur := catalog.Market{Currency: "EUR", ID: "de-DE"}
	res, err := svc.Add(ctx, id, eur, AddRequest{Items: []AddItem{{ProductID: "cpanel-starter"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR|de-DE"}, vendor.markets)
	assert.Equal(t, "EUR", res.Data.Subtotal.Currency)

	// the local copy keeps the currency it was priced in
	vendor.down = true
	res, err = svc.Get(ctx, id, usd)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "EUR", res.Data.Subtotal.Currency)
}
