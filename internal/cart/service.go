package cart

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/catalog"
	"github.com/drstein77/hostfront/internal/models"
	"github.com/drstein77/hostfront/internal/reseller"
	"github.com/drstein77/hostfront/internal/validation"
)

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrItemNotFound = errors.New("cart item not found")
)

// Upstream is the cart part of the reseller API.
type Upstream interface {
	Cart(ctx context.Context, token, currency, market string) (*reseller.CartResult, error)
	AddToCart(ctx context.Context, token, currency, market string, items []reseller.CartAddItem) (*reseller.CartResult, error)
	RemoveFromCart(ctx context.Context, token, currency, market, itemID string) (*reseller.CartResult, error)
	PLID() string
}

// Sessions applies serialized updates to a visitor session.
type Sessions interface {
	Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error)
}

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
}

type AddItem struct {
	ProductID string `json:"productId" validate:"required,max=128"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=99"`
	Domain    string `json:"domain,omitempty" validate:"omitempty,fqdn"`
}

type AddRequest struct {
	Items []AddItem `json:"items" validate:"required,min=1,max=20,dive"`
}

type Result = catalog.Result[models.Cart]

// Service bridges the visitor session and the vendor cart. Every
// add-to-cart path goes through Add, so all items end up in the one vendor
// cart addressed by the session's token.
type Service struct {
	up          Upstream
	sessions    Sessions
	validate    *validation.Validator
	checkoutURL string
	defCurrency string
	log         Log
}

func NewService(up Upstream, sessions Sessions, v *validation.Validator, checkoutURL, defaultCurrency string, log Log) *Service {
	return &Service{
		up:          up,
		sessions:    sessions,
		validate:    v,
		checkoutURL: strings.TrimRight(checkoutURL, "/"),
		defCurrency: defaultCurrency,
		log:         log,
	}
}

// Add puts items into the vendor cart of the session, priced in m.
// Validation problems are returned as errors; vendor failures come back as
// a fallback result holding the unchanged local cart.
func (s *Service) Add(ctx context.Context, sessionID string, m catalog.Market, req AddRequest) (Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return Result{}, err
	}

	items := make([]reseller.CartAddItem, 0, len(req.Items))
	for _, it := range req.Items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		items = append(items, reseller.CartAddItem{
			ID:       strings.TrimSpace(it.ProductID),
			Quantity: qty,
			Domain:   strings.ToLower(strings.TrimSpace(it.Domain)),
		})
	}

	var (
		cart      models.Cart
		vendorErr error
	)
	sess, err := s.sessions.Update(ctx, sessionID, func(sess *models.Session) error {
		res, err := s.up.AddToCart(ctx, sess.CartToken, m.Currency, m.ID, items)
		if err != nil {
			vendorErr = err
			return nil
		}
		s.apply(sess, res, m, &cart)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if vendorErr != nil {
		s.log.Warn("add to cart failed", zap.String("session", sessionID), zap.Error(vendorErr))
		return Result{Data: s.mirror(sess, m), Fallback: true, Err: vendorErr}, nil
	}

	s.log.Info("items added to cart", zap.String("session", sessionID), zap.Int("items", len(items)))
	return Result{Data: cart}, nil
}

// Get reads the vendor cart. Without a vendor cart yet, the cart is empty.
func (s *Service) Get(ctx context.Context, sessionID string, m catalog.Market) (Result, error) {
	var (
		cart      models.Cart
		vendorErr error
	)
	sess, err := s.sessions.Update(ctx, sessionID, func(sess *models.Session) error {
		if sess.CartToken == "" {
			cart = s.mirror(sess, m)
			return nil
		}
		res, err := s.up.Cart(ctx, sess.CartToken, m.Currency, m.ID)
		if err != nil {
			vendorErr = err
			return nil
		}
		s.apply(sess, res, m, &cart)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if vendorErr != nil {
		s.log.Warn("cart unavailable, serving local copy", zap.String("session", sessionID), zap.Error(vendorErr))
		return Result{Data: s.mirror(sess, m), Fallback: true, Err: vendorErr}, nil
	}
	return Result{Data: cart}, nil
}

// Remove deletes one vendor cart line.
func (s *Service) Remove(ctx context.Context, sessionID string, m catalog.Market, itemID string) (Result, error) {
	var (
		cart      models.Cart
		vendorErr error
	)
	sess, err := s.sessions.Update(ctx, sessionID, func(sess *models.Session) error {
		if sess.CartToken == "" {
			return ErrItemNotFound
		}
		res, err := s.up.RemoveFromCart(ctx, sess.CartToken, m.Currency, m.ID, itemID)
		if errors.Is(err, reseller.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			vendorErr = err
			return nil
		}
		s.apply(sess, res, m, &cart)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if vendorErr != nil {
		s.log.Warn("remove from cart failed", zap.String("session", sessionID), zap.Error(vendorErr))
		return Result{Data: s.mirror(sess, m), Fallback: true, Err: vendorErr}, nil
	}
	return Result{Data: cart}, nil
}

// Clear forgets the vendor cart. The vendor cart itself expires on its own.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	_, err := s.sessions.Update(ctx, sessionID, func(sess *models.Session) error {
		sess.CartToken = ""
		sess.Items = []models.CartItem{}
		return nil
	})
	return err
}

// Checkout returns the vendor url that continues the purchase.
func (s *Service) Checkout(ctx context.Context, sessionID string, m catalog.Market) (string, error) {
	res, err := s.Get(ctx, sessionID, m)
	if err != nil {
		return "", err
	}
	if len(res.Data.Items) == 0 {
		return "", ErrEmptyCart
	}
	if res.Data.CheckoutURL != "" {
		return res.Data.CheckoutURL, nil
	}

	var token string
	_, err = s.sessions.Update(ctx, sessionID, func(sess *models.Session) error {
		token = sess.CartToken
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.handoffURL(token)
}

// handoffURL is used when the vendor did not name a next step.
func (s *Service) handoffURL(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyCart
	}
	u, err := url.Parse(s.checkoutURL + "/")
	if err != nil {
		return "", fmt.Errorf("checkout url: %w", err)
	}
	q := u.Query()
	q.Set("plid", s.up.PLID())
	q.Set("cartToken", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// apply stores the vendor answer on the session and reshapes it into cart.
func (s *Service) apply(sess *models.Session, res *reseller.CartResult, m catalog.Market, cart *models.Cart) {
	sess.CartToken = res.Token
	currency := s.currency(sess, m)

	items := make([]models.CartItem, 0, len(res.Cart.Items))
	for _, it := range res.Cart.Items {
		items = append(items, reshapeItem(it, currency))
	}
	sess.Items = items

	*cart = summarize(items, currency)
	cart.CheckoutURL = res.Cart.NextStepURL
	if sub, err := catalog.ParsePrice(res.Cart.Totals.Subtotal); err == nil {
		cart.Subtotal = models.NewMoney(sub, currency)
	}
}

func (s *Service) mirror(sess *models.Session, m catalog.Market) models.Cart {
	if sess == nil {
		return summarize(nil, s.defCurrency)
	}
	currency := s.currency(sess, m)
	if len(sess.Items) > 0 && sess.Items[0].SalePrice.Currency != "" {
		// the mirror keeps the prices of the last vendor answer
		currency = sess.Items[0].SalePrice.Currency
	}
	return summarize(sess.Items, currency)
}

// currency is the one the request is priced in, else the stored preference.
func (s *Service) currency(sess *models.Session, m catalog.Market) string {
	if m.Currency != "" {
		return strings.ToUpper(m.Currency)
	}
	if sess.Currency != "" {
		return sess.Currency
	}
	return s.defCurrency
}

func reshapeItem(it reseller.VendorCartItem, currency string) models.CartItem {
	list, _ := catalog.ParsePrice(it.ListPrice)
	sale, err := catalog.ParsePrice(it.SalePrice)
	if err != nil {
		sale = list
	}
	qty := it.Quantity
	if qty < 1 {
		qty = 1
	}
	id := it.ItemID
	if id == "" {
		id = it.ID
	}
	return models.CartItem{
		ID:        id,
		ProductID: it.ID,
		Label:     strings.TrimSpace(it.Label),
		Domain:    it.Domain,
		Quantity:  qty,
		Term:      it.Term,
		ListPrice: models.NewMoney(list, currency),
		SalePrice: models.NewMoney(sale, currency),
	}
}

func summarize(items []models.CartItem, currency string) models.Cart {
	var count int
	var subtotal int64
	for _, it := range items {
		count += it.Quantity
		subtotal += it.SalePrice.Cents * int64(it.Quantity)
	}
	return models.Cart{
		Items:     append(make([]models.CartItem, 0, len(items)), items...),
		ItemCount: count,
		Subtotal:  models.NewMoney(subtotal, currency),
	}
}
