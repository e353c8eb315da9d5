package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/cart"
	"github.com/drstein77/hostfront/internal/catalog"
	"github.com/drstein77/hostfront/internal/content"
	"github.com/drstein77/hostfront/internal/countries"
	"github.com/drstein77/hostfront/internal/middleware"
	"github.com/drstein77/hostfront/internal/models"
	"github.com/drstein77/hostfront/internal/session"
	"github.com/drstein77/hostfront/internal/validation"
)

const maxRequestBody = 1 << 20

var errBadJSON = errors.New("malformed JSON body")

// Catalog is the read side of the storefront.
type Catalog interface {
	Products(ctx context.Context, m catalog.Market) catalog.Result[[]models.Product]
	Product(ctx context.Context, id string, m catalog.Market) (catalog.Result[models.Product], error)
	Hosting(ctx context.Context, category string, m catalog.Market) (catalog.Result[[]models.Product], error)
	SearchDomain(ctx context.Context, q string, m catalog.Market) (catalog.Result[models.DomainSearch], error)
	BulkSearch(ctx context.Context, names []string, m catalog.Market) (catalog.Result[[]models.DomainResult], error)
	DomainPricing(ctx context.Context, m catalog.Market) catalog.Result[[]models.TLDPrice]
	Agreements(ctx context.Context, keys []string, market string) catalog.Result[[]models.Agreement]
}

// Cart is the session's vendor cart.
type Cart interface {
	Add(ctx context.Context, sessionID string, m catalog.Market, req cart.AddRequest) (cart.Result, error)
	Get(ctx context.Context, sessionID string, m catalog.Market) (cart.Result, error)
	Remove(ctx context.Context, sessionID string, m catalog.Market, itemID string) (cart.Result, error)
	Clear(ctx context.Context, sessionID string) error
	Checkout(ctx context.Context, sessionID string, m catalog.Market) (string, error)
}

// Sessions resolves and updates visitor sessions.
type Sessions interface {
	Middleware(http.Handler) http.Handler
	Load(r *http.Request) (*models.Session, error)
	Ensure(w http.ResponseWriter, r *http.Request) (*models.Session, error)
	Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error)
}

// Health reports whether the session database answers.
type Health interface {
	Ping(context.Context) bool
}

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Deps are the services the HTTP API is built on.
type Deps struct {
	Catalog   Catalog
	Cart      Cart
	Sessions  Sessions
	Countries *countries.Directory
	Content   *content.Library
	Health    Health
	Validator *validation.Validator
	Origins   []string
}

// BaseController struct for handling requests
type BaseController struct {
	catalog   Catalog
	carts     Cart
	sessions  Sessions
	countries *countries.Directory
	content   *content.Library
	health    Health
	validate  *validation.Validator
	origins   []string
	log       Log
}

// NewBaseController creates a new BaseController instance
func NewBaseController(d Deps, log Log) *BaseController {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if len(d.Origins) == 0 {
		d.Origins = []string{"*"}
	}
	return &BaseController{
		catalog:   d.Catalog,
		carts:     d.Cart,
		sessions:  d.Sessions,
		countries: d.Countries,
		content:   d.Content,
		health:    d.Health,
		validate:  d.Validator,
		origins:   d.Origins,
		log:       log,
	}
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(h.log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: allowCredentials(h.origins),
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CompressResponseMiddleware)
		r.Use(h.sessions.Middleware)

		r.Get("/api/products", h.getProducts)
		r.Get("/api/products/{id}", h.getProduct)
		r.Get("/api/hosting/{category}", h.getHosting)

		r.Get("/api/domains/search", h.searchDomain)
		r.Post("/api/domains/bulk", h.bulkSearch)
		r.Get("/api/domains/pricing", h.domainPricing)
		r.Get("/api/legal/agreements", h.getAgreements)

		r.Get("/api/pages", h.listPages)
		r.Get("/api/pages/{slug}", h.getPage)
		r.Get("/api/faq", h.getFAQ)
		r.Get("/api/countries", h.listCountries)
		r.Get("/api/preferences", h.getPreferences)
		r.Put("/api/preferences", h.putPreferences)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addToCart)
			r.Delete("/items/{id}", h.removeFromCart)
			r.Post("/checkout", h.checkout)
		})
	})

	// archives are compressed already
	r.Group(func(r chi.Router) {
		r.Use(h.sessions.Middleware)
		r.Get("/api/prices/export", h.exportPrices)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusNotFound, models.Envelope{Error: "route not found"})
	})

	return r
}

// allowCredentials is true only for an explicit origin list; a wildcard
// would let any site send the visitor's session cookie.
func allowCredentials(origins []string) bool {
	for _, o := range origins {
		if strings.Contains(o, "*") {
			return false
		}
	}
	return len(origins) > 0
}

func (h *BaseController) healthz(w http.ResponseWriter, r *http.Request) {
	db := h.health != nil && h.health.Ping(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "ok", "database": db}); err != nil {
		h.log.Error("failed to encode health", zap.Error(err))
	}
}

// market resolves the country of the request and the currency and market
// it is priced in. Query parameters win over the stored preference.
func (h *BaseController) market(r *http.Request) (catalog.Market, models.Country) {
	var sess *models.Session
	if s, err := h.sessions.Load(r); err == nil {
		sess = s
	}
	pref := ""
	if sess != nil {
		pref = sess.Country
	}

	country := h.countries.Resolve(r, pref)
	m := catalog.Market{Currency: country.Currency, ID: country.Market}

	q := r.URL.Query()
	if sess != nil && sess.Currency != "" && q.Get("country") == "" {
		m.Currency = sess.Currency
	}
	if c := strings.ToUpper(strings.TrimSpace(q.Get("currency"))); isCurrencyCode(c) {
		m.Currency = c
	}
	if id := strings.TrimSpace(q.Get("market")); id != "" {
		m.ID = id
	}
	return m, country
}

func isCurrencyCode(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, ch := range c {
		if ch < 'A' || ch > 'Z' {
			return false
		}
	}
	return true
}

func (h *BaseController) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

func (h *BaseController) writeJSON(w http.ResponseWriter, status int, env models.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	// pages and agreements carry sanitized HTML
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *BaseController) ok(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, models.Envelope{Success: true, Data: data})
}

// respond writes a service result. Fallback data still answers 200 so the
// page can render, but with success=false.
func respond[T any](h *BaseController, w http.ResponseWriter, res catalog.Result[T], what string) {
	if !res.Fallback {
		h.ok(w, res.Data)
		return
	}
	h.writeJSON(w, http.StatusOK, models.Envelope{
		Success:  false,
		Fallback: true,
		Data:     res.Data,
		Error:    what + " is temporarily unavailable, showing default data",
	})
}

// fail maps service errors to HTTP answers.
func (h *BaseController) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, models.Envelope{Error: "validation failed", Data: verr.Fields})
	case errors.Is(err, errBadJSON),
		errors.Is(err, errUnsupportedCountry),
		errors.Is(err, catalog.ErrInvalidDomain),
		errors.Is(err, catalog.ErrTooManyNames),
		errors.Is(err, cart.ErrEmptyCart):
		h.writeJSON(w, http.StatusBadRequest, models.Envelope{Error: err.Error()})
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrUnknownCategory),
		errors.Is(err, content.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, session.ErrNoSession):
		h.writeJSON(w, http.StatusNotFound, models.Envelope{Error: err.Error()})
	default:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, models.Envelope{Error: "internal error"})
	}
}
