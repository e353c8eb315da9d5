package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/models"
)

var errUnsupportedCountry = errors.New("country is not supported")

type preferencesRequest struct {
	Country  string `json:"country" validate:"required,iso3166_1_alpha2"`
	Currency string `json:"currency,omitempty" validate:"omitempty,iso4217"`
}

type preferences struct {
	Country  models.Country `json:"country"`
	Currency string         `json:"currency"`
	Market   string         `json:"market"`
}

type countryList struct {
	Countries []models.Country `json:"countries"`
	Current   models.Country   `json:"current"`
}

func (h *BaseController) listPages(w http.ResponseWriter, r *http.Request) {
	h.ok(w, h.content.Pages())
}

func (h *BaseController) getPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.content.Page(chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, page)
}

func (h *BaseController) getFAQ(w http.ResponseWriter, r *http.Request) {
	h.ok(w, h.content.FAQ(r.URL.Query().Get("topic")))
}

func (h *BaseController) listCountries(w http.ResponseWriter, r *http.Request) {
	_, current := h.market(r)
	h.ok(w, countryList{Countries: h.countries.List(), Current: current})
}

func (h *BaseController) getPreferences(w http.ResponseWriter, r *http.Request) {
	m, country := h.market(r)
	h.ok(w, preferences{Country: country, Currency: m.Currency, Market: m.ID})
}

func (h *BaseController) putPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}
	country, ok := h.countries.Lookup(req.Country)
	if !ok {
		h.fail(w, r, errUnsupportedCountry)
		return
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = country.Currency
	}

	sess, err := h.sessions.Ensure(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.sessions.Update(r.Context(), sess.ID, func(s *models.Session) error {
		s.Country = country.Code
		s.Currency = currency
		return nil
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info("preferences updated", zap.String("country", country.Code), zap.String("currency", currency))
	h.ok(w, preferences{Country: country, Currency: currency, Market: country.Market})
}
