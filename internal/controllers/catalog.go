package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/drstein77/hostfront/internal/catalog"
)

type bulkRequest struct {
	Domains []string `json:"domains" validate:"required,min=1,max=20,dive,required,max=253"`
}

func (h *BaseController) getProducts(w http.ResponseWriter, r *http.Request) {
	m, _ := h.market(r)
	respond(h, w, h.catalog.Products(r.Context(), m), "catalog")
}

func (h *BaseController) getProduct(w http.ResponseWriter, r *http.Request) {
	m, _ := h.market(r)
	res, err := h.catalog.Product(r.Context(), chi.URLParam(r, "id"), m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(h, w, res, "catalog")
}

func (h *BaseController) getHosting(w http.ResponseWriter, r *http.Request) {
	m, _ := h.market(r)
	res, err := h.catalog.Hosting(r.Context(), chi.URLParam(r, "category"), m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(h, w, res, "catalog")
}

func (h *BaseController) searchDomain(w http.ResponseWriter, r *http.Request) {
	m, _ := h.market(r)
	res, err := h.catalog.SearchDomain(r.Context(), r.URL.Query().Get("q"), m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(h, w, res, "domain search")
}

func (h *BaseController) bulkSearch(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	m, _ := h.market(r)
	res, err := h.catalog.BulkSearch(r.Context(), req.Domains, m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(h, w, res, "domain search")
}

func (h *BaseController) domainPricing(w http.ResponseWriter, r *http.Request) {
	m, _ := h.market(r)
	respond(h, w, h.catalog.DomainPricing(r.Context(), m), "domain pricing")
}

func (h *BaseController) getAgreements(w http.ResponseWriter, r *http.Request) {
	m, _ := h.market(r)
	var keys []string
	if raw := r.URL.Query().Get("keys"); raw != "" {
		keys = strings.Split(raw, ",")
	}
	respond(h, w, h.catalog.Agreements(r.Context(), keys, m.ID), "legal agreements")
}

var _ Catalog = (*catalog.Service)(nil)
