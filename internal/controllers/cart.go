package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/drstein77/hostfront/internal/cart"
	"github.com/drstein77/hostfront/internal/models"
	"github.com/drstein77/hostfront/internal/session"
)

type checkoutResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// emptyCart answers visitors that never put anything in a cart, without
// issuing them a session.
func (h *BaseController) emptyCart(w http.ResponseWriter, r *http.Request) {
	m, _ := h.market(r)
	h.ok(w, models.Cart{Items: []models.CartItem{}, Subtotal: models.NewMoney(0, m.Currency)})
}

func (h *BaseController) getCart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if errors.Is(err, session.ErrNoSession) {
		h.emptyCart(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m, _ := h.market(r)
	res, err := h.carts.Get(r.Context(), sess.ID, m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(h, w, res, "cart")
}

func (h *BaseController) addToCart(w http.ResponseWriter, r *http.Request) {
	var req cart.AddRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	// reject bad input before a session is issued for it
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	sess, err := h.sessions.Ensure(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, _ := h.market(r)
	res, err := h.carts.Add(r.Context(), sess.ID, m, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(h, w, res, "cart")
}

func (h *BaseController) removeFromCart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if errors.Is(err, session.ErrNoSession) {
		h.fail(w, r, cart.ErrItemNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m, _ := h.market(r)
	res, err := h.carts.Remove(r.Context(), sess.ID, m, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(h, w, res, "cart")
}

func (h *BaseController) clearCart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if err == nil {
		err = h.carts.Clear(r.Context(), sess.ID)
	}
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		h.fail(w, r, err)
		return
	}
	h.emptyCart(w, r)
}

func (h *BaseController) checkout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if errors.Is(err, session.ErrNoSession) {
		h.fail(w, r, cart.ErrEmptyCart)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m, _ := h.market(r)
	redirect, err := h.carts.Checkout(r.Context(), sess.ID, m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, checkoutResponse{RedirectURL: redirect})
}

var (
	_ Cart     = (*cart.Service)(nil)
	_ Sessions = (*session.Manager)(nil)
)
