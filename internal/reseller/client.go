package reseller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// CartCookie is the cookie the vendor keys its carts by.
const CartCookie = "cart_token"

const maxBody = 4 << 20

type Log interface {
	Debug(string, ...zap.Field)
	Warn(string, ...zap.Field)
}

type Config struct {
	BaseURL   string
	PLID      string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	Retries   int
}

// Client talks to the reseller storefront API.
type Client struct {
	cfg     Config
	http    *http.Client
	backoff Backoff
	log     Log
}

// NewClient creates a Client. A nil httpClient gets an instrumented default.
func NewClient(cfg Config, httpClient *http.Client, log Log) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		backoff: DefaultBackoff(cfg.Retries),
		log:     log,
	}
}

// SetBackoff replaces the retry schedule.
func (c *Client) SetBackoff(b Backoff) {
	c.backoff = b
}

// Configured reports whether live calls can be made at all.
func (c *Client) Configured() bool {
	return c.cfg.PLID != ""
}

func (c *Client) PLID() string {
	return c.cfg.PLID
}

func (c *Client) Products(ctx context.Context, currency, market string) ([]VendorProduct, error) {
	var resp productsResponse
	q := marketQuery(currency, market)
	if _, err := c.getJSON(ctx, "/api/v1/catalog/{plid}/products", q, "", &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (c *Client) Product(ctx context.Context, id, currency, market string) (*VendorProduct, error) {
	var p VendorProduct
	path := "/api/v1/catalog/{plid}/products/" + url.PathEscape(id)
	if _, err := c.getJSON(ctx, path, marketQuery(currency, market), "", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SearchDomain(ctx context.Context, query, currency, market string) (*DomainSearchResponse, error) {
	var resp DomainSearchResponse
	q := marketQuery(currency, market)
	q.Set("q", query)
	if _, err := c.getJSON(ctx, "/api/v1/domains/{plid}/", q, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Agreements(ctx context.Context, keys []string, market string) ([]VendorAgreement, error) {
	var resp []VendorAgreement
	q := url.Values{}
	q.Set("keys", strings.Join(keys, ","))
	if market != "" {
		q.Set("marketId", market)
	}
	if _, err := c.getJSON(ctx, "/api/v1/agreements/{plid}", q, "", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Cart reads the vendor cart addressed by token, priced in currency and market.
func (c *Client) Cart(ctx context.Context, token, currency, market string) (*CartResult, error) {
	var cart VendorCart
	newToken, err := c.getJSON(ctx, "/api/v1/cart/{plid}", marketQuery(currency, market), token, &cart)
	if err != nil {
		return nil, err
	}
	return &CartResult{Cart: cart, Token: pickToken(newToken, token)}, nil
}

func (c *Client) AddToCart(ctx context.Context, token, currency, market string, items []CartAddItem) (*CartResult, error) {
	body, err := json.Marshal(cartAddRequest{Items: items})
	if err != nil {
		return nil, fmt.Errorf("encode cart items: %w", err)
	}

	var cart VendorCart
	q := marketQuery(currency, market)
	newToken, err := c.call(ctx, http.MethodPost, "/api/v1/cart/{plid}", q, body, token, &cart)
	if err != nil {
		return nil, err
	}
	return &CartResult{Cart: cart, Token: pickToken(newToken, token)}, nil
}

func (c *Client) RemoveFromCart(ctx context.Context, token, currency, market, itemID string) (*CartResult, error) {
	var cart VendorCart
	path := "/api/v1/cart/{plid}/items/" + url.PathEscape(itemID)
	newToken, err := c.call(ctx, http.MethodDelete, path, marketQuery(currency, market), nil, token, &cart)
	if err != nil {
		return nil, err
	}
	return &CartResult{Cart: cart, Token: pickToken(newToken, token)}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, token string, out any) (string, error) {
	return c.call(ctx, http.MethodGet, path, q, nil, token, out)
}

// call performs one logical request with retries. It returns the cart token
// the vendor set in the response, if any.
func (c *Client) call(ctx context.Context, method, path string, q url.Values, body []byte, token string, out any) (string, error) {
	if c.cfg.PLID == "" {
		return "", ErrNoPLID
	}
	endpoint := c.cfg.BaseURL + strings.ReplaceAll(path, "{plid}", url.PathEscape(c.cfg.PLID))
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	retryable := retryableRead
	if method != http.MethodGet {
		retryable = retryableWrite
	}

	var newToken string
	attempt := 0
	err := Retry(ctx, c.backoff, retryable, func(ctx context.Context) error {
		attempt++
		tok, err := c.once(ctx, method, endpoint, body, token, out)
		if err != nil {
			c.log.Warn("reseller request failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		newToken = tok
		return nil
	})
	if err != nil {
		return "", err
	}
	return newToken, nil
}

func (c *Client) once(ctx context.Context, method, endpoint string, body []byte, token string, out any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("sso-key %s:%s", c.cfg.APIKey, c.cfg.APISecret))
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CartCookie, Value: token})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("reseller response",
		zap.String("method", method),
		zap.String("url", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Endpoint: req.URL.Path, Status: resp.StatusCode, Body: string(raw)}
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return "", fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == CartCookie && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", nil
}

func marketQuery(currency, market string) url.Values {
	q := url.Values{}
	if currency != "" {
		q.Set("currencyType", currency)
	}
	if market != "" {
		q.Set("marketId", market)
	}
	return q
}

func pickToken(fresh, old string) string {
	if fresh != "" {
		return fresh
	}
	return old
}
