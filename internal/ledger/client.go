// Package ledger is the POS terminal's HTTP client of the sale ledger API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const headerIdempotencyKey = "Idempotency-Key"

var ErrUnavailable = errors.New("sale ledger unavailable")

// StatusError is an unexpected HTTP answer.
type StatusError struct {
	Code    int
	ErrCode string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger: %d %s: %s", e.Code, e.ErrCode, e.Message)
	}
	return fmt.Sprintf("ledger: unexpected status %d", e.Code)
}

type reply struct {
	status int
	body   []byte
}

// Client talks to the sale ledger API. Transport failures and 5xx answers
// trip the circuit breaker; 4xx answers are business outcomes and do not.
type Client struct {
	base    string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[reply]
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each call; zero disables the per-call bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logx.OrNop(l) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: 5 * time.Second,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.cb = gobreaker.NewCircuitBreaker[reply](gobreaker.Settings{
		Name:        "sale-ledger",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// ---- catalog.Source ----

func (c *Client) SearchCatalog(ctx context.Context, term string, activeOnly bool) ([]catalog.Item, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("active", strconv.FormatBool(activeOnly))

	var items []catalog.Item
	rep, err := c.do(ctx, http.MethodGet, "/catalog?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	if rep.status != http.StatusOK {
		return nil, statusError(rep)
	}
	if err := json.Unmarshal(rep.body, &items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return items, nil
}

// ---- pos.Ledger ----

type createSaleReq struct {
	ActorID       string              `json:"actor_id"`
	PaymentMethod sales.PaymentMethod `json:"payment_method"`
	Items         []sales.LineInput   `json:"items"`
}

// CreateSale returns *sales.RejectionError when the ledger refuses the sale.
func (c *Client) CreateSale(ctx context.Context, p sales.PendingSale) (*sales.Sale, error) {
	body, err := json.Marshal(createSaleReq{ActorID: p.ActorID, PaymentMethod: p.PaymentMethod, Items: p.Items})
	if err != nil {
		return nil, err
	}
	hdr := http.Header{}
	if p.IdempotencyKey != "" {
		hdr.Set(headerIdempotencyKey, p.IdempotencyKey)
	}

	rep, err := c.do(ctx, http.MethodPost, "/sales", body, hdr)
	if err != nil {
		return nil, err
	}
	switch rep.status {
	case http.StatusOK, http.StatusCreated:
		return decodeSale(rep.body)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		var rej sales.RejectionError
		if err := json.Unmarshal(rep.body, &rej); err != nil || rej.Code == "" {
			return nil, statusError(rep)
		}
		return nil, &rej
	}
	return nil, statusError(rep)
}

func (c *Client) AnnulSale(ctx context.Context, saleID string) (*sales.Sale, error) {
	rep, err := c.do(ctx, http.MethodPost, "/sales/"+url.PathEscape(saleID)+"/annul", nil, nil)
	if err != nil {
		return nil, err
	}
	switch rep.status {
	case http.StatusOK:
		return decodeSale(rep.body)
	case http.StatusNotFound:
		return nil, sales.ErrSaleNotFound
	case http.StatusConflict:
		return nil, sales.ErrAlreadyAnnulled
	}
	return nil, statusError(rep)
}

// FetchTicket has no side effects and may be retried freely.
func (c *Client) FetchTicket(ctx context.Context, saleID string) ([]byte, error) {
	rep, err := c.do(ctx, http.MethodGet, "/sales/"+url.PathEscape(saleID)+"/ticket", nil, nil)
	if err != nil {
		return nil, err
	}
	switch rep.status {
	case http.StatusOK:
		return rep.body, nil
	case http.StatusNotFound:
		return nil, sales.ErrSaleNotFound
	}
	return nil, statusError(rep)
}

// ---- history ----

func (c *Client) GetSale(ctx context.Context, saleID string) (*sales.Sale, error) {
	rep, err := c.do(ctx, http.MethodGet, "/sales/"+url.PathEscape(saleID), nil, nil)
	if err != nil {
		return nil, err
	}
	switch rep.status {
	case http.StatusOK:
		return decodeSale(rep.body)
	case http.StatusNotFound:
		return nil, sales.ErrSaleNotFound
	}
	return nil, statusError(rep)
}

func (c *Client) ListSales(ctx context.Context, limit int) ([]sales.Sale, error) {
	rep, err := c.do(ctx, http.MethodGet, "/sales?limit="+strconv.Itoa(limit), nil, nil)
	if err != nil {
		return nil, err
	}
	if rep.status != http.StatusOK {
		return nil, statusError(rep)
	}
	var list []sales.Sale
	if err := json.Unmarshal(rep.body, &list); err != nil {
		return nil, fmt.Errorf("decode sales: %w", err)
	}
	return list, nil
}

type adjustStockReq struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

// AdjustStock is the manual add-stock / remove-stock operation.
func (c *Client) AdjustStock(ctx context.Context, itemID string, delta int, reason string) (sales.StockMovement, error) {
	body, _ := json.Marshal(adjustStockReq{Delta: delta, Reason: reason})
	rep, err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(itemID)+"/stock", body, nil)
	if err != nil {
		return sales.StockMovement{}, err
	}
	switch rep.status {
	case http.StatusOK:
		var mv sales.StockMovement
		if err := json.Unmarshal(rep.body, &mv); err != nil {
			return sales.StockMovement{}, fmt.Errorf("decode movement: %w", err)
		}
		return mv, nil
	case http.StatusNotFound:
		return sales.StockMovement{}, sales.ErrItemNotFound
	case http.StatusConflict:
		return sales.StockMovement{}, fmt.Errorf("%w: %s", sales.ErrNegativeStock, statusError(rep).Message)
	case http.StatusUnprocessableEntity:
		return sales.StockMovement{}, fmt.Errorf("%w: %s", sales.ErrInvalidAdjustment, statusError(rep).Message)
	}
	return sales.StockMovement{}, statusError(rep)
}

// ---- transport ----

func (c *Client) do(ctx context.Context, method, path string, body []byte, hdr http.Header) (reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	rep, err := c.cb.Execute(func() (reply, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			return reply{}, err
		}
		for k, vs := range hdr {
			req.Header[k] = vs
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return reply{}, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return reply{}, err
		}
		rep := reply{status: resp.StatusCode, body: b}
		if resp.StatusCode >= 500 {
			return rep, statusError(rep)
		}
		return rep, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return reply{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		c.log.Debug("ledger call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return reply{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return rep, nil
}

func statusError(rep reply) *StatusError {
	e := &StatusError{Code: rep.status}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(rep.body, &body) == nil {
		e.ErrCode, e.Message = body.Error, body.Message
	}
	return e
}

func decodeSale(b []byte) (*sales.Sale, error) {
	var s sales.Sale
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode sale: %w", err)
	}
	return &s, nil
}
