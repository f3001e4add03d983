package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// SaleStore is the sale ledger. *sales.Repo implements it.
type SaleStore interface {
	catalog.Source
	CreateSale(ctx context.Context, p sales.PendingSale) (*sales.Sale, bool, error)
	GetSale(ctx context.Context, saleID string) (*sales.Sale, error)
	ListSales(ctx context.Context, limit int) ([]sales.Sale, error)
	AnnulSale(ctx context.Context, saleID string) (*sales.Sale, error)
	AdjustStock(ctx context.Context, itemID string, delta int, reason string) (sales.StockMovement, error)
}

// CatalogSearcher answers /catalog; *catalog.CachedSource implements it.
type CatalogSearcher interface {
	catalog.Source
	Invalidate(ctx context.Context) (int64, error)
}

// Publisher is one topic's producer; *kafka.Producer implements it.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type SalesHandler struct {
	Store   SaleStore
	Catalog CatalogSearcher // optional, Store is searched directly when nil
	Redis   *redis.Client   // optional idempotency fast path
	Events  map[string]Publisher
	Metrics *metrics.ServerMetrics
	Service string
	Shop    string
	Log     *zap.Logger
}

type CreateSaleReq struct {
	ActorID       string            `json:"actor_id"`
	PaymentMethod string            `json:"payment_method"`
	Items         []sales.LineInput `json:"items"`
}

type AdjustStockReq struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *SalesHandler) Register(r chi.Router) {
	r.Get("/catalog", h.searchCatalog)
	r.Post("/sales", h.createSale)
	r.Get("/sales", h.listSales)
	r.Get("/sales/{id}", h.getSale)
	r.Post("/sales/{id}/annul", h.annulSale)
	r.Get("/sales/{id}/ticket", h.ticket)
	r.Post("/items/{id}/stock", h.adjustStock)
}

func (h *SalesHandler) log() *zap.Logger { return logx.OrNop(h.Log) }

func (h *SalesHandler) searchCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	term := r.URL.Query().Get("q")
	activeOnly := r.URL.Query().Get("active") != "false"

	var src catalog.Source = h.Store
	if h.Catalog != nil {
		src = h.Catalog
	}
	items, err := src.SearchCatalog(ctx, term, activeOnly)
	if err != nil {
		h.log().Error("catalog search", zap.String("term", term), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "catalog unavailable")
		return
	}
	if items == nil {
		items = []catalog.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *SalesHandler) createSale(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" {
		writeError(w, http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", HeaderIdempotencyKey+" header is required")
		return
	}
	var req CreateSaleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast path: a retried key returns the sale it already produced. The DB
	// stays the source of truth.
	idemKey := fmt.Sprintf(redisx.KeyIdemSaleCreate, key)
	if h.Redis != nil {
		if id, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && id != "" {
			if s, err := h.Store.GetSale(ctx, id); err == nil {
				w.Header().Set("Idempotent-Replay", "true")
				writeJSON(w, http.StatusOK, s)
				return
			}
		}
	}

	p := sales.PendingSale{
		IdempotencyKey: key,
		ActorID:        req.ActorID,
		PaymentMethod:  sales.PaymentMethod(req.PaymentMethod),
		Items:          req.Items,
	}
	sale, existed, err := h.Store.CreateSale(ctx, p)
	var rej *sales.RejectionError
	switch {
	case errors.As(err, &rej):
		h.countSale("rejected")
		h.log().Info("sale rejected", zap.String("idempotency_key", key), zap.String("code", rej.Code), zap.String("reason", rej.Message))
		writeJSON(w, http.StatusConflict, rej)
		return
	case errors.Is(err, sales.ErrInvalidSale), errors.Is(err, sales.ErrInvalidPaymentMethod):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_SALE", err.Error())
		return
	case err != nil:
		h.log().Error("create sale", zap.String("idempotency_key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "sale could not be recorded")
		return
	}

	if h.Redis != nil {
		if err := h.Redis.Set(ctx, idemKey, sale.ID, redisx.TTLIdempotency).Err(); err != nil {
			h.log().Warn("idempotency set", zap.Error(err))
		}
	}
	if existed {
		w.Header().Set("Idempotent-Replay", "true")
		writeJSON(w, http.StatusOK, sale)
		return
	}

	h.countSale("completed")
	h.invalidateCatalog(ctx)
	h.publish(r, sales.TopicSaleCompleted, sales.EventSaleCompleted, sale.ID, sale.CompletedPayload())
	writeJSON(w, http.StatusCreated, sale)
}

func (h *SalesHandler) listSales(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.Store.ListSales(ctx, limit)
	if err != nil {
		h.log().Error("list sales", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not list sales")
		return
	}
	if list == nil {
		list = []sales.Sale{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SalesHandler) getSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, ok := h.loadSale(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SalesHandler) annulSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	s, err := h.Store.AnnulSale(ctx, id)
	switch {
	case errors.Is(err, sales.ErrSaleNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "sale not found")
		return
	case errors.Is(err, sales.ErrAlreadyAnnulled):
		writeError(w, http.StatusConflict, "ALREADY_ANNULLED", err.Error())
		return
	case err != nil:
		h.log().Error("annul sale", zap.String("sale_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "sale could not be annulled")
		return
	}

	h.countSale("annulled")
	h.invalidateCatalog(ctx)
	h.publish(r, sales.TopicSaleAnnulled, sales.EventSaleAnnulled, s.ID, s.AnnulledPayload())
	writeJSON(w, http.StatusOK, s)
}

func (h *SalesHandler) ticket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, ok := h.loadSale(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sales.RenderTicket(s, h.Shop))
}

func (h *SalesHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	itemID := chi.URLParam(r, "id")
	mv, err := h.Store.AdjustStock(ctx, itemID, req.Delta, req.Reason)
	switch {
	case errors.Is(err, sales.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "item not found")
		return
	case errors.Is(err, sales.ErrNegativeStock):
		writeError(w, http.StatusConflict, "NEGATIVE_STOCK", err.Error())
		return
	case errors.Is(err, sales.ErrInvalidAdjustment):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_ADJUSTMENT", err.Error())
		return
	case err != nil:
		h.log().Error("adjust stock", zap.String("item_id", itemID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "stock could not be adjusted")
		return
	}

	h.invalidateCatalog(ctx)
	h.publish(r, sales.TopicStockAdjusted, sales.EventStockAdjusted, itemID, sales.StockAdjustedPayload{
		ItemID: itemID, Delta: mv.Delta, Reason: mv.Reason, StockNow: mv.StockNow,
	})
	writeJSON(w, http.StatusOK, mv)
}

func (h *SalesHandler) loadSale(ctx context.Context, w http.ResponseWriter, id string) (*sales.Sale, bool) {
	s, err := h.Store.GetSale(ctx, id)
	switch {
	case errors.Is(err, sales.ErrSaleNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "sale not found")
		return nil, false
	case err != nil:
		h.log().Error("get sale", zap.String("sale_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not load sale")
		return nil, false
	}
	return s, true
}

// invalidateCatalog drops cached searches after stock moved. Failure only
// delays visibility until the TTL runs out.
func (h *SalesHandler) invalidateCatalog(ctx context.Context) {
	if h.Catalog == nil {
		return
	}
	if _, err := h.Catalog.Invalidate(ctx); err != nil {
		h.log().Warn("catalog cache invalidate", zap.Error(err))
	}
}

func (h *SalesHandler) publish(r *http.Request, topic, eventType, correlationID string, payload any) {
	p, ok := h.Events[topic]
	if !ok {
		return
	}
	ev := sales.NewEnvelope(eventType, h.Service, correlationID, middleware.GetReqID(r.Context()), kafkax.MustMarshal(payload))
	p.Publish(sales.PartitionKey(correlationID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType, ev.EventVersion)...)
}

func (h *SalesHandler) countSale(result string) {
	if h.Metrics != nil {
		h.Metrics.Sales.WithLabelValues(result).Inc()
	}
}
