package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const catalogSearchLimit = 50

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) SearchCatalog(ctx context.Context, term string, activeOnly bool) ([]catalog.Item, error) {
	pattern := "%" + escapeLike(catalog.NormalizeTerm(term)) + "%"
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, sku, price_cents, stock, active
		FROM items
		WHERE (lower(name) LIKE $1 OR lower(sku) LIKE $1)
		  AND (active OR NOT $2)
		ORDER BY name, id
		LIMIT $3`, pattern, activeOnly, catalogSearchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []catalog.Item{}
	for rows.Next() {
		var (
			it    catalog.Item
			cents int64
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.SKU, &cents, &it.Stock, &it.Active); err != nil {
			return nil, err
		}
		it.UnitPrice = FromCents(cents)
		out = append(out, it)
	}
	return out, rows.Err()
}

// CreateSale: idempotent via external_id (the idempotency key).
// - if the key already produced a sale -> that sale, existed=true.
// - any line that cannot be fulfilled -> *RejectionError, nothing written.
func (r *Repo) CreateSale(ctx context.Context, p PendingSale) (sale *Sale, existed bool, err error) {
	if err := p.Validate(); err != nil {
		return nil, false, err
	}
	if p.IdempotencyKey != "" {
		if s, err := r.saleByExternalID(ctx, p.IdempotencyKey); err == nil {
			return s, true, nil
		} else if !errors.Is(err, ErrSaleNotFound) {
			return nil, false, err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ItemID)
	}
	locked, err := lockItems(ctx, tx, ids)
	if err != nil {
		return nil, false, err
	}

	var (
		shortages []Shortage
		total     int64
	)
	for _, line := range p.Items {
		it, ok := locked[line.ItemID]
		switch {
		case !ok:
			shortages = append(shortages, Shortage{ItemID: line.ItemID, Reason: RejectItemUnknown, Required: line.Quantity})
			continue
		case !it.active:
			shortages = append(shortages, Shortage{ItemID: it.id, SKU: it.sku, Reason: RejectItemInactive, Required: line.Quantity, Available: it.stock})
			continue
		}
		// Validate already guarantees two decimals.
		cents, _ := ToCents(line.UnitPrice)
		if cents != it.priceCents {
			shortages = append(shortages, Shortage{ItemID: it.id, SKU: it.sku, Reason: RejectPriceChanged, Required: line.Quantity, Available: it.stock})
			continue
		}
		if it.stock < line.Quantity {
			shortages = append(shortages, Shortage{ItemID: it.id, SKU: it.sku, Reason: RejectOutOfStock, Required: line.Quantity, Available: it.stock})
			continue
		}
		total += cents * int64(line.Quantity)
	}
	if len(shortages) > 0 {
		return nil, false, NewRejection(shortages) // rollback via defer
	}

	saleID := uuid.NewString()
	sale = &Sale{
		ID:            saleID,
		ExternalID:    p.IdempotencyKey,
		ActorID:       p.ActorID,
		Status:        StatusCompleted,
		PaymentMethod: p.PaymentMethod,
		Total:         FromCents(total),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO sales(id, external_id, actor_id, status, payment_method, total_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		saleID, nullIfEmpty(p.IdempotencyKey), p.ActorID, string(StatusCompleted), string(p.PaymentMethod), total,
	).Scan(&sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) && p.IdempotencyKey != "" {
			// lost the race against the same key
			_ = tx.Rollback(ctx)
			s, err := r.saleByExternalID(ctx, p.IdempotencyKey)
			return s, err == nil, err
		}
		return nil, false, err
	}

	for i, line := range p.Items {
		it := locked[line.ItemID]
		var stockNow int
		if err := tx.QueryRow(ctx, `
			UPDATE items SET stock = stock - $2, updated_at = now()
			WHERE id = $1 RETURNING stock`, line.ItemID, line.Quantity).Scan(&stockNow); err != nil {
			return nil, false, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sale_items(sale_id, line_no, item_id, sku, name, qty, price_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			saleID, i+1, it.id, it.sku, it.name, line.Quantity, it.priceCents); err != nil {
			return nil, false, err
		}
		if err := insertMovement(ctx, tx, it.id, -line.Quantity, MovementSale, saleID, stockNow); err != nil {
			return nil, false, err
		}
		sale.Items = append(sale.Items, SaleItem{
			ItemID:    it.id,
			SKU:       it.sku,
			Name:      it.name,
			Quantity:  line.Quantity,
			UnitPrice: FromCents(it.priceCents),
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return sale, false, nil
}

func (r *Repo) GetSale(ctx context.Context, saleID string) (*Sale, error) {
	s, err := scanSale(r.DB.QueryRow(ctx, `
		SELECT id, COALESCE(external_id, ''), actor_id, status, payment_method, total_cents, created_at, annulled_at
		FROM sales WHERE id=$1`, saleID))
	if err != nil {
		return nil, err
	}
	items, err := r.saleItems(ctx, []string{s.ID})
	if err != nil {
		return nil, err
	}
	s.Items = items[s.ID]
	return s, nil
}

// ListSales returns the most recent sales first.
func (r *Repo) ListSales(ctx context.Context, limit int) ([]Sale, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, COALESCE(external_id, ''), actor_id, status, payment_method, total_cents, created_at, annulled_at
		FROM sales ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out))
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	items, err := r.saleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) saleByExternalID(ctx context.Context, externalID string) (*Sale, error) {
	var id string
	err := r.DB.QueryRow(ctx, `SELECT id FROM sales WHERE external_id=$1`, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetSale(ctx, id)
}

func (r *Repo) saleItems(ctx context.Context, saleIDs []string) (map[string][]SaleItem, error) {
	out := make(map[string][]SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT sale_id, item_id, sku, name, qty, price_cents
		FROM sale_items WHERE sale_id = ANY($1) ORDER BY sale_id, line_no`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			saleID string
			it     SaleItem
			cents  int64
		)
		if err := rows.Scan(&saleID, &it.ItemID, &it.SKU, &it.Name, &it.Quantity, &cents); err != nil {
			return nil, err
		}
		it.UnitPrice = FromCents(cents)
		out[saleID] = append(out[saleID], it)
	}
	return out, rows.Err()
}

type lockedItem struct {
	id, sku, name string
	priceCents    int64
	stock         int
	active        bool
}

// lockItems takes row locks in id order so concurrent sales over the same
// items cannot deadlock.
func lockItems(ctx context.Context, tx pgx.Tx, ids []string) (map[string]lockedItem, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	rows, err := tx.Query(ctx, `
		SELECT id, sku, name, price_cents, stock, active
		FROM items WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]lockedItem, len(ids))
	for rows.Next() {
		var it lockedItem
		if err := rows.Scan(&it.id, &it.sku, &it.name, &it.priceCents, &it.stock, &it.active); err != nil {
			return nil, err
		}
		out[it.id] = it
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (*Sale, error) {
	var (
		s              Sale
		status, method string
		cents          int64
	)
	err := row.Scan(&s.ID, &s.ExternalID, &s.ActorID, &status, &method, &cents, &s.CreatedAt, &s.AnnulledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sale: %w", err)
	}
	s.Status = Status(status)
	s.PaymentMethod = PaymentMethod(method)
	s.Total = FromCents(cents)
	return &s, nil
}

func insertMovement(ctx context.Context, tx pgx.Tx, itemID string, delta int, reason, ref string, stockNow int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements(item_id, delta, reason, ref, stock_after)
		VALUES ($1, $2, $3, $4, $5)`, itemID, delta, reason, nullIfEmpty(ref), stockNow)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
