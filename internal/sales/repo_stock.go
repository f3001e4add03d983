package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrInvalidAdjustment = errors.New("invalid stock adjustment")

// AnnulSale: completed -> annulled, restoring every sold quantity to stock in
// the same transaction. Annulling twice is ErrAlreadyAnnulled.
func (r *Repo) AnnulSale(ctx context.Context, saleID string) (*Sale, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM sales WHERE id=$1 FOR UPDATE`, saleID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	if !CanTransition(Status(status), StatusAnnulled) {
		return nil, ErrAlreadyAnnulled
	}

	rows, err := tx.Query(ctx, `SELECT item_id, qty FROM sale_items WHERE sale_id=$1 ORDER BY item_id`, saleID)
	if err != nil {
		return nil, err
	}
	type rec struct {
		itemID string
		qty    int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.itemID, &x.qty); err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, x := range recs {
		var stockNow int
		if err := tx.QueryRow(ctx, `
			UPDATE items SET stock = stock + $2, updated_at = now()
			WHERE id=$1 RETURNING stock`, x.itemID, x.qty).Scan(&stockNow); err != nil {
			return nil, fmt.Errorf("restore stock for %s: %w", x.itemID, err)
		}
		if err := insertMovement(ctx, tx, x.itemID, x.qty, MovementAnnul, saleID, stockNow); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sales SET status=$2, annulled_at=now() WHERE id=$1`, saleID, string(StatusAnnulled)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetSale(ctx, saleID)
}

// AdjustStock is the manual add-stock / remove-stock path. It takes the same
// row lock as CreateSale, so adjustments and sales serialize per item.
func (r *Repo) AdjustStock(ctx context.Context, itemID string, delta int, reason string) (StockMovement, error) {
	if delta == 0 {
		return StockMovement{}, fmt.Errorf("%w: zero delta", ErrInvalidAdjustment)
	}
	if reason == "" {
		reason = MovementRestock
		if delta < 0 {
			reason = MovementWriteOff
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return StockMovement{}, err
	}
	defer tx.Rollback(ctx)

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM items WHERE id=$1 FOR UPDATE`, itemID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockMovement{}, ErrItemNotFound
	}
	if err != nil {
		return StockMovement{}, err
	}
	if stock+delta < 0 {
		return StockMovement{}, fmt.Errorf("%w: %s has %d, adjustment %d", ErrNegativeStock, itemID, stock, delta)
	}

	mv := StockMovement{ItemID: itemID, Delta: delta, Reason: reason}
	if err := tx.QueryRow(ctx, `
		UPDATE items SET stock = stock + $2, updated_at = now()
		WHERE id=$1 RETURNING stock, updated_at`, itemID, delta).Scan(&mv.StockNow, &mv.CreatedAt); err != nil {
		return StockMovement{}, err
	}
	if err := insertMovement(ctx, tx, itemID, delta, reason, "", mv.StockNow); err != nil {
		return StockMovement{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return StockMovement{}, err
	}
	return mv, nil
}
