package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/minhvu/movie-ticket-booking/internal/model"
)

// FoodRepo reads the concessions catalog.  The booking engine prices
// food lines from it at booking time and snapshots the result onto the
// booking row; the catalog itself is mutated elsewhere.
type FoodRepo struct {
	db *sql.DB
}

// NewFoodRepo returns a new FoodRepo bound to the given database.
func NewFoodRepo(db *sql.DB) *FoodRepo { return &FoodRepo{db: db} }

// ListAvailable returns all currently available food items ordered by
// name.  Used by the public food-items endpoint.
func (r *FoodRepo) ListAvailable(ctx context.Context) ([]model.FoodItem, error) {
	const q = `SELECT item_id, name, price_cents, is_available
               FROM food_items WHERE is_available = 1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.FoodItem, 0)
	for rows.Next() {
		var it model.FoodItem
		if err := rows.Scan(&it.ID, &it.Name, &it.PriceCents, &it.IsAvailable); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// AvailablePricesTx resolves catalog prices for the given item IDs
// within a transaction, considering only items that are currently
// available.  An ID missing from the returned map is unknown or
// unavailable; callers treat that as ErrInvalidFoodItem.
func (r *FoodRepo) AvailablePricesTx(ctx context.Context, tx *sql.Tx, itemIDs []uint64) (map[uint64]int64, error) {
	if len(itemIDs) == 0 {
		return map[uint64]int64{}, nil
	}
	placeholders := make([]string, 0, len(itemIDs))
	args := make([]interface{}, 0, len(itemIDs))
	for _, id := range itemIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT item_id, price_cents FROM food_items
              WHERE is_available = 1 AND item_id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	prices := make(map[uint64]int64, len(itemIDs))
	for rows.Next() {
		var id uint64
		var cents int64
		if err := rows.Scan(&id, &cents); err != nil {
			return nil, err
		}
		prices[id] = cents
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}
