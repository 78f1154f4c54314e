package status

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the status table over postgres. Rows are seeded by a
// migration and only ever updated here, so a zero rows-affected update
// flags an item missing from the seed.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a status repository over the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ItemIDs lists every item with a status row.
func (r *Repository) ItemIDs(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_id FROM price_status ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("query status items: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan status item: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status items: %w", err)
	}
	return ids, nil
}

// UpdateRow overwrites one item's status in place.
func (r *Repository) UpdateRow(ctx context.Context, row Row) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE price_status
		SET latest_price = $1,
		    price_change = $2,
		    updated_at   = $3
		WHERE item_id = $4`,
		row.LatestPrice, row.PriceChange, row.UpdatedAt, row.ItemID)
	if err != nil {
		return fmt.Errorf("update status row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no status row seeded for item %d", row.ItemID)
	}
	return nil
}
