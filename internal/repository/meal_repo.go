package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

// MealRepo is the read side of the catalog used to price carts.
type MealRepo struct {
	db *sql.DB
}

func NewMealRepo(db *sql.DB) *MealRepo {
	return &MealRepo{db: db}
}

// GetByIDs returns the meals found among ids, keyed by id. Missing ids are
// simply absent from the map.
func (r *MealRepo) GetByIDs(ctx context.Context, ids []string) (map[string]models.Meal, error) {
	query := `
		SELECT id, provider_id, name, price, is_available
		FROM meals
		WHERE id = ANY($1)
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meals := make(map[string]models.Meal, len(ids))
	for rows.Next() {
		var m models.Meal
		if err := rows.Scan(&m.ID, &m.ProviderID, &m.Name, &m.Price, &m.IsAvailable); err != nil {
			return nil, err
		}
		meals[m.ID] = m
	}
	return meals, rows.Err()
}
