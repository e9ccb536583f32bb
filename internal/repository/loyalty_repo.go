package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

type LoyaltyRepo struct {
	db *sql.DB
}

func NewLoyaltyRepo(db *sql.DB) *LoyaltyRepo {
	return &LoyaltyRepo{db: db}
}

// GetOrCreate returns the account of ownerID, creating an empty one first if
// needed. History is not loaded.
func (r *LoyaltyRepo) GetOrCreate(ctx context.Context, ownerID string) (*models.LoyaltyAccount, error) {
	insert := `
		INSERT INTO loyalty_accounts (id, owner_id, points)
		VALUES ($1, $2, 0)
		ON CONFLICT (owner_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), ownerID); err != nil {
		return nil, err
	}

	var acc models.LoyaltyAccount
	query := `SELECT id, owner_id, points FROM loyalty_accounts WHERE owner_id = $1`
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&acc.ID, &acc.OwnerID, &acc.Points); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Balance satisfies checkout.LoyaltyLookup for unlocked reads.
func (r *LoyaltyRepo) Balance(ctx context.Context, ownerID string) (int64, error) {
	acc, err := r.GetOrCreate(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return acc.Points, nil
}

// GetAndLockAccount gets or creates the account row of ownerID and locks it
// for the rest of tx.
func (r *LoyaltyRepo) GetAndLockAccount(ctx context.Context, tx *sql.Tx, ownerID string) (*models.LoyaltyAccount, error) {
	query := `
		SELECT id, owner_id, points
		FROM loyalty_accounts
		WHERE owner_id = $1
		FOR UPDATE
	`

	var acc models.LoyaltyAccount
	err := tx.QueryRowContext(ctx, query, ownerID).Scan(&acc.ID, &acc.OwnerID, &acc.Points)
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// A concurrent request may create the row between the two statements;
	// ON CONFLICT keeps this from failing and the re-select locks whichever
	// row won.
	insert := `
		INSERT INTO loyalty_accounts (id, owner_id, points)
		VALUES ($1, $2, 0)
		ON CONFLICT (owner_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insert, uuid.New(), ownerID); err != nil {
		return nil, err
	}
	if err := tx.QueryRowContext(ctx, query, ownerID).Scan(&acc.ID, &acc.OwnerID, &acc.Points); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Debit removes points from the account and returns the new balance. It
// fails with ErrBalanceTooLow rather than let the balance go negative.
func (r *LoyaltyRepo) Debit(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, points int64) (int64, error) {
	query := `
		UPDATE loyalty_accounts
		SET points = points - $2, updated_at = NOW()
		WHERE id = $1 AND points >= $2
		RETURNING points
	`
	var remaining int64
	err := tx.QueryRowContext(ctx, query, accountID, points).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrBalanceTooLow
	}
	return remaining, err
}

func (r *LoyaltyRepo) Credit(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, points int64) (int64, error) {
	query := `
		UPDATE loyalty_accounts
		SET points = points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING points
	`
	var balance int64
	err := tx.QueryRowContext(ctx, query, accountID, points).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (r *LoyaltyRepo) AppendHistory(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, e models.PointsEntry) error {
	query := `
		INSERT INTO points_history (id, loyalty_account_id, points, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query, e.ID, accountID, e.Points, e.Type, e.Description, e.CreatedAt)
	return err
}

// History lists entries newest first.
func (r *LoyaltyRepo) History(ctx context.Context, accountID uuid.UUID) ([]models.PointsEntry, error) {
	query := `
		SELECT id, points, type, description, created_at
		FROM points_history
		WHERE loyalty_account_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.PointsEntry{}
	for rows.Next() {
		var e models.PointsEntry
		if err := rows.Scan(&e.ID, &e.Points, &e.Type, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, e)
	}
	return history, rows.Err()
}
