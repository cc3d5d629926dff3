package initiatives

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/database"
	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact/features"
)

const initiativeColumns = `id, title, description, location, technology, duration_months, scale,
risk_level, min_investment, max_investment, goal_amount, current_amount,
carbon_per_1000, energy_per_1000, water_per_1000, rates_updated_at, created_at, updated_at`

// Repository persists initiatives and investments.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a repository on an open, migrated database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "initiatives").Logger(),
	}
}

// ValidateProfile checks that a profile can be stored and later estimated.
// Categories are canonicalised in place.
func ValidateProfile(p *domain.ProjectProfile) error {
	if len(p.Categories) == 0 {
		return domain.NewValidationError("categories", "at least one category is required")
	}
	categories, err := features.ResolveCategories(p.Categories)
	if err != nil {
		return err
	}
	p.Categories = categories

	if p.DurationMonths <= 0 {
		return domain.NewValidationError("duration_months", "must be positive, got %d", p.DurationMonths)
	}
	if err := domain.ValidateScale(p.Scale); err != nil {
		return err
	}
	level, err := domain.ParseRiskLevel(string(p.RiskLevel))
	if err != nil {
		return err
	}
	p.RiskLevel = level
	if p.MinInvestment < 0 || p.MaxInvestment < 0 {
		return domain.NewValidationError("investment_bounds", "must not be negative")
	}
	if p.MaxInvestment > 0 && p.MaxInvestment < p.MinInvestment {
		return domain.NewValidationError("investment_bounds", "maximum %.2f is below minimum %.2f", p.MaxInvestment, p.MinInvestment)
	}
	return nil
}

// Create inserts an initiative and its categories, setting ID and timestamps.
func (r *Repository) Create(ctx context.Context, in *Initiative) error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.NewValidationError("title", "is required")
	}
	if err := ValidateProfile(&in.Profile); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO initiatives (title, description, location, technology, duration_months, scale,
				risk_level, min_investment, max_investment, goal_amount, current_amount, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Title, in.Description, in.Profile.Location, in.Profile.Technology,
			in.Profile.DurationMonths, in.Profile.Scale, string(in.Profile.RiskLevel),
			in.Profile.MinInvestment, in.Profile.MaxInvestment, in.GoalAmount, in.CurrentAmount,
			now.Unix(), now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert initiative: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read initiative id: %w", err)
		}
		for pos, c := range in.Profile.Categories {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO initiative_categories (initiative_id, category, position) VALUES (?, ?, ?)",
				id, c, pos,
			); err != nil {
				return fmt.Errorf("failed to insert category %s: %w", c, err)
			}
		}
		in.ID = id
		return nil
	})
	if err != nil {
		return err
	}

	in.Profile.ID = in.ID
	in.CreatedAt = now
	in.UpdatedAt = now
	r.log.Info().Int64("initiative_id", in.ID).Str("title", in.Title).Msg("Created initiative")
	return nil
}

// GetByID returns one initiative or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Initiative, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+initiativeColumns+" FROM initiatives WHERE id = ?", id)
	in, err := scanInitiative(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("initiative %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get initiative %d: %w", id, err)
	}

	categories, err := r.categories(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	in.Profile.Categories = categories[id]
	return in, nil
}

// List returns every initiative ordered by ID.
func (r *Repository) List(ctx context.Context) ([]Initiative, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+initiativeColumns+" FROM initiatives ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list initiatives: %w", err)
	}
	defer rows.Close()

	var out []Initiative
	var ids []int64
	for rows.Next() {
		in, err := scanInitiative(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan initiative: %w", err)
		}
		out = append(out, *in)
		ids = append(ids, in.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating initiatives: %w", err)
	}

	categories, err := r.categories(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Profile.Categories = categories[out[i].ID]
	}
	return out, nil
}

// UpdateImpactRates stores the per-1000 impact preview of an initiative.
func (r *Repository) UpdateImpactRates(ctx context.Context, id int64, rates domain.ImpactEstimate) error {
	now := time.Now().Unix()
	res, err := r.db.ExecContext(ctx, `
		UPDATE initiatives
		SET carbon_per_1000 = ?, energy_per_1000 = ?, water_per_1000 = ?, rates_updated_at = ?, updated_at = ?
		WHERE id = ?`,
		rates.Carbon, rates.Energy, rates.Water, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update impact rates for initiative %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("initiative %d: %w", id, ErrNotFound)
	}
	return nil
}

// InsertInvestment records an investment with its computed impact and adds
// its amount to the initiative's current amount, atomically.
func (r *Repository) InsertInvestment(ctx context.Context, inv *domain.Investment) error {
	now := time.Now().UTC().Truncate(time.Second)
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE initiatives SET current_amount = current_amount + ?, updated_at = ? WHERE id = ?",
			inv.Amount, now.Unix(), inv.InitiativeID,
		)
		if err != nil {
			return fmt.Errorf("failed to update initiative funding: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("initiative %d: %w", inv.InitiativeID, ErrNotFound)
		}

		res, err = tx.ExecContext(ctx, `
			INSERT INTO investments (user_id, initiative_id, amount, carbon, energy, water, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			inv.UserID, inv.InitiativeID, inv.Amount,
			inv.Impact.Carbon, inv.Impact.Energy, inv.Impact.Water, now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert investment: %w", err)
		}
		inv.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return err
	}
	inv.CreatedAt = now
	return nil
}

// DeleteInvestment removes an investment and takes its amount back off the
// initiative's current amount.
func (r *Repository) DeleteInvestment(ctx context.Context, id int64) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var initiativeID int64
		var amount float64
		err := tx.QueryRowContext(ctx, "SELECT initiative_id, amount FROM investments WHERE id = ?", id).
			Scan(&initiativeID, &amount)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("investment %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load investment %d: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM investments WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete investment %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE initiatives SET current_amount = MAX(0, current_amount - ?), updated_at = ? WHERE id = ?",
			amount, time.Now().Unix(), initiativeID,
		); err != nil {
			return fmt.Errorf("failed to reverse funding of initiative %d: %w", initiativeID, err)
		}
		return nil
	})
}

// ListInvestmentsByUser returns a user's investments with their project
// profiles attached. An investment whose initiative is missing or malformed is
// still returned, with a nil Profile, and reported in the RowError list.
func (r *Repository) ListInvestmentsByUser(ctx context.Context, userID int64) ([]domain.Investment, []RowError, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, initiative_id, amount, carbon, energy, water, created_at
		FROM investments WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list investments for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		var inv domain.Investment
		var created int64
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.InitiativeID, &inv.Amount,
			&inv.Impact.Carbon, &inv.Impact.Energy, &inv.Impact.Water, &created); err != nil {
			return nil, nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		inv.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating investments: %w", err)
	}

	profiles := make(map[int64]*domain.ProjectProfile)
	var rowErrs []RowError
	for i := range out {
		id := out[i].InitiativeID
		p, seen := profiles[id]
		if !seen {
			in, err := r.GetByID(ctx, id)
			if err == nil {
				prof := in.Profile
				if verr := ValidateProfile(&prof); verr != nil {
					err = verr
				} else {
					p = &prof
				}
			}
			if err != nil {
				r.log.Warn().Err(err).Int64("investment_id", out[i].ID).Int64("initiative_id", id).Msg("Investment has no usable profile")
				rowErrs = append(rowErrs, RowError{ID: out[i].ID, Err: err})
			}
			profiles[id] = p
		} else if p == nil {
			rowErrs = append(rowErrs, RowError{ID: out[i].ID, Err: fmt.Errorf("initiative %d has no usable profile", id)})
		}
		out[i].Profile = p
	}
	return out, rowErrs, nil
}

func (r *Repository) categories(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT initiative_id, category FROM initiative_categories WHERE initiative_id IN ("+placeholders+") ORDER BY initiative_id, position",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var c string
		if err := rows.Scan(&id, &c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out[id] = append(out[id], c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInitiative(s scanner) (*Initiative, error) {
	var in Initiative
	var risk string
	var carbon, energy, water sql.NullFloat64
	var ratesAt sql.NullInt64
	var created, updated int64

	err := s.Scan(
		&in.ID, &in.Title, &in.Description, &in.Profile.Location, &in.Profile.Technology,
		&in.Profile.DurationMonths, &in.Profile.Scale, &risk,
		&in.Profile.MinInvestment, &in.Profile.MaxInvestment, &in.GoalAmount, &in.CurrentAmount,
		&carbon, &energy, &water, &ratesAt, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	in.Profile.ID = in.ID
	in.Profile.RiskLevel = domain.RiskLevel(risk)
	if carbon.Valid && energy.Valid && water.Valid {
		in.Rates = &domain.ImpactEstimate{Carbon: carbon.Float64, Energy: energy.Float64, Water: water.Float64}
	}
	if ratesAt.Valid {
		t := time.Unix(ratesAt.Int64, 0).UTC()
		in.RatesUpdatedAt = &t
	}
	in.CreatedAt = time.Unix(created, 0).UTC()
	in.UpdatedAt = time.Unix(updated, 0).UTC()
	return &in, nil
}
