package pgxrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wardrate-engine/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rateRepository struct {
	db *pgxpool.Pool
}

func NewRateRepository(db *pgxpool.Pool) domain.RateRepository {
	return &rateRepository{db: db}
}

const rateColumns = `id, zone_id, instance_id, priority, label, base_cost,
	is_block_rule, stop_processing, conditions, created_by, modified_by,
	created_at, updated_at`

func (r *rateRepository) RatesForWard(ctx context.Context, wardCode string, instanceID int64) ([]domain.Rate, error) {
	// Priority is the scan order; id breaks ties so the order is total.
	query := `
		SELECT r.id, r.zone_id, r.instance_id, r.priority, r.label, r.base_cost,
			r.is_block_rule, r.stop_processing, r.conditions, r.created_by,
			r.modified_by, r.created_at, r.updated_at
		FROM ward_rates r
		INNER JOIN rate_locations l ON r.id = l.rate_id
		WHERE l.ward_code = $1 AND r.instance_id = $2
		ORDER BY r.priority ASC, r.id ASC`

	rows, err := r.db.Query(ctx, query, wardCode, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates for ward: %w", err)
	}
	defer rows.Close()

	return collectRates(rows)
}

func (r *rateRepository) Create(ctx context.Context, rate *domain.Rate) (int64, error) {
	conditions, err := marshalConditions(rate.Conditions)
	if err != nil {
		return 0, err
	}

	baseCost, err := float64ToNumeric(rate.BaseCost)
	if err != nil {
		return 0, fmt.Errorf("invalid base cost: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO ward_rates
			(zone_id, instance_id, priority, label, base_cost, is_block_rule,
			 stop_processing, conditions, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		rate.ZoneID,
		rate.InstanceID,
		rate.Priority,
		rate.Label,
		baseCost,
		rate.IsBlockRule,
		rate.StopProcessing,
		conditions,
		rate.CreatedBy,
	).Scan(&rate.ID, &rate.CreatedAt, &rate.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rate: %w", err)
	}

	if err := insertBindings(ctx, tx, rate.ID, rate.WardCodes); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return rate.ID, nil
}

func (r *rateRepository) Update(ctx context.Context, id int64, patch domain.RatePatch) error {
	var set []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.Label != nil {
		add("label", *patch.Label)
	}
	if patch.BaseCost != nil {
		baseCost, err := float64ToNumeric(*patch.BaseCost)
		if err != nil {
			return fmt.Errorf("invalid base cost: %w", err)
		}
		add("base_cost", baseCost)
	}
	if patch.IsBlockRule != nil {
		add("is_block_rule", *patch.IsBlockRule)
	}
	if patch.StopProcessing != nil {
		add("stop_processing", *patch.StopProcessing)
	}
	if patch.Conditions != nil {
		conditions, err := marshalConditions(*patch.Conditions)
		if err != nil {
			return err
		}
		add("conditions", conditions)
	}
	if patch.ModifiedBy != nil {
		add("modified_by", *patch.ModifiedBy)
	}

	set = append(set, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE ward_rates SET %s WHERE id = $%d",
		strings.Join(set, ", "), len(args))

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update rate: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRateNotFound
	}

	return nil
}

func (r *rateRepository) Delete(ctx context.Context, id int64) error {
	// Bindings go with the rate via ON DELETE CASCADE, so the row delete
	// and the binding cleanup are one atomic statement.
	ct, err := r.db.Exec(ctx, `DELETE FROM ward_rates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rate: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRateNotFound
	}
	return nil
}

func (r *rateRepository) GetByID(ctx context.Context, id int64) (*domain.Rate, error) {
	query := `SELECT ` + rateColumns + ` FROM ward_rates WHERE id = $1`

	rate, err := scanRate(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to get rate: %w", err)
	}

	codes, err := r.wardCodesFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	rate.WardCodes = codes[id]

	return rate, nil
}

func (r *rateRepository) ListByInstance(ctx context.Context, instanceID int64) ([]domain.Rate, error) {
	query := `SELECT ` + rateColumns + `
		FROM ward_rates
		WHERE instance_id = $1
		ORDER BY priority ASC, id ASC`

	rows, err := r.db.Query(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer rows.Close()

	rates, err := collectRates(rows)
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return rates, nil
	}

	ids := make([]int64, len(rates))
	for i := range rates {
		ids[i] = rates[i].ID
	}

	codes, err := r.wardCodesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rates {
		rates[i].WardCodes = codes[rates[i].ID]
	}

	return rates, nil
}

func (r *rateRepository) Rebind(ctx context.Context, id int64, wardCodes []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the rate row so a concurrent delete can't orphan the new bindings
	var exists int64
	err = tx.QueryRow(ctx, `SELECT id FROM ward_rates WHERE id = $1 FOR UPDATE`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRateNotFound
		}
		return fmt.Errorf("failed to lock rate: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM rate_locations WHERE rate_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear bindings: %w", err)
	}

	if err := insertBindings(ctx, tx, id, wardCodes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

func (r *rateRepository) Reorder(ctx context.Context, instanceID int64, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM ward_rates WHERE instance_id = $1 AND id = ANY($2)`,
		instanceID, orderedIDs,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to verify rates: %w", err)
	}
	if count != len(orderedIDs) {
		return domain.ErrRateNotFound
	}

	// Renumber 0..n-1 so priorities stay unique per instance
	for pos, rateID := range orderedIDs {
		_, err := tx.Exec(ctx,
			`UPDATE ward_rates SET priority = $1, updated_at = now() WHERE id = $2`,
			pos, rateID,
		)
		if err != nil {
			return fmt.Errorf("failed to renumber rate %d: %w", rateID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

func (r *rateRepository) SetBlocked(ctx context.Context, instanceID int64, ids []int64, blocked bool) error {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	// Run in a transaction so an unknown id rolls the whole batch back
	// instead of leaving it half-applied.
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE ward_rates SET is_block_rule = $1, updated_at = now()
		 WHERE instance_id = $2 AND id = ANY($3)`,
		blocked, instanceID, ids,
	)
	if err != nil {
		return fmt.Errorf("failed to set block flag: %w", err)
	}
	if ct.RowsAffected() != int64(len(ids)) {
		return domain.ErrRateNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// wardCodesFor loads the binding sets for a batch of rate ids.
func (r *rateRepository) wardCodesFor(ctx context.Context, ids []int64) (map[int64][]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT rate_id, ward_code FROM rate_locations WHERE rate_id = ANY($1) ORDER BY ward_code`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bindings: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]string)
	for rows.Next() {
		var rateID int64
		var code string
		if err := rows.Scan(&rateID, &code); err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		result[rateID] = append(result[rateID], code)
	}

	return result, rows.Err()
}

func insertBindings(ctx context.Context, tx pgx.Tx, rateID int64, wardCodes []string) error {
	for _, code := range dedupeCodes(wardCodes) {
		_, err := tx.Exec(ctx,
			`INSERT INTO rate_locations (rate_id, ward_code) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			rateID, code,
		)
		if err != nil {
			return fmt.Errorf("failed to bind ward %s: %w", code, err)
		}
	}
	return nil
}

// dedupeIDs collapses duplicate rate ids, preserving first-seen order.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dedupeCodes collapses duplicate ward codes, preserving first-seen order.
func dedupeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func marshalConditions(conditions []domain.Condition) ([]byte, error) {
	if len(conditions) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}
	return b, nil
}

type rateScanner interface {
	Scan(dest ...any) error
}

// scanRate maps one ward_rates row to the domain type. The conditions
// JSONB blob is decoded here, at the storage boundary only.
func scanRate(row rateScanner) (*domain.Rate, error) {
	var rate domain.Rate
	var baseCost pgtype.Numeric
	var conditions []byte

	err := row.Scan(
		&rate.ID,
		&rate.ZoneID,
		&rate.InstanceID,
		&rate.Priority,
		&rate.Label,
		&baseCost,
		&rate.IsBlockRule,
		&rate.StopProcessing,
		&conditions,
		&rate.CreatedBy,
		&rate.ModifiedBy,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rate.BaseCost = numericToFloat64(baseCost)

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rate.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode conditions: %w", err)
		}
	}

	return &rate, nil
}

func collectRates(rows pgx.Rows) ([]domain.Rate, error) {
	rates := make([]domain.Rate, 0)
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, *rate)
	}
	return rates, rows.Err()
}
