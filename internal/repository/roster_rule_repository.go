package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

const rosterRuleColumns = `id, rule_text, constraint_type, parsed_constraint, weight, is_active, created_by, expires_at, created_at, updated_at`

// RosterRuleRepository persists weighted roster rules.
type RosterRuleRepository struct {
	db *sqlx.DB
}

// NewRosterRuleRepository constructs the repository.
func NewRosterRuleRepository(db *sqlx.DB) *RosterRuleRepository {
	return &RosterRuleRepository{db: db}
}

// Create inserts a rule, assigning id and timestamps when missing.
func (r *RosterRuleRepository) Create(ctx context.Context, rule *models.RosterRule) error {
	if rule == nil {
		return fmt.Errorf("rule payload is nil")
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if len(rule.ParsedConstraint) == 0 {
		rule.ParsedConstraint = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	const query = `
INSERT INTO roster_rules (id, rule_text, constraint_type, parsed_constraint, weight, is_active, created_by, expires_at, created_at, updated_at)
VALUES (:id, :rule_text, :constraint_type, :parsed_constraint, :weight, :is_active, :created_by, :expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("insert roster rule: %w", err)
	}
	return nil
}

// List returns rules ordered by weight then recency.
func (r *RosterRuleRepository) List(ctx context.Context, filter models.RosterRuleFilter) ([]models.RosterRule, error) {
	query := strings.Builder{}
	query.WriteString("SELECT " + rosterRuleColumns + " FROM roster_rules WHERE 1=1")
	args := []interface{}{}
	if filter.ActiveOnly {
		now := filter.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		args = append(args, now)
		fmt.Fprintf(&query, " AND is_active = TRUE AND (expires_at IS NULL OR expires_at > $%d)", len(args))
	}
	if filter.ConstraintType != "" {
		args = append(args, string(filter.ConstraintType))
		fmt.Fprintf(&query, " AND constraint_type = $%d", len(args))
	}
	query.WriteString(" ORDER BY weight DESC, created_at DESC")

	var rules []models.RosterRule
	if err := r.db.SelectContext(ctx, &rules, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list roster rules: %w", err)
	}
	return rules, nil
}

// FindByID returns a rule or sql.ErrNoRows.
func (r *RosterRuleRepository) FindByID(ctx context.Context, id string) (*models.RosterRule, error) {
	query := "SELECT " + rosterRuleColumns + " FROM roster_rules WHERE id = $1"
	var rule models.RosterRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Update applies the mutable fields and returns the stored rule. Missing ids yield sql.ErrNoRows.
func (r *RosterRuleRepository) Update(ctx context.Context, id string, update models.RosterRuleUpdate) (*models.RosterRule, error) {
	sets := []string{}
	args := []interface{}{}
	if update.Weight != nil {
		args = append(args, *update.Weight)
		sets = append(sets, fmt.Sprintf("weight = $%d", len(args)))
	}
	if update.IsActive != nil {
		args = append(args, *update.IsActive)
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if update.ClearExpiry {
		sets = append(sets, "expires_at = NULL")
	} else if update.ExpiresAt != nil {
		args = append(args, update.ExpiresAt.UTC())
		sets = append(sets, fmt.Sprintf("expires_at = $%d", len(args)))
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE roster_rules SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), rosterRuleColumns)
	var rule models.RosterRule
	if err := r.db.GetContext(ctx, &rule, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update roster rule: %w", err)
	}
	return &rule, nil
}

// Delete removes a rule permanently.
func (r *RosterRuleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roster_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete roster rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete roster rule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
