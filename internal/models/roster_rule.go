package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Rule priorities map onto fixed weights.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"

	DefaultRuleWeight = 50
	MaxRuleWeight     = 100
)

// PriorityWeights resolves a named priority into a rule weight.
var PriorityWeights = map[string]int{
	PriorityCritical: 100,
	PriorityHigh:     75,
	PriorityMedium:   50,
	PriorityLow:      25,
}

// RosterRule is a stored weighted constraint together with its source text.
type RosterRule struct {
	ID               string         `db:"id" json:"id"`
	RuleText         string         `db:"rule_text" json:"rule_text"`
	ConstraintType   ConstraintType `db:"constraint_type" json:"constraint_type"`
	ParsedConstraint types.JSONText `db:"parsed_constraint" json:"parsed_constraint"`
	Weight           int            `db:"weight" json:"weight"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	CreatedBy        *string        `db:"created_by" json:"created_by,omitempty"`
	ExpiresAt        *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
	Description      string         `db:"-" json:"description,omitempty"`
}

// Constraint decodes the stored constraint payload.
func (r RosterRule) Constraint() (Constraint, error) {
	var env ConstraintEnvelope
	if err := json.Unmarshal(r.ParsedConstraint, &env); err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	if env.Type == "" {
		env.Type = r.ConstraintType
	}
	return DecodeConstraint(env)
}

// ActiveAt reports whether the rule is enabled and not yet expired at t.
func (r RosterRule) ActiveAt(t time.Time) bool {
	if !r.IsActive {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(t)
}

// RosterRuleFilter narrows rule listings. ActiveOnly also drops rules expired at Now.
type RosterRuleFilter struct {
	ActiveOnly     bool
	ConstraintType ConstraintType
	Now            time.Time
}

// RosterRuleUpdate is the full mutable field set of a rule.
type RosterRuleUpdate struct {
	Weight      *int
	IsActive    *bool
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// Empty reports whether the update touches nothing.
func (u RosterRuleUpdate) Empty() bool {
	return u.Weight == nil && u.IsActive == nil && u.ExpiresAt == nil && !u.ClearExpiry
}

// ResolveWeight applies the priority map first, then the suggested weight, then the default.
func ResolveWeight(priority string, suggested *int) int {
	if w, ok := PriorityWeights[priority]; ok {
		return w
	}
	if suggested != nil {
		w := *suggested
		if w < 0 {
			w = 0
		}
		if w > MaxRuleWeight {
			w = MaxRuleWeight
		}
		return w
	}
	return DefaultRuleWeight
}
