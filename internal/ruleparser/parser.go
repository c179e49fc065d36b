// Package ruleparser turns free-text scheduling requests into typed roster constraints.
package ruleparser

import (
	"context"
	"encoding/json"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

// Parser converts rule text into a constraint. staff maps staff id to display name
// so that names in the text can be resolved to ids.
//
// Unparseable text is reported through ParseResult.Success, not the error; the
// error is reserved for cancellation and misconfiguration.
type Parser interface {
	Parse(ctx context.Context, text string, staff map[string]string) (*ParseResult, error)
}

// ParseResult is the outcome of one parse attempt.
type ParseResult struct {
	Success         bool              `json:"success"`
	Constraint      models.Constraint `json:"-"`
	SuggestedWeight *int              `json:"suggested_weight,omitempty"`
	Explanation     string            `json:"explanation,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Failed builds an unsuccessful result.
func Failed(msg string) *ParseResult {
	return &ParseResult{Success: false, Error: msg}
}

type parseResultJSON struct {
	Success          bool                       `json:"success"`
	ParsedConstraint *models.ConstraintEnvelope `json:"parsed_constraint,omitempty"`
	SuggestedWeight  *int                       `json:"suggested_weight,omitempty"`
	Explanation      string                     `json:"explanation,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

// MarshalJSON renders the constraint as a {type, parameters} envelope.
func (r ParseResult) MarshalJSON() ([]byte, error) {
	out := parseResultJSON{
		Success:         r.Success,
		SuggestedWeight: r.SuggestedWeight,
		Explanation:     r.Explanation,
		Error:           r.Error,
	}
	if r.Constraint != nil {
		env, err := models.EncodeConstraint(r.Constraint)
		if err != nil {
			return nil, err
		}
		out.ParsedConstraint = &env
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a result, decoding the constraint envelope.
func (r *ParseResult) UnmarshalJSON(data []byte) error {
	var in parseResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = ParseResult{
		Success:         in.Success,
		SuggestedWeight: in.SuggestedWeight,
		Explanation:     in.Explanation,
		Error:           in.Error,
	}
	if in.ParsedConstraint != nil {
		c, err := models.DecodeConstraint(*in.ParsedConstraint)
		if err != nil {
			return err
		}
		r.Constraint = c
	}
	return nil
}
