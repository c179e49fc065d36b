package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/ruleparser"
	"github.com/noah-isme/cafe-roster-api/internal/service"
	"github.com/noah-isme/cafe-roster-api/internal/solver"
	"github.com/noah-isme/cafe-roster-api/pkg/templates"
)

// problemFile is an offline roster problem: staff, availability, rules and
// either a template name or explicit shifts.
type problemFile struct {
	WeekStart       string          `yaml:"week_start"`
	Template        string          `yaml:"template"`
	Shifts          []problemShift  `yaml:"shifts"`
	Staff           []problemStaff  `yaml:"staff"`
	Availability    []problemWindow `yaml:"availability"`
	Rules           []problemRule   `yaml:"rules"`
	MaxHoursPerWeek float64         `yaml:"max_hours_per_week"`
	PreferFairness  bool            `yaml:"prefer_fairness"`
}

type problemShift struct {
	Day                     string `yaml:"day"`
	models.ShiftRequirement `yaml:",inline"`
}

type problemStaff struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Roles      []string `yaml:"roles"`
	KeyHolder  bool     `yaml:"key_holder"`
	HourlyRate float64  `yaml:"hourly_rate"`
}

type problemWindow struct {
	Staff  string `yaml:"staff"`
	Day    string `yaml:"day"`
	Start  int    `yaml:"start"`
	End    int    `yaml:"end"`
	Status string `yaml:"status"`
}

type problemRule struct {
	ID         string                 `yaml:"id"`
	Type       string                 `yaml:"type"`
	Weight     int                    `yaml:"weight"`
	Parameters map[string]interface{} `yaml:"parameters"`
}

func loadProblem(path string) (*problemFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p problemFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &p, nil
}

// input converts the problem into a solver snapshot. catalog may be nil when the problem lists shifts.
func (p *problemFile) input(catalog *templates.Catalog, limits solver.Limits) (solver.Input, error) {
	week, err := service.ParseWeekStart(p.WeekStart)
	if err != nil {
		return solver.Input{}, err
	}

	var reqs []models.ShiftRequirement
	switch {
	case p.Template != "" && len(p.Shifts) > 0:
		return solver.Input{}, fmt.Errorf("use either template or shifts, not both")
	case p.Template != "":
		if catalog == nil {
			return solver.Input{}, fmt.Errorf("template %q needs --templates", p.Template)
		}
		tpl, ok := catalog.Find(p.Template)
		if !ok {
			return solver.Input{}, fmt.Errorf("unknown template %q", p.Template)
		}
		if reqs, err = tpl.Expand(week); err != nil {
			return solver.Input{}, err
		}
	default:
		for i, s := range p.Shifts {
			day, err := models.ParseDay(s.Day)
			if err != nil {
				return solver.Input{}, fmt.Errorf("shifts[%d]: %w", i, err)
			}
			req := s.ShiftRequirement
			req.DayOfWeek = day
			if req.MaxStaff == 0 {
				req.MaxStaff = max(req.MinStaff, 1)
			}
			reqs = append(reqs, req)
		}
	}

	in := solver.Input{
		WeekStart: week,
		Options:   solver.Options{MaxHoursPerWeek: p.MaxHoursPerWeek, PreferFairness: p.PreferFairness},
		Limits:    limits,
	}
	for _, r := range reqs {
		req, err := solver.RequirementFromModel(r)
		if err != nil {
			return solver.Input{}, err
		}
		in.Requirements = append(in.Requirements, req)
	}
	for _, s := range p.Staff {
		in.Staff = append(in.Staff, models.Staff{
			ID:             s.ID,
			Name:           s.Name,
			Roles:          s.Roles,
			KeyHolder:      s.KeyHolder,
			BaseHourlyRate: s.HourlyRate,
			Active:         true,
		})
	}
	for i, w := range p.Availability {
		day, err := models.ParseDay(w.Day)
		if err != nil {
			return solver.Input{}, fmt.Errorf("availability[%d]: %w", i, err)
		}
		status := models.AvailabilityStatus(strings.ToLower(w.Status))
		if status == "" {
			status = models.AvailabilityAvailable
		}
		in.Availability = append(in.Availability, models.AvailabilitySlot{
			StaffID: w.Staff, DayOfWeek: day, HourStart: w.Start, HourEnd: w.End, Status: status,
		})
	}
	for i, r := range p.Rules {
		c, result, err := decodeRule(r)
		if err != nil {
			return solver.Input{}, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if !result.IsValid {
			if len(result.Errors) == 0 {
				return solver.Input{}, fmt.Errorf("rules[%d]: invalid %s rule", i, r.Type)
			}
			return solver.Input{}, fmt.Errorf("rules[%d]: %s %s", i, result.Errors[0].Field, result.Errors[0].Message)
		}
		weight := r.Weight
		if weight == 0 {
			weight = 100
		}
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("rule-%d", i+1)
		}
		in.Rules = append(in.Rules, solver.Rule{ID: id, Weight: weight, Constraint: c})
	}
	return in, nil
}

func decodeRule(r problemRule) (models.Constraint, ruleparser.ValidationResult, error) {
	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return nil, ruleparser.ValidationResult{}, err
	}
	c, result := ruleparser.ValidateEnvelope(models.ConstraintEnvelope{
		Type:       models.ConstraintType(strings.ToLower(r.Type)),
		Parameters: params,
	})
	return c, result, nil
}

func weekDate(week time.Time, day int) string {
	return week.AddDate(0, 0, day).Format(service.WeekLayout)
}
