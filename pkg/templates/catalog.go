// Package templates loads named weekly shift templates from YAML and expands
// them into shift requirements for a concrete roster week.
package templates

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

// Entry is one shift line of a template. It recurs on the listed days or on
// the days produced by its RRULE within the roster week.
type Entry struct {
	RRule        string   `yaml:"rrule,omitempty" json:"rrule,omitempty" validate:"required_without=Days"`
	Days         []string `yaml:"days,omitempty" json:"days,omitempty" validate:"omitempty,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	ShiftType    string   `yaml:"shift_type" json:"shift_type" validate:"required"`
	Start        string   `yaml:"start" json:"start" validate:"required"`
	End          string   `yaml:"end" json:"end" validate:"required"`
	Role         string   `yaml:"role,omitempty" json:"role,omitempty"`
	MinStaff     int      `yaml:"min_staff" json:"min_staff" validate:"gte=0"`
	MaxStaff     int      `yaml:"max_staff" json:"max_staff" validate:"gte=1,gtefield=MinStaff"`
	RequiresKeys bool     `yaml:"requires_keys,omitempty" json:"requires_keys"`
}

// Template is a named set of entries.
type Template struct {
	Name        string  `yaml:"name" json:"name" validate:"required"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Shifts      []Entry `yaml:"shifts" json:"shifts" validate:"required,min=1,dive"`
}

// Catalog is the parsed templates file.
type Catalog struct {
	Templates []Template `yaml:"templates" json:"templates" validate:"dive"`
}

var validate = validator.New()

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse templates file: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate checks struct tags, template name uniqueness, clock strings and rrule syntax.
func (c *Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("templates validation failed: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Templates))
	for _, tpl := range c.Templates {
		key := strings.ToLower(tpl.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate template %q", tpl.Name)
		}
		seen[key] = struct{}{}
		for i, entry := range tpl.Shifts {
			start, err := models.ParseClock(entry.Start)
			if err != nil {
				return fmt.Errorf("template %q shift %d: %w", tpl.Name, i, err)
			}
			end, err := models.ParseClock(entry.End)
			if err != nil {
				return fmt.Errorf("template %q shift %d: %w", tpl.Name, i, err)
			}
			if end <= start {
				return fmt.Errorf("template %q shift %d: end must be after start", tpl.Name, i)
			}
			if entry.RRule != "" {
				if _, err := rrule.StrToRRule(entry.RRule); err != nil {
					return fmt.Errorf("invalid rrule in template %q shift %d: %w", tpl.Name, i, err)
				}
			}
		}
	}
	return nil
}

// Names returns template names sorted alphabetically.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Templates))
	for _, tpl := range c.Templates {
		names = append(names, tpl.Name)
	}
	sort.Strings(names)
	return names
}

// Find looks a template up by case-insensitive name.
func (c *Catalog) Find(name string) (*Template, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Templates {
		if strings.EqualFold(c.Templates[i].Name, strings.TrimSpace(name)) {
			return &c.Templates[i], true
		}
	}
	return nil, false
}

// Expand produces the week's requirements ordered by day, start time and entry order.
func (t Template) Expand(weekStart time.Time) ([]models.ShiftRequirement, error) {
	y, m, d := weekStart.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7).Add(-time.Second)

	var out []models.ShiftRequirement
	for i, entry := range t.Shifts {
		days, err := entry.daysIn(start, end)
		if err != nil {
			return nil, fmt.Errorf("template %q shift %d: %w", t.Name, i, err)
		}
		for _, day := range days {
			out = append(out, models.ShiftRequirement{
				DayOfWeek:      day,
				ShiftType:      entry.ShiftType,
				ScheduledStart: entry.Start,
				ScheduledEnd:   entry.End,
				RoleRequired:   entry.Role,
				MinStaff:       entry.MinStaff,
				MaxStaff:       entry.MaxStaff,
				RequiresKeys:   entry.RequiresKeys,
			})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].DayOfWeek != out[b].DayOfWeek {
			return out[a].DayOfWeek < out[b].DayOfWeek
		}
		return out[a].ScheduledStart < out[b].ScheduledStart
	})
	return out, nil
}

func (e Entry) daysIn(start, end time.Time) ([]int, error) {
	if e.RRule == "" {
		days := make([]int, 0, len(e.Days))
		for _, name := range e.Days {
			day, err := models.ParseDay(name)
			if err != nil {
				return nil, err
			}
			days = append(days, day)
		}
		return days, nil
	}

	rule, err := rrule.StrToRRule(e.RRule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}
	if rule.OrigOptions.Dtstart.IsZero() {
		rule.DTStart(start)
	}

	var days []int
	for _, occurrence := range rule.Between(start, end, true) {
		days = append(days, mondayIndex(occurrence.Weekday()))
	}
	return days, nil
}

func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}
