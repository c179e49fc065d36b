package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, RuleParserLLM, cfg.RuleParser.Backend)
	assert.Equal(t, 2000, cfg.Solver.MaxIterations)
	assert.Equal(t, 5*time.Second, cfg.Solver.TimeBudget)
	assert.Equal(t, 14*time.Hour, cfg.Clock.StaleAfter)
	assert.Equal(t, 24*time.Hour, cfg.Exports.SignedURLTTL)
	assert.Equal(t, 1, cfg.Points.Workers)
}

func TestRuleParserBackendNormalised(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("RULE_PARSER", " Pattern ")
	assert.Equal(t, RuleParserPattern, fromViper(v).RuleParser.Backend)

	v.Set("RULE_PARSER", "unknown")
	assert.Equal(t, RuleParserLLM, fromViper(v).RuleParser.Backend)
}

func TestOverridesAndFallbacks(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	v.Set("SOLVER_TIME_BUDGET", "not-a-duration")
	v.Set("SOLVER_DEFAULT_MAX_HOURS", -3)

	cfg := fromViper(v)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Solver.TimeBudget)
	assert.Zero(t, cfg.Solver.DefaultMaxHours)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, (&Config{Timezone: "Nowhere/Land"}).Location())
	assert.Equal(t, time.UTC, (*Config)(nil).Location())
	assert.Equal(t, "UTC", (&Config{Timezone: "UTC"}).Location().String())
}
