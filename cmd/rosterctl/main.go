// Command rosterctl runs the roster solver and rule parser offline, without Postgres or Redis.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/ruleparser"
	"github.com/noah-isme/cafe-roster-api/internal/solver"
	"github.com/noah-isme/cafe-roster-api/pkg/config"
	"github.com/noah-isme/cafe-roster-api/pkg/templates"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	verbose bool
	logger  *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:          "rosterctl",
		Short:        "Offline tools for the café roster service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !c.verbose {
				return nil
			}
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log solver and parser progress")

	root.AddCommand(c.solveCmd(), c.parseRuleCmd(), validateTemplatesCmd())
	return root
}

func (c *cli) solveCmd() *cobra.Command {
	var (
		templatesFile string
		asJSON        bool
		iterations    int
		budget        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "solve <problem.yaml>",
		Short: "Generate a roster week from a YAML problem file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			problem, err := loadProblem(args[0])
			if err != nil {
				return err
			}
			var catalog *templates.Catalog
			if templatesFile != "" {
				if catalog, err = templates.Load(templatesFile); err != nil {
					return err
				}
			}
			in, err := problem.input(catalog, solver.Limits{MaxIterations: iterations, TimeBudget: budget})
			if err != nil {
				return err
			}
			result, err := solver.Solve(cmd.Context(), in)
			if err != nil {
				return err
			}
			c.logger.Info("solved",
				zap.Float64("score", result.Score),
				zap.Int("unfilled", result.Stats.Unfilled),
				zap.String("stopped_by", result.Stats.StoppedBy))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return printRoster(cmd.OutOrStdout(), in, result)
		},
	}
	cmd.Flags().StringVar(&templatesFile, "templates", "", "Shift templates YAML, needed when the problem names a template")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result as JSON")
	cmd.Flags().IntVar(&iterations, "iterations", solver.DefaultMaxIterations, "Improvement iteration limit")
	cmd.Flags().DurationVar(&budget, "budget", solver.DefaultTimeBudget, "Improvement time budget")
	return cmd
}

func (c *cli) parseRuleCmd() *cobra.Command {
	var (
		staffFlags []string
		backend    string
	)
	cmd := &cobra.Command{
		Use:   "parse-rule <text>",
		Short: "Parse a free-text roster rule and validate the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			staff := map[string]string{}
			for _, entry := range staffFlags {
				id, name, ok := strings.Cut(entry, "=")
				if !ok || id == "" || name == "" {
					return fmt.Errorf("--staff expects id=Name, got %q", entry)
				}
				staff[id] = name
			}

			var parser ruleparser.Parser
			switch backend {
			case "pattern":
				parser = ruleparser.NewPatternParser()
			case "llm":
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				parser = ruleparser.NewLLMParser(ruleparser.LLMConfig{
					URL:     cfg.RuleParser.URL,
					APIKey:  cfg.RuleParser.APIKey,
					Model:   cfg.RuleParser.Model,
					Timeout: cfg.RuleParser.Timeout,
				}, nil, c.logger)
			default:
				return fmt.Errorf("unknown backend %q", backend)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			result, err := parser.Parse(ctx, strings.Join(args, " "), staff)
			if err != nil {
				return err
			}
			report := map[string]interface{}{"result": result}
			if result.Success {
				report["description"] = ruleparser.Describe(result.Constraint, staff)
				report["validation"] = ruleparser.Validate(result.Constraint)
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringArrayVar(&staffFlags, "staff", nil, "Known staff as id=Name, repeatable")
	cmd.Flags().StringVar(&backend, "backend", "pattern", "Parser backend: pattern or llm")
	return cmd
}

func validateTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-templates <templates.yaml>",
		Short: "Check a shift templates file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := templates.Load(args[0])
			if err != nil {
				return err
			}
			for _, name := range catalog.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func printRoster(out io.Writer, in solver.Input, result *solver.Result) error {
	names := make(map[string]string, len(in.Staff))
	for _, s := range in.Staff {
		names[s.ID] = s.DisplayName()
	}
	assignments := append([]solver.Assignment(nil), result.Assignments...)
	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].DayOfWeek != assignments[j].DayOfWeek {
			return assignments[i].DayOfWeek < assignments[j].DayOfWeek
		}
		return assignments[i].Start < assignments[j].Start
	})

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tSHIFT\tTIME\tROLE\tSTAFF")
	for _, a := range assignments {
		staff := "-"
		if a.StaffID != nil {
			staff = names[*a.StaffID]
		} else if a.Required {
			staff = "UNFILLED"
		} else {
			continue
		}
		role := a.Role
		if role == "" {
			role = "any"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s-%s\t%s\t%s\n",
			weekDate(in.WeekStart, a.DayOfWeek), models.DayName(a.DayOfWeek), a.ShiftType,
			models.FormatClock(a.Start), models.FormatClock(a.End), role, staff)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nscore %.2f, %d/%d filled, %d unfilled required, %s after %d iterations\n",
		result.Score, result.Stats.Filled, result.Stats.Positions, result.Stats.Unfilled, result.Stats.StoppedBy, result.Stats.Iterations)
	for _, v := range result.Violations {
		fmt.Fprintf(out, "  [%s] %s (%.1f)\n", v.Kind, v.Message, v.Penalty)
	}
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
