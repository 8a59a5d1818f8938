package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gigo/sales-engine/sales"
)

func newReconcileCmd() *cobra.Command {
	var (
		agentID string
		apply   bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute an agent's plan total from its reports",
		Long: `Recompute an agent's current plan total from the authoritative report set
and print a unified diff of the plan before and after.

Nothing is written unless --apply is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := a.logger.WithContext(cmd.Context())
			return runReconcile(ctx, a.service, sales.AgentID(agentID), apply, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent ID to reconcile")
	cmd.Flags().BoolVar(&apply, "apply", false, "persist the recomputed total")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func runReconcile(ctx context.Context, svc *sales.Service, agentID sales.AgentID, apply bool, out io.Writer) error {
	rec, err := svc.Reconcile(ctx, sales.System, agentID, apply)
	if err != nil {
		return err
	}

	diff, err := reconcileDiff(rec)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintf(out, "plan %s is consistent: current_total %s\n", agentID, rec.After)
		return nil
	}

	fmt.Fprint(out, diff)
	if apply {
		fmt.Fprintf(out, "applied: current_total %s -> %s\n", rec.Before, rec.After)
	} else {
		fmt.Fprintln(out, "dry run: re-run with --apply to save")
	}
	return nil
}

// planView is the YAML rendering of a plan used for diffs.
type planView struct {
	AgentID          string            `yaml:"agent_id"`
	TotalTarget      string            `yaml:"total_target"`
	CurrentTotal     string            `yaml:"current_total"`
	Window           string            `yaml:"window"`
	DebtLimitPercent string            `yaml:"debt_limit_percent"`
	Distribution     map[string]string `yaml:"category_distribution"`
}

func renderPlan(p sales.Plan) (string, error) {
	v := planView{
		AgentID:          string(p.AgentID),
		TotalTarget:      p.TotalTarget.String(),
		CurrentTotal:     p.CurrentTotal.String(),
		Window:           p.Window.String(),
		DebtLimitPercent: p.DebtLimitPercent.String(),
		Distribution:     make(map[string]string, len(p.CategoryDistribution)),
	}
	for c, d := range p.CategoryDistribution {
		v.Distribution[string(c)] = d.String()
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render plan: %w", err)
	}
	return string(data), nil
}

// reconcileDiff returns a unified diff of the plan before and after, or ""
// when nothing drifted.
func reconcileDiff(rec *sales.Reconciliation) (string, error) {
	before := rec.Plan.Clone()
	before.CurrentTotal = rec.Before
	after := rec.Plan.Clone()
	after.CurrentTotal = rec.After

	a, err := renderPlan(before)
	if err != nil {
		return "", err
	}
	b, err := renderPlan(after)
	if err != nil {
		return "", err
	}

	name := "plans/" + string(rec.AgentID) + ".yaml"
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: name + " (stored)",
		ToFile:   name + " (recomputed)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff plan: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}
