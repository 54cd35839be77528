package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"kitchenplan/internal/dataset"
	"kitchenplan/internal/forecast"
	"kitchenplan/internal/models"
	"kitchenplan/internal/storage"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

type planOptions struct {
	history   string
	menu      string
	inventory string
	date      string
	format    string
	narrate   bool
	archive   bool
}

func newPlanCmd() *cobra.Command {
	opts := planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Forecast tomorrow's demand and print a production plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.history, "history", "", "sales history CSV")
	cmd.Flags().StringVar(&opts.menu, "menu", "", "menu YAML file")
	cmd.Flags().StringVar(&opts.inventory, "inventory", "", "inventory YAML file")
	cmd.Flags().StringVar(&opts.date, "date", "", "prediction date, YYYY-MM-DD (default tomorrow)")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "output format: json or yaml")
	cmd.Flags().BoolVar(&opts.narrate, "narrate", false, "add a plain language briefing")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "archive the plan in the database")
	_ = cmd.MarkFlagRequired("menu")
	return cmd
}

func runPlan(ctx context.Context, opts planOptions) error {
	req := forecast.PlanRequest{Narrate: opts.narrate}

	var err error
	if opts.history != "" {
		if req.History, err = dataset.LoadSalesFile(opts.history); err != nil {
			return err
		}
	}
	if req.Menu, err = dataset.LoadMenu(opts.menu); err != nil {
		return err
	}
	if opts.inventory != "" {
		if req.Inventory, err = dataset.LoadInventory(opts.inventory); err != nil {
			return err
		}
	}
	if opts.date != "" {
		if req.Date, err = models.ParseDate(opts.date); err != nil {
			return err
		}
	}
	if opts.format != formatJSON && opts.format != formatYAML {
		return fmt.Errorf("unknown output format %q", opts.format)
	}

	a, err := newApp(ctx, appOptions{withDatabase: opts.archive})
	if err != nil {
		return err
	}
	defer a.close()

	if len(req.History) > 0 {
		if err := a.service.Load(ctx); err != nil {
			if errors.Is(err, storage.ErrArtifactNotFound) {
				return errors.New("no trained model found, run kitchenplan train first")
			}
			return err
		}
	}

	result, err := a.service.Plan(ctx, req)
	if err != nil {
		return err
	}
	for _, fb := range result.Fallbacks {
		a.logger.Warn("dish forecast fell back to historical mean",
			zap.String("dish", fb.Dish),
			zap.Float64("value", fb.Value),
			zap.String("reason", fb.Reason))
	}

	out := map[string]interface{}{
		"prediction_date": result.PredictionDate.Format("2006-01-02"),
		"production_plan": result.Plan,
		"fallbacks":       result.Fallbacks,
	}
	if result.PlanID != "" {
		out["plan_id"] = result.PlanID
	}
	if result.Narrative != "" {
		out["narrative"] = result.Narrative
	}
	return writeOutput(os.Stdout, opts.format, out)
}

// writeOutput prints v as indented JSON, or as YAML with the same keys
func writeOutput(w io.Writer, format string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch format {
	case formatJSON:
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
