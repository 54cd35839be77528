package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kitchenplan/internal/dataset"
)

type trainOptions struct {
	input       string
	saveHistory bool
	format      string
}

func newTrainCmd() *cobra.Command {
	opts := trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the demand model from a sales CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "sales history CSV (date,dish_name,quantity_sold,selling_price,cost_price)")
	cmd.Flags().BoolVar(&opts.saveHistory, "save-history", false, "also store the sales history in the database")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "output format: json or yaml")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runTrain(ctx context.Context, opts trainOptions) error {
	records, err := dataset.LoadSalesFile(opts.input)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	progress := func(round, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "training")
		}
		_ = bar.Set(round)
	}

	a, err := newApp(ctx, appOptions{withDatabase: opts.saveHistory, progress: progress})
	if err != nil {
		return err
	}
	defer a.close()

	if opts.saveHistory {
		n, err := a.sales.Insert(ctx, records)
		if err != nil {
			return fmt.Errorf("failed to store sales history: %w", err)
		}
		a.logger.Info("sales history stored", zap.Int("records", n))
	}

	artifact, err := a.service.Train(ctx, records)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	return writeOutput(os.Stdout, opts.format, map[string]interface{}{
		"model_id": artifact.ID,
		"metrics":  artifact.Metrics,
		"message":  "Model trained successfully",
	})
}
