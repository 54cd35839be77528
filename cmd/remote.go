package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kitchenplan/internal/client"
	"kitchenplan/internal/dataset"
)

var apiURL string

func newStatusCmd() *cobra.Command {
	opts := struct {
		format string
		plans  int
	}{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health, monitor snapshot and recent plans of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), client.New(apiURL), opts.format, opts.plans)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", formatYAML, "output format: json or yaml")
	cmd.Flags().IntVar(&opts.plans, "plans", 0, "also list this many archived plans")
	return cmd
}

func runStatus(ctx context.Context, c *client.Client, format string, plans int) error {
	health, err := c.Health(ctx)
	if err != nil {
		return fmt.Errorf("server at %s is not available: %w", c.BaseURL, err)
	}
	snapshot, err := c.Monitor(ctx)
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"health":  health,
		"monitor": snapshot,
	}
	if plans > 0 {
		archived, err := c.RecentPlans(ctx, plans)
		if err != nil {
			return err
		}
		out["plans"] = archived
	}
	return writeOutput(os.Stdout, format, out)
}

func newUploadCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a sales CSV to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := dataset.LoadSalesFile(input)
			if err != nil {
				return err
			}
			n, err := client.New(apiURL).UploadSales(cmd.Context(), records)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "uploaded %d sales records\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "sales history CSV")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
