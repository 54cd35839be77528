package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kitchenplan/internal/client"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "kitchenplan",
	Short: "Forecasts dish demand and plans kitchen production",
	Long: `kitchenplan learns daily dish demand from sales history and turns the
forecast into a production plan with waste alerts and donation suggestions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "", "server URL for status and upload (default $KITCHENPLAN_API_URL or "+client.DefaultBaseURL+")")
	rootCmd.AddCommand(newServeCmd(), newTrainCmd(), newPlanCmd(), newStatusCmd(), newUploadCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
