package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/datasets"
	"github.com/symgo/symreg/pkg/search"
)

var rootCmd = &cobra.Command{
	Use:   "symreg-cli",
	Short: "Symbolic regression over tabular data",
	Long: `symreg-cli evolves populations of mathematical expressions to fit a
target column of a CSV file, and reports the Pareto-optimal set of equations
ranked by complexity.`,
	Version: "0.1.0",
}

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a search described by a YAML config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadRunConfig(configPath)
		if err != nil {
			return err
		}
		opts, err := cfg.Options()
		if err != nil {
			return err
		}
		ds, err := datasets.LoadCSV(cfg.Data, cfg.Target)
		if err != nil {
			return err
		}

		driver, err := search.NewDriver(ds, opts)
		if err != nil {
			return err
		}
		result, err := driver.Run(context.Background())
		if err != nil {
			return err
		}

		for out := 0; out < ds.NumOutputs(); out++ {
			printReport(result.Report(out))
		}
		return nil
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the search on a built-in benchmark",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := datasets.Square(rand.New(rand.NewSource(1)), 100)
		if err != nil {
			return err
		}

		opts := core.DefaultOptions()
		opts.Iterations = 15
		opts.NumPopulations = 4
		opts.CyclesPerIteration = 100

		driver, err := search.NewDriver(ds, opts)
		if err != nil {
			return err
		}
		result, err := driver.Run(context.Background())
		if err != nil {
			return err
		}

		printReport(result.Report(0))
		return nil
	},
}

func printReport(report search.Report) {
	if len(report.Strings) == 0 {
		fmt.Println("no equation was ever successfully evaluated")
		return
	}
	fmt.Printf("%-12s %-14s %-10s equation\n", "complexity", "loss", "score")
	for i := range report.Strings {
		fmt.Printf("%-12d %-14.6g %-10.4f %s\n",
			report.Complexities[i], report.Losses[i], report.Scores[i], report.Strings[i])
	}
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "symreg.yaml", "path to the run config")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
