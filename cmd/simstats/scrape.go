package main

import (
	"encoding/json"
	"fmt"
	"os"

	"simstats-backend/internal/simstats"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var dryRun bool

func init() {
	scrapeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "scrape without writing to the store")
	rootCmd.AddCommand(scrapeCmd)
}

func printSnapshot(snapshot simstats.UsageSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Metric", "Raw", "MB"})
	t.AppendRows([]table.Row{
		{"month", snapshot.MonthUsedRaw, snapshot.MonthUsedMb},
		{"day", snapshot.DayUsedRaw, snapshot.DayUsedMb},
	})
	for _, warning := range snapshot.Warnings {
		t.AppendFooter(table.Row{"warning", warning.Error(), ""})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printResult(res simstats.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Record", "Raw", "MB", "Path", "Write"})
	t.AppendRows([]table.Row{
		{"today", res.MonthUsed, res.TodayData, res.TodayPath, res.TodayOkNg},
		{"yesterday", res.YesterdayUsed, res.YesterdayData, res.YesterdayPath, res.YesterdayOkNg},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var scrapeCmd = &cobra.Command{
	Use:       "scrape <provider>",
	Short:     "Runs a single update for a provider and prints its result.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{simstats.ProviderDcm, simstats.ProviderNuro, simstats.ProviderZeroSim},
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := config.newService(tel)
		if err != nil {
			return err
		}

		if dryRun {
			snapshot, err := service.Scrape(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSnapshot(snapshot)
			return nil
		}

		res := service.Update(cmd.Context(), args[0])
		if res.Failed() {
			body, _ := json.Marshal(res)
			return fmt.Errorf("%s", body)
		}
		printResult(*res.Result)
		return nil
	},
}
