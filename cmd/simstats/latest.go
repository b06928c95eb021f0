package main

import (
	"encoding/json"
	"os"

	"simstats-backend/internal/simstats"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var latestJson bool

func init() {
	latestCmd.Flags().BoolVar(&latestJson, "json", false, "print the same payload as GET /latest")
	rootCmd.AddCommand(latestCmd)
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Prints the most recent month total of every provider.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := config.newService(tel)
		if err != nil {
			return err
		}
		latest := service.Latest(cmd.Context())

		if latestJson {
			return json.NewEncoder(os.Stdout).Encode(latest)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Provider", "Key", "Month used (MB)"})
		for _, p := range simstats.Providers() {
			value := latest[p.AggregateKey]
			var shown any = value
			if value < 0 {
				shown = "no data"
			}
			t.AppendRow(table.Row{p.ID, p.AggregateKey, shown})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
