package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List upcoming calendar events",
		Run:   runEvents,
	}

	cmd.Flags().Int("days", 7, "How many days ahead to list")

	RootCmd.AddCommand(cmd)
}

func runEvents(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")

	cfg := resolveConfig()
	if cfg.AccessToken.Value == "" {
		exitErr("events", fmt.Errorf("no calendar access token configured"))
	}
	pl, err := buildPipeline(cfg)
	if err != nil {
		exitErr("build pipeline", err)
	}

	events, err := pl.GetUpcomingEvents(cmd.Context(), days)
	if err != nil {
		exitErr("list events", err)
	}

	b, _ := json.MarshalIndent(events, "", "  ")
	fmt.Println(string(b))
}
