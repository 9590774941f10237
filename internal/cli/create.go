package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "create [text]",
		Short: "Interpret a request and create the event in the calendar",
		Long: "Interpret a Russian scheduling request and, when it is an add-event " +
			"request, create the event in the configured Google calendar. Requires " +
			"an access token (SCHEDY_CALENDAR_TOKEN, GOOGLE_ACCESS_TOKEN, or the " +
			"config file).",
		Run: runCreate,
	}

	RootCmd.AddCommand(cmd)
}

func runCreate(cmd *cobra.Command, args []string) {
	text := readText(args)
	if text == "" {
		exitErr("create", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	cfg := resolveConfig()
	if cfg.AccessToken.Value == "" {
		exitErr("create", fmt.Errorf("no calendar access token configured"))
	}
	pl, err := buildPipeline(cfg)
	if err != nil {
		exitErr("build pipeline", err)
	}

	result := pl.InterpretAndCreate(cmd.Context(), text)
	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))

	if !result.Success {
		os.Exit(1)
	}
}
