package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "interpret [text]",
		Short: "Interpret a request without touching the calendar",
		Long:  "Interpret a Russian scheduling request. Text can be a positional arg or piped via stdin.",
		Run:   runInterpret,
	}

	RootCmd.AddCommand(cmd)
}

func runInterpret(cmd *cobra.Command, args []string) {
	text := readText(args)
	if text == "" {
		exitErr("interpret", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	cfg := resolveConfig()
	pl, err := buildPipeline(cfg)
	if err != nil {
		exitErr("build pipeline", err)
	}

	result := pl.Interpret(cmd.Context(), text)
	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))

	if !result.Success {
		os.Exit(1)
	}
}

// readText joins positional args, falling back to stdin when piped.
func readText(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " "))
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return strings.TrimSpace(string(b))
	}
	return ""
}
