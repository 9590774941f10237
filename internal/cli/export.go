package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sergeylevashov/schedy/internal/assemble"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export-ics [text]",
		Short: "Interpret a request and print the event as iCalendar",
		Long: "Interpret a Russian scheduling request and export the resulting event " +
			"draft in iCalendar format, for import into any calendar application.",
		Run: runExportICS,
	}

	cmd.Flags().StringP("out", "o", "", "Write the .ics to a file instead of stdout")

	RootCmd.AddCommand(cmd)
}

func runExportICS(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")

	text := readText(args)
	if text == "" {
		exitErr("export-ics", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	cfg := resolveConfig()
	pl, err := buildPipeline(cfg)
	if err != nil {
		exitErr("build pipeline", err)
	}

	result := pl.Interpret(cmd.Context(), text)
	if !result.Success {
		exitErr("interpret", fmt.Errorf("%s", result.Error))
	}
	if result.Draft == nil {
		exitErr("export-ics", fmt.Errorf("not an add-event request (intent %s)", result.Intent.Intent))
	}

	ics, err := assemble.ExportICS(result.Draft)
	if err != nil {
		exitErr("export", err)
	}

	if out == "" {
		fmt.Print(ics)
		return
	}
	if err := os.WriteFile(out, []byte(ics), 0o644); err != nil {
		exitErr("write file", err)
	}
	fmt.Printf("wrote %s\n", out)
}
