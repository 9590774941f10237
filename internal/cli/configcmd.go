package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and where each value came from",
		Run:   runConfig,
	}

	RootCmd.AddCommand(cmd)
}

func runConfig(cmd *cobra.Command, args []string) {
	cfg := resolveConfig()

	b, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Println(string(b))
}
