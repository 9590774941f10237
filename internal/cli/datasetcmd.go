package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sergeylevashov/schedy/internal/intent"
)

func init() {
	datasetCmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage the training dataset",
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the starter corpora (idempotent)",
		Run:   runDatasetSeed,
	}

	addCmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a labeled intent example",
		Run:   runDatasetAdd,
	}
	addCmd.Flags().StringP("label", "l", "", "Intent label: ADD_EVENT, DELETE_EVENT, MOVE_EVENT, CHECK_EVENTS")
	addCmd.MarkFlagRequired("label")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus sizes",
		Run:   runDatasetStats,
	}

	datasetCmd.AddCommand(seedCmd, addCmd, statsCmd)
	RootCmd.AddCommand(datasetCmd)
}

func runDatasetSeed(cmd *cobra.Command, args []string) {
	cfg := resolveConfig()
	s, err := openDataset(cfg)
	if err != nil {
		exitErr("open dataset", err)
	}
	defer s.Close()

	if err := s.Seed(cmd.Context()); err != nil {
		exitErr("seed", err)
	}

	intents, sentences, err := s.Counts(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	fmt.Printf("dataset: %d intent examples, %d entity sentences\n", intents, sentences)
}

func runDatasetAdd(cmd *cobra.Command, args []string) {
	labelStr, _ := cmd.Flags().GetString("label")

	text := readText(args)
	if text == "" {
		exitErr("dataset add", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	label := intent.Intent(strings.ToUpper(strings.TrimSpace(labelStr)))
	valid := false
	for _, known := range intent.Intents {
		if label == known {
			valid = true
			break
		}
	}
	if !valid {
		exitErr("dataset add", fmt.Errorf("unknown label %q", labelStr))
	}

	cfg := resolveConfig()
	s, err := openDataset(cfg)
	if err != nil {
		exitErr("open dataset", err)
	}
	defer s.Close()

	if err := s.AddIntentExample(cmd.Context(), text, label); err != nil {
		exitErr("add example", err)
	}
	fmt.Printf("stored %q as %s\n", text, label)
}

func runDatasetStats(cmd *cobra.Command, args []string) {
	cfg := resolveConfig()
	s, err := openDataset(cfg)
	if err != nil {
		exitErr("open dataset", err)
	}
	defer s.Close()

	intents, sentences, err := s.Counts(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	b, _ := json.MarshalIndent(map[string]int{
		"intent_examples":  intents,
		"entity_sentences": sentences,
	}, "", "  ")
	fmt.Println(string(b))
}
