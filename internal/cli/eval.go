package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sergeylevashov/schedy/internal/entity"
	"github.com/sergeylevashov/schedy/internal/intent"
)

func init() {
	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the trained models against the stored dataset",
	}

	intentCmd := &cobra.Command{
		Use:   "intent",
		Short: "Score the intent classifier",
		Run:   runEvalIntent,
	}
	intentCmd.Flags().String("model", "", "Model path (default: the configured intent model)")

	entityCmd := &cobra.Command{
		Use:   "entity",
		Short: "Score the entity tagger",
		Run:   runEvalEntity,
	}
	entityCmd.Flags().String("model", "", "Model path (default: the configured entity model)")

	evalCmd.AddCommand(intentCmd, entityCmd)
	RootCmd.AddCommand(evalCmd)
}

func runEvalIntent(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("model")

	cfg := resolveConfig()
	if path == "" {
		path = cfg.IntentModelPath.Value
	}
	if path == "" {
		exitErr("eval intent", fmt.Errorf("no intent model configured (use --model or SCHEDY_INTENT_MODEL)"))
	}

	clf := intent.NewModelClassifier()
	if err := clf.Load(path); err != nil {
		exitErr("load model", err)
	}

	s, err := openDataset(cfg)
	if err != nil {
		exitErr("open dataset", err)
	}
	defer s.Close()

	examples, err := s.IntentExamples(cmd.Context())
	if err != nil {
		exitErr("load examples", err)
	}

	report, err := clf.Evaluate(examples)
	if err != nil {
		exitErr("evaluate", err)
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}

func runEvalEntity(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("model")

	cfg := resolveConfig()
	if path == "" {
		path = cfg.EntityModelPath.Value
	}
	if path == "" {
		exitErr("eval entity", fmt.Errorf("no entity model configured (use --model or SCHEDY_ENTITY_MODEL)"))
	}

	tagger := entity.NewPerceptronTagger()
	if err := tagger.Load(path); err != nil {
		exitErr("load model", err)
	}

	s, err := openDataset(cfg)
	if err != nil {
		exitErr("open dataset", err)
	}
	defer s.Close()

	sentences, err := s.EntitySentences(cmd.Context())
	if err != nil {
		exitErr("load sentences", err)
	}

	metrics, err := tagger.Evaluate(sentences)
	if err != nil {
		exitErr("evaluate", err)
	}

	b, _ := json.MarshalIndent(metrics, "", "  ")
	fmt.Println(string(b))
}
