package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sergeylevashov/schedy/internal/entity"
	"github.com/sergeylevashov/schedy/internal/intent"
)

func init() {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train the intent and entity models on the stored dataset",
	}

	intentCmd := &cobra.Command{
		Use:   "intent",
		Short: "Train the intent classifier",
		Run:   runTrainIntent,
	}
	intentCmd.Flags().StringP("out", "o", "", "Model output path (default: ~/.schedy/intent-model.json)")
	intentCmd.Flags().Bool("seed", false, "Seed the dataset with the starter corpus first")

	entityCmd := &cobra.Command{
		Use:   "entity",
		Short: "Train the entity tagger",
		Run:   runTrainEntity,
	}
	entityCmd.Flags().StringP("out", "o", "", "Model output path (default: ~/.schedy/entity-model.json)")
	entityCmd.Flags().Bool("seed", false, "Seed the dataset with the starter corpus first")
	entityCmd.Flags().Int("epochs", 15, "Training epochs")

	trainCmd.AddCommand(intentCmd, entityCmd)
	RootCmd.AddCommand(trainCmd)
}

func runTrainIntent(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")
	seed, _ := cmd.Flags().GetBool("seed")

	cfg := resolveConfig()
	if out == "" {
		out = cfg.IntentModelPath.Value
	}
	if out == "" {
		out = defaultModelPath("intent-model.json")
	}

	s, err := openDataset(cfg)
	if err != nil {
		exitErr("open dataset", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if seed {
		if err := s.Seed(ctx); err != nil {
			exitErr("seed dataset", err)
		}
	}

	examples, err := s.IntentExamples(ctx)
	if err != nil {
		exitErr("load examples", err)
	}

	clf := intent.NewModelClassifier(intent.WithMarginThreshold(cfg.Threshold()))
	if err := clf.Train(examples); err != nil {
		exitErr("train", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		exitErr("create model directory", err)
	}
	if err := clf.Save(out); err != nil {
		exitErr("save model", err)
	}

	fmt.Printf("trained intent classifier on %d examples -> %s\n", len(examples), out)
}

func runTrainEntity(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")
	seed, _ := cmd.Flags().GetBool("seed")
	epochs, _ := cmd.Flags().GetInt("epochs")

	cfg := resolveConfig()
	if out == "" {
		out = cfg.EntityModelPath.Value
	}
	if out == "" {
		out = defaultModelPath("entity-model.json")
	}

	s, err := openDataset(cfg)
	if err != nil {
		exitErr("open dataset", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if seed {
		if err := s.Seed(ctx); err != nil {
			exitErr("seed dataset", err)
		}
	}

	sentences, err := s.EntitySentences(ctx)
	if err != nil {
		exitErr("load sentences", err)
	}

	tagger := entity.NewPerceptronTagger()
	if err := tagger.Train(sentences, epochs); err != nil {
		exitErr("train", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		exitErr("create model directory", err)
	}
	if err := tagger.Save(out); err != nil {
		exitErr("save model", err)
	}

	fmt.Printf("trained entity tagger on %d sentences -> %s\n", len(sentences), out)
}

func defaultModelPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".schedy", name)
}
