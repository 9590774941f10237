// Package cli implements the schedy CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sergeylevashov/schedy/internal/calendar"
	"github.com/sergeylevashov/schedy/internal/config"
	"github.com/sergeylevashov/schedy/internal/dataset"
	"github.com/sergeylevashov/schedy/internal/entity"
	"github.com/sergeylevashov/schedy/internal/intent"
	"github.com/sergeylevashov/schedy/internal/pipeline"
	"github.com/sergeylevashov/schedy/internal/textproc"
)

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

var (
	configPath  string
	tzFlag      string
	calendarID  string
	datasetDB   string
	verboseFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "schedy",
	Short: "Turn Russian scheduling requests into calendar events",
	Long: "Schedy interprets free-form Russian text like 'Поставь встречу с Кириллом " +
		"на завтра в 10 утра': it detects the intent, extracts entities, resolves " +
		"dates and times, and builds (or creates) a calendar event.",
}

func init() {
	RootCmd.Version = Version
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.schedy/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&tzFlag, "tz", "", "IANA timezone, e.g. Europe/Moscow")
	RootCmd.PersistentFlags().StringVar(&calendarID, "calendar", "", "Google calendar id (default: primary)")
	RootCmd.PersistentFlags().StringVar(&datasetDB, "dataset-db", "", "Training dataset database path")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log pipeline stages to stderr")
}

// defaultONNXLabels is the output class order of the exported
// token-classification model.
var defaultONNXLabels = []string{
	"O",
	"B-PERSON", "I-PERSON",
	"B-TIME", "I-TIME",
	"B-DATE", "I-DATE",
	"B-EVENT", "I-EVENT",
	"B-LOCATION", "I-LOCATION",
	"B-DURATION", "I-DURATION",
	"B-EVENT_NAME", "I-EVENT_NAME",
}

func resolveConfig() config.ResolvedConfig {
	cfg, err := config.Resolve(config.ResolveOptions{
		ConfigPath:    configPath,
		CLITimezone:   tzFlag,
		CLICalendarID: calendarID,
		CLIDatasetDB:  datasetDB,
	})
	if err != nil {
		exitErr("resolve config", err)
	}
	return cfg
}

// buildPipeline assembles the pipeline from the resolved configuration:
// trained models when their paths are set, rule-based fallbacks
// otherwise, and a Google calendar when a token is available.
func buildPipeline(cfg config.ResolvedConfig) (*pipeline.Pipeline, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	proc := textproc.NewProcessor(textproc.WithMaxLength(cfg.MaxLength()))
	opts := []pipeline.Option{pipeline.WithProcessor(proc)}

	if verboseFlag {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		opts = append(opts, pipeline.WithLogger(logger))
	}

	if path := cfg.IntentModelPath.Value; path != "" {
		clf := intent.NewModelClassifier(intent.WithMarginThreshold(cfg.Threshold()))
		if err := clf.Load(path); err != nil {
			return nil, fmt.Errorf("loading intent model: %w", err)
		}
		opts = append(opts, pipeline.WithClassifier(clf))
	}

	tagger, err := buildTagger(cfg)
	if err != nil {
		return nil, err
	}
	if tagger != nil {
		opts = append(opts, pipeline.WithExtractor(entity.NewExtractor(proc, entity.WithTagger(tagger))))
	}

	if token := cfg.AccessToken.Value; token != "" {
		client := calendar.NewGoogleClient(token, cfg.CalendarID.Value, calendar.WithLocation(loc))
		opts = append(opts, pipeline.WithCalendar(client))
	}

	return pipeline.New(loc, opts...), nil
}

// buildTagger prefers the ONNX transformer tagger, then the perceptron
// tagger, then no tagger at all.
func buildTagger(cfg config.ResolvedConfig) (entity.SpanTagger, error) {
	if cfg.OnnxModelPath.Value != "" && cfg.TokenizerPath.Value != "" {
		t, err := entity.NewONNXTagger(entity.ONNXConfig{
			ModelPath:     cfg.OnnxModelPath.Value,
			TokenizerPath: cfg.TokenizerPath.Value,
			Labels:        defaultONNXLabels,
		})
		if err != nil {
			return nil, fmt.Errorf("loading onnx tagger: %w", err)
		}
		return t, nil
	}
	if path := cfg.EntityModelPath.Value; path != "" {
		t := entity.NewPerceptronTagger()
		if err := t.Load(path); err != nil {
			return nil, fmt.Errorf("loading entity tagger: %w", err)
		}
		return t, nil
	}
	return nil, nil
}

func openDataset(cfg config.ResolvedConfig) (*dataset.Store, error) {
	return dataset.Open(cfg.DatasetDBPath.Value)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
