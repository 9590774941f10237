// Package config resolves runtime settings from the config file, the
// environment, and CLI flags, in that order of increasing precedence.
// Every resolved value remembers where it came from so `schedy config`
// can explain the effective configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Built-in defaults.
const (
	DefaultTimezone        = "Europe/Moscow"
	DefaultMaxTextLength   = 1000
	DefaultMarginThreshold = 0.5
	DefaultCalendarID      = "primary"
)

// ResolvedValue is one setting with provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath    string
	CLITimezone   string
	CLICalendarID string
	CLIDatasetDB  string
}

// ResolvedConfig is the effective configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	Timezone        ResolvedValue `json:"timezone"`
	MaxTextLength   ResolvedValue `json:"max_text_length"`
	MarginThreshold ResolvedValue `json:"margin_threshold"`

	IntentModelPath ResolvedValue `json:"intent_model_path"`
	EntityModelPath ResolvedValue `json:"entity_model_path"`
	OnnxModelPath   ResolvedValue `json:"onnx_model_path"`
	TokenizerPath   ResolvedValue `json:"tokenizer_path"`

	CalendarID    ResolvedValue `json:"calendar_id"`
	AccessToken   ResolvedValue `json:"-"`
	DatasetDBPath ResolvedValue `json:"dataset_db_path"`
}

type fileConfig struct {
	Timezone        string  `yaml:"timezone"`
	MaxTextLength   int     `yaml:"max_text_length"`
	MarginThreshold float64 `yaml:"margin_threshold"`
	Models          struct {
		Intent    string `yaml:"intent"`
		Entity    string `yaml:"entity"`
		Onnx      string `yaml:"onnx"`
		Tokenizer string `yaml:"tokenizer"`
	} `yaml:"models"`
	Calendar struct {
		ID          string `yaml:"id"`
		AccessToken string `yaml:"access_token"`
	} `yaml:"calendar"`
	Dataset struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"dataset"`
}

// DefaultConfigPath is ~/.schedy/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".schedy", "config.yaml")
}

// Resolve layers file, environment, and CLI values. A missing config
// file is not an error; a malformed one is.
func Resolve(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:      path,
		Timezone:        ResolvedValue{Value: DefaultTimezone, Source: SourceDefault, From: "built-in default"},
		MaxTextLength:   ResolvedValue{Value: strconv.Itoa(DefaultMaxTextLength), Source: SourceDefault, From: "built-in default"},
		MarginThreshold: ResolvedValue{Value: formatFloat(DefaultMarginThreshold), Source: SourceDefault, From: "built-in default"},
		CalendarID:      ResolvedValue{Value: DefaultCalendarID, Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadFile(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.Timezone, cfg.Timezone, SourceConfig, path)
		if cfg.MaxTextLength > 0 {
			apply(&out.MaxTextLength, strconv.Itoa(cfg.MaxTextLength), SourceConfig, path)
		}
		if cfg.MarginThreshold > 0 {
			apply(&out.MarginThreshold, formatFloat(cfg.MarginThreshold), SourceConfig, path)
		}
		apply(&out.IntentModelPath, cfg.Models.Intent, SourceConfig, path)
		apply(&out.EntityModelPath, cfg.Models.Entity, SourceConfig, path)
		apply(&out.OnnxModelPath, cfg.Models.Onnx, SourceConfig, path)
		apply(&out.TokenizerPath, cfg.Models.Tokenizer, SourceConfig, path)
		apply(&out.CalendarID, cfg.Calendar.ID, SourceConfig, path)
		apply(&out.AccessToken, cfg.Calendar.AccessToken, SourceConfig, path)
		apply(&out.DatasetDBPath, cfg.Dataset.DBPath, SourceConfig, path)
	}

	applyEnv(&out.Timezone, "SCHEDY_TZ")
	applyEnv(&out.MaxTextLength, "SCHEDY_MAX_TEXT_LENGTH")
	applyEnv(&out.MarginThreshold, "SCHEDY_MARGIN_THRESHOLD")
	applyEnv(&out.IntentModelPath, "SCHEDY_INTENT_MODEL")
	applyEnv(&out.EntityModelPath, "SCHEDY_ENTITY_MODEL")
	applyEnv(&out.OnnxModelPath, "SCHEDY_ONNX_MODEL")
	applyEnv(&out.TokenizerPath, "SCHEDY_TOKENIZER")
	applyEnv(&out.CalendarID, "SCHEDY_CALENDAR_ID")
	applyEnv(&out.AccessToken, "SCHEDY_CALENDAR_TOKEN")
	applyEnv(&out.AccessToken, "GOOGLE_ACCESS_TOKEN")
	applyEnv(&out.DatasetDBPath, "SCHEDY_DATASET_DB")

	apply(&out.Timezone, opts.CLITimezone, SourceCLI, "--tz")
	apply(&out.CalendarID, opts.CLICalendarID, SourceCLI, "--calendar")
	apply(&out.DatasetDBPath, opts.CLIDatasetDB, SourceCLI, "--dataset-db")

	for _, v := range []*ResolvedValue{&out.IntentModelPath, &out.EntityModelPath, &out.OnnxModelPath, &out.TokenizerPath, &out.DatasetDBPath} {
		if v.Value != "" {
			v.Value = expandUserPath(v.Value)
		}
	}

	return out, nil
}

// Location parses the resolved timezone.
func (r ResolvedConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q (from %s): %w", r.Timezone.Value, r.Timezone.From, err)
	}
	return loc, nil
}

// MaxLength parses the resolved text length cap, falling back to the
// default on malformed values.
func (r ResolvedConfig) MaxLength() int {
	n, err := strconv.Atoi(r.MaxTextLength.Value)
	if err != nil || n <= 0 {
		return DefaultMaxTextLength
	}
	return n
}

// Threshold parses the resolved classification margin threshold.
func (r ResolvedConfig) Threshold() float64 {
	f, err := strconv.ParseFloat(r.MarginThreshold.Value, 64)
	if err != nil || f <= 0 {
		return DefaultMarginThreshold
	}
	return f
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadFile(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
