// Package dataset stores labeled training examples in a single SQLite
// database file: intent-labeled texts for the classifier and span-labeled
// sentences for the entity tagger.
package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sergeylevashov/schedy/internal/entity"
	"github.com/sergeylevashov/schedy/internal/intent"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.schedy/dataset.db"

// Store holds the labeled corpora. Pass ":memory:" to Open for tests.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (and if needed creates) the dataset database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = expandPath(DefaultDBPath)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating dataset directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging dataset db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating dataset db: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS intent_examples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	text       TEXT NOT NULL,
	label      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(text, label)
);
CREATE TABLE IF NOT EXISTS entity_sentences (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	text       TEXT NOT NULL UNIQUE,
	spans_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);`
	_, err := s.db.Exec(schema)
	return err
}

// AddIntentExample stores one labeled text. Duplicates are ignored.
func (s *Store) AddIntentExample(ctx context.Context, text string, label intent.Intent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO intent_examples (text, label, created_at) VALUES (?, ?, ?)`,
		text, string(label), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting intent example: %w", err)
	}
	return nil
}

// IntentExamples returns every stored labeled text.
func (s *Store) IntentExamples(ctx context.Context) ([]intent.Example, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text, label FROM intent_examples ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying intent examples: %w", err)
	}
	defer rows.Close()

	var out []intent.Example
	for rows.Next() {
		var ex intent.Example
		var label string
		if err := rows.Scan(&ex.Text, &label); err != nil {
			return nil, fmt.Errorf("scanning intent example: %w", err)
		}
		ex.Label = intent.Intent(label)
		out = append(out, ex)
	}
	return out, rows.Err()
}

// spanRecord is the JSON shape of one stored span.
type spanRecord struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// AddEntitySentence stores one sentence with rune-offset labeled spans.
// Re-adding the same sentence is ignored.
func (s *Store) AddEntitySentence(ctx context.Context, text string, spans []entity.OffsetSpan) error {
	records := make([]spanRecord, len(spans))
	for i, sp := range spans {
		records[i] = spanRecord{Start: sp.Start, End: sp.End, Label: string(sp.Label)}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding spans: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entity_sentences (text, spans_json, created_at) VALUES (?, ?, ?)`,
		text, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting entity sentence: %w", err)
	}
	return nil
}

// EntitySentences returns every stored sentence converted to BIO-tagged
// training form.
func (s *Store) EntitySentences(ctx context.Context) ([]entity.TaggedSentence, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text, spans_json FROM entity_sentences ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying entity sentences: %w", err)
	}
	defer rows.Close()

	var out []entity.TaggedSentence
	for rows.Next() {
		var text, spansJSON string
		if err := rows.Scan(&text, &spansJSON); err != nil {
			return nil, fmt.Errorf("scanning entity sentence: %w", err)
		}
		var records []spanRecord
		if err := json.Unmarshal([]byte(spansJSON), &records); err != nil {
			return nil, fmt.Errorf("decoding spans for %q: %w", text, err)
		}
		spans := make([]entity.OffsetSpan, len(records))
		for i, r := range records {
			spans[i] = entity.OffsetSpan{Start: r.Start, End: r.End, Label: entity.Label(r.Label)}
		}
		out = append(out, entity.NewTaggedSentence(text, spans))
	}
	return out, rows.Err()
}

// Counts reports the corpus sizes.
func (s *Store) Counts(ctx context.Context) (intents, sentences int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intent_examples`).Scan(&intents); err != nil {
		return 0, 0, fmt.Errorf("counting intent examples: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entity_sentences`).Scan(&sentences); err != nil {
		return 0, 0, fmt.Errorf("counting entity sentences: %w", err)
	}
	return intents, sentences, nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
