package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// OptionName is the key of the single settings row.
const OptionName = "quiz_maker_fq_settings"

const (
	DefaultMaxQuestions      = 20
	DefaultConsecutiveNeeded = 3
	DefaultDisplayTitle      = "Test de preguntas falladas"
)

type Settings struct {
	MaxQuestions      int    `json:"max_questions"`
	ConsecutiveNeeded int    `json:"consecutive_correct_needed"`
	DisplayTitle      string `json:"shortcode_text"`
}

func Defaults() Settings {
	return Settings{
		MaxQuestions:      DefaultMaxQuestions,
		ConsecutiveNeeded: DefaultConsecutiveNeeded,
		DisplayTitle:      DefaultDisplayTitle,
	}
}

// Partial is what a settings form submits. Nil fields are not written, so
// they read back as defaults.
type Partial struct {
	MaxQuestions      *int    `json:"max_questions,omitempty"`
	ConsecutiveNeeded *int    `json:"consecutive_correct_needed,omitempty"`
	DisplayTitle      *string `json:"shortcode_text,omitempty"`
}

// Source is the read side used by the lifecycle updater and the generator.
type Source interface {
	Get(ctx context.Context) (Settings, error)
}

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

// Get returns the stored settings, filling any key that was never saved
// with its default.
func (r *Repo) Get(ctx context.Context) (Settings, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM failedq_options WHERE name=$1`, OptionName).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	var p Partial
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Settings{}, err
	}
	return p.merge(Defaults()), nil
}

// Save overwrites the stored row with exactly the submitted keys.
func (r *Repo) Save(ctx context.Context, p Partial) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO failedq_options (name, value, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		OptionName, string(b), r.now().Unix())
	return err
}

// EnsureDefaults stores the defaults unless a row already exists.
func (r *Repo) EnsureDefaults(ctx context.Context) error {
	d := Defaults()
	b, err := json.Marshal(Partial{
		MaxQuestions:      &d.MaxQuestions,
		ConsecutiveNeeded: &d.ConsecutiveNeeded,
		DisplayTitle:      &d.DisplayTitle,
	})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO failedq_options (name, value, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (name) DO NOTHING`,
		OptionName, string(b), r.now().Unix())
	return err
}

func (p Partial) merge(s Settings) Settings {
	if p.MaxQuestions != nil {
		s.MaxQuestions = *p.MaxQuestions
	}
	if p.ConsecutiveNeeded != nil {
		s.ConsecutiveNeeded = *p.ConsecutiveNeeded
	}
	if p.DisplayTitle != nil {
		s.DisplayTitle = *p.DisplayTitle
	}
	return s
}
