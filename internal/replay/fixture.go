package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/logging"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/strategy"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string              `json:"description"`
	Rules           string              `json:"rules,omitempty"` // YAML overlay, relative to the fixture file
	Turns           []conversation.Turn `json:"turns"`
	ExpectedResults []Expectation       `json:"expected_results"`
	ExpectedFinal   *FinalExpectation   `json:"expected_final,omitempty"`

	dir string
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return &f, nil
}

// Engine builds the engine a fixture runs against: its rule overlay (if
// any) and a fixed template picker so replies are reproducible.
func (f *Fixture) Engine() (*engine.Engine, error) {
	cfg := engine.DefaultConfig()
	cfg.Picker = strategy.FirstTemplate
	if f.Rules != "" {
		path := f.Rules
		if !filepath.IsAbs(path) {
			path = filepath.Join(f.dir, path)
		}
		tbl, err := rules.Load(path)
		if err != nil {
			return nil, fmt.Errorf("fixture rules: %w", err)
		}
		cfg.Rules = tbl
	}
	return engine.New(cfg), nil
}

// Run replays the fixture and returns every comparison row plus the summary.
func (f *Fixture) Run() ([]Comparison, ReplaySummary, error) {
	eng, err := f.Engine()
	if err != nil {
		return nil, ReplaySummary{}, err
	}
	results, final := Replay(eng, f.Turns)
	sum := Summarize(eng, results, final)
	rows := Compare(results, f.ExpectedResults)
	rows = append(rows, CompareFinal(sum, f.ExpectedFinal)...)
	return rows, sum, nil
}

// #endregion fixture-loader

// #region fixture-export

// FixtureFromLog turns a recorded session into a fixture. With a report the
// final scores, phase, trust, tactics and level are pinned as well.
func FixtureFromLog(description string, entries []logging.AnnotationEntry, report *scoring.Report) *Fixture {
	turns, expected := FromLog(entries)
	f := &Fixture{Description: description, Turns: turns, ExpectedResults: expected}
	if report != nil {
		scores := report.Scores
		trust := report.TrustLevel
		tactics := make([]string, 0, len(report.DetectedTactics))
		for _, t := range report.DetectedTactics {
			tactics = append(tactics, string(t))
		}
		f.ExpectedFinal = &FinalExpectation{
			Scores:          &scores,
			Phase:           report.FinalPhase.String(),
			TrustLevel:      &trust,
			DetectedTactics: tactics,
			Level:           report.Level,
		}
	}
	return f
}

// Save writes f as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-export
