package strategy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"optionforge/internal/backtest"
	"optionforge/internal/domain"
)

const condorYAML = `
name: SPY Iron Condor
description: neutral, defined risk
definition:
  underlying_ticker: spy
  legs:
    - {type: put, action: sell, quantity: 1, delta: -0.16, dte: 45}
    - {type: put, action: buy, quantity: 1, strike_offset: -5, dte: 45}
    - {type: call, action: sell, quantity: 1, delta: 0.16, dte: 45}
    - {type: call, action: buy, quantity: 1, strike_offset: 5, dte: 45}
  entry_rules:
    iv_rank_min: 30
  exit_rules:
    profit_target_pct: 50
    dte_to_exit: 21
  settings:
    commission_per_contract: 0.65
`

func TestParse_YAMLWrapped(t *testing.T) {
	st, err := Parse([]byte(condorYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if st.Name != "SPY Iron Condor" {
		t.Errorf("expected name, got %q", st.Name)
	}
	def := st.Definition
	if def.UnderlyingTicker != "SPY" {
		t.Errorf("expected upper-cased ticker, got %s", def.UnderlyingTicker)
	}
	if len(def.Legs) != 4 {
		t.Fatalf("expected 4 legs, got %d", len(def.Legs))
	}
	if def.Legs[1].StrikeOffset == nil || *def.Legs[1].StrikeOffset != -5 {
		t.Errorf("expected strike offset -5, got %v", def.Legs[1].StrikeOffset)
	}
	if def.EntryRules.IVRankMin == nil || *def.EntryRules.IVRankMin != 30 {
		t.Errorf("expected iv_rank_min 30, got %v", def.EntryRules.IVRankMin)
	}
	if def.ExitRules.DTEToExit == nil || *def.ExitRules.DTEToExit != 21 {
		t.Errorf("expected dte_to_exit 21, got %v", def.ExitRules.DTEToExit)
	}
	if def.Settings.CommissionPerContract != 0.65 {
		t.Errorf("expected commission 0.65, got %v", def.Settings.CommissionPerContract)
	}
}

func TestParse_JSONBare(t *testing.T) {
	data := `{"underlying_ticker":"QQQ","legs":[{"type":"put","action":"sell","quantity":1,"delta":-0.3,"dte":30}]}`
	st, err := Parse([]byte(data), FormatJSON)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if st.Name != "" {
		t.Errorf("bare definition should have no name, got %q", st.Name)
	}
	if st.Definition.Legs[0].Type != domain.OptionTypePut {
		t.Errorf("expected put leg, got %s", st.Definition.Legs[0].Type)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  string
		wantErr error
	}{
		{"unknown format", "{}", "toml", ErrUnknownFormat},
		{"no legs", `{"name":"empty","definition":{"underlying_ticker":"SPY"}}`, FormatJSON, ErrMissingDefinition},
		{"invalid leg", `{"underlying_ticker":"SPY","legs":[{"type":"put","action":"sell","quantity":1,"dte":30}]}`, FormatJSON, backtest.ErrInvalidStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := Parse([]byte("legs: [\n"), FormatYAML); err == nil {
		t.Error("expected yaml syntax error")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short_put.yml")
	data := "underlying_ticker: SPY\nlegs:\n  - {type: put, action: sell, quantity: 1, delta: -0.3, dte: 30}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	st, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if st.Name != "short_put" {
		t.Errorf("expected name from file, got %q", st.Name)
	}

	if _, err := LoadFile(filepath.Join(dir, "strategy.txt")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
