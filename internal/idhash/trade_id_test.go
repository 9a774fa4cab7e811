package idhash

import (
	"testing"

	"optionforge/internal/domain"
)

var (
	entry    = domain.NewDate(2024, 3, 1)
	shortPut = domain.ContractKey{UnderlyingTicker: "SPY", Expiration: domain.NewDate(2024, 4, 19), Strike: 480, Type: domain.OptionTypePut}
	shortCal = domain.ContractKey{UnderlyingTicker: "SPY", Expiration: domain.NewDate(2024, 4, 19), Strike: 520, Type: domain.OptionTypeCall}
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name      string
		ticker    string
		seq       int
		contracts []domain.ContractKey
		wantLen   int // hash length should be 64
	}{
		{"single leg", "SPY", 0, []domain.ContractKey{shortPut}, 64},
		{"strangle", "SPY", 0, []domain.ContractKey{shortPut, shortCal}, 64},
		{"no legs", "QQQ", 3, nil, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.ticker, entry, tt.seq, tt.contracts)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			got2 := ComputeTradeID(tt.ticker, entry, tt.seq, tt.contracts)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("SPY", entry, 0, []domain.ContractKey{shortPut, shortCal})

	if base == ComputeTradeID("QQQ", entry, 0, []domain.ContractKey{shortPut, shortCal}) {
		t.Error("Different ticker should produce different hash")
	}
	if base == ComputeTradeID("SPY", entry.AddDays(1), 0, []domain.ContractKey{shortPut, shortCal}) {
		t.Error("Different entry date should produce different hash")
	}
	if base == ComputeTradeID("SPY", entry, 1, []domain.ContractKey{shortPut, shortCal}) {
		t.Error("Different sequence should produce different hash")
	}
	if base == ComputeTradeID("SPY", entry, 0, []domain.ContractKey{shortCal, shortPut}) {
		t.Error("Leg order should be part of the hash")
	}
}

func TestComputePositionID(t *testing.T) {
	tradeID := ComputeTradeID("SPY", entry, 0, []domain.ContractKey{shortPut, shortCal})

	a := ComputePositionID(tradeID, 0, shortPut)
	b := ComputePositionID(tradeID, 1, shortCal)
	if a == b {
		t.Error("Different legs should produce different ids")
	}
	if a != ComputePositionID(tradeID, 0, shortPut) {
		t.Error("ComputePositionID() not deterministic")
	}
	// 16 bytes in base58 is at most 22 characters
	if len(a) == 0 || len(a) > 22 {
		t.Errorf("unexpected position id length %d: %s", len(a), a)
	}
}
