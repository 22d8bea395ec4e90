package calculator

import (
	"errors"
	"fmt"
)

// BracketTable holds a progressive tax schedule: N ascending income
// thresholds and N+1 marginal rates. The last rate applies to all income
// above the final threshold.
type BracketTable struct {
	Thresholds []float64 `json:"thresholds"`
	Rates      []float64 `json:"rates"`
}

// Registry maps a jurisdiction name to its bracket table
type Registry map[string]BracketTable

// ContributionRule is a flat-rate payroll deduction with an annual ceiling
type ContributionRule struct {
	Rate float64 `json:"rate"`
	Cap  float64 `json:"cap"`
}

// Amount returns the contribution owed on an annual income, capped
func (r ContributionRule) Amount(income float64) float64 {
	if amt := income * r.Rate; amt < r.Cap {
		return amt
	}
	return r.Cap
}

// ErrMalformedTable indicates a bracket table whose rate/threshold counts
// don't line up or whose thresholds are not strictly increasing. This is a
// configuration fault caught at startup, never a per-request error.
var ErrMalformedTable = errors.New("malformed bracket table")

// Validate checks the table invariants: one more rate than thresholds,
// thresholds positive and strictly increasing.
func (t BracketTable) Validate() error {
	if len(t.Thresholds) == 0 {
		return fmt.Errorf("%w: no thresholds", ErrMalformedTable)
	}
	if len(t.Rates) != len(t.Thresholds)+1 {
		return fmt.Errorf("%w: %d thresholds require %d rates, got %d",
			ErrMalformedTable, len(t.Thresholds), len(t.Thresholds)+1, len(t.Rates))
	}
	prev := 0.0
	for i, threshold := range t.Thresholds {
		if threshold <= prev {
			return fmt.Errorf("%w: threshold %d (%.2f) not above previous (%.2f)",
				ErrMalformedTable, i, threshold, prev)
		}
		prev = threshold
	}
	return nil
}

// FederalTable holds the 2023 federal brackets and rates
var FederalTable = BracketTable{
	Thresholds: []float64{50197, 100392, 155625, 221708},
	Rates:      []float64{0.15, 0.205, 0.26, 0.29, 0.33},
}

// ProvincialTaxTables holds the 2023 brackets and rates for every
// province and territory.
//
// Quebec's published source listed its top two thresholds out of order
// (113785 before 108390) with only four rates, the last doubling as the
// top rate. The thresholds are stored ascending here with the top rate
// repeated above the final threshold, and the whole set is checked by
// ValidateTables at startup.
var ProvincialTaxTables = Registry{
	"Alberta": {
		Thresholds: []float64{131220, 157464, 209952, 314928},
		Rates:      []float64{0.10, 0.12, 0.13, 0.14, 0.15},
	},
	"British Columbia": {
		Thresholds: []float64{43070, 86141, 98901, 120094, 162832},
		Rates:      []float64{0.0506, 0.077, 0.105, 0.1229, 0.147, 0.168},
	},
	"Manitoba": {
		Thresholds: []float64{34670, 73710},
		Rates:      []float64{0.108, 0.1275, 0.174},
	},
	"New Brunswick": {
		Thresholds: []float64{45277, 90556, 138491, 160776},
		Rates:      []float64{0.0968, 0.1482, 0.1652, 0.1784, 0.203},
	},
	"Newfoundland and Labrador": {
		Thresholds: []float64{39222, 78447, 139780, 200000},
		Rates:      []float64{0.087, 0.145, 0.158, 0.183, 0.21},
	},
	"Northwest Territories": {
		Thresholds: []float64{45629, 91259, 147667},
		Rates:      []float64{0.059, 0.086, 0.122, 0.1405},
	},
	"Nova Scotia": {
		Thresholds: []float64{29590, 59180, 93000, 150000},
		Rates:      []float64{0.0879, 0.1495, 0.1667, 0.175, 0.21},
	},
	"Nunavut": {
		Thresholds: []float64{48229, 96458, 156183},
		Rates:      []float64{0.04, 0.07, 0.09, 0.115},
	},
	"Ontario": {
		Thresholds: []float64{46226, 92454, 150000, 220000},
		Rates:      []float64{0.0505, 0.0915, 0.1116, 0.1216, 0.1316},
	},
	"Prince Edward Island": {
		Thresholds: []float64{31984, 63969},
		Rates:      []float64{0.098, 0.138, 0.167},
	},
	"Quebec": {
		Thresholds: []float64{46295, 92595, 108390, 113785},
		Rates:      []float64{0.15, 0.20, 0.24, 0.2575, 0.2575},
	},
	"Saskatchewan": {
		Thresholds: []float64{46677, 133638},
		Rates:      []float64{0.105, 0.125, 0.145},
	},
	"Yukon": {
		Thresholds: []float64{51296, 102592, 155625, 500000},
		Rates:      []float64{0.064, 0.09, 0.109, 0.128, 0.15},
	},
}

// CPP and EI contribution rules (2023 annual maximums)
var (
	CPP = ContributionRule{Rate: 0.0525, Cap: 3500}
	EI  = ContributionRule{Rate: 0.0158, Cap: 889.54}
)

// ValidateTables checks the federal table and every provincial table.
// Call once at startup; the tables never change afterwards.
func ValidateTables() error {
	if err := FederalTable.Validate(); err != nil {
		return fmt.Errorf("federal: %w", err)
	}
	for name, table := range ProvincialTaxTables {
		if err := table.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
