package calculator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

// Frequency is the cadence at which monetary results are expressed
type Frequency string

const (
	Yearly   Frequency = "Yearly"
	Monthly  Frequency = "Monthly"
	Biweekly Frequency = "Biweekly"
)

// Divisor applied to annual amounts for each output frequency
var frequencyDivisors = map[Frequency]float64{
	Yearly:   1,
	Monthly:  12,
	Biweekly: 26,
}

// Valid reports whether f is a supported output frequency
func (f Frequency) Valid() bool {
	_, ok := frequencyDivisors[f]
	return ok
}

// Frequencies returns the supported output cadences in display order
func Frequencies() []Frequency {
	return []Frequency{Biweekly, Monthly, Yearly}
}

var (
	// ErrInvalidIncome is returned for negative or non-finite income
	ErrInvalidIncome = errors.New("invalid income")
	// ErrUnknownProvince is returned when a selection is not in the registry
	ErrUnknownProvince = errors.New("unknown province")
)

// ComputeTax calculates tax owed on an annual income by walking the
// brackets in ascending order and accumulating each bracket's width at its
// marginal rate. Income exactly on a threshold does not spill into the
// next bracket. Income above the last threshold is taxed at the top rate.
//
// The caller is responsible for validating income (non-negative) and the
// table (Validate) before calling.
func ComputeTax(income float64, table BracketTable) float64 {
	var tax float64
	last := 0.0
	for i, threshold := range table.Thresholds {
		if income > threshold {
			tax += (threshold - last) * table.Rates[i]
			last = threshold
		} else {
			tax += (income - last) * table.Rates[i]
			break
		}
	}
	if top := table.Thresholds[len(table.Thresholds)-1]; income > top {
		tax += (income - top) * table.Rates[len(table.Rates)-1]
	}
	return tax
}

// Query captures one validated calculation request. AnnualIncome is always
// annual; monthly inputs are converted by the caller before this point.
type Query struct {
	Province          string    `json:"province"`
	AnnualIncome      float64   `json:"annualIncome"`
	Frequency         Frequency `json:"frequency"`
	ShowFederalTax    bool      `json:"showFederalTax"`
	ShowProvincialTax bool      `json:"showProvincialTax"`
	ShowCPP           bool      `json:"showCPP"`
	ShowEI            bool      `json:"showEI"`
}

// Deductions shows the individual deduction components, expressed at the
// requested frequency
type Deductions struct {
	FederalTax      float64 `json:"federalTax"`
	ProvincialTax   float64 `json:"provincialTax"`
	CPPContribution float64 `json:"cppContribution"`
	EIContribution  float64 `json:"eiContribution"`
	Total           float64 `json:"totalDeductions"`
}

// ProvinceNetIncome is one row of the cross-province comparison
type ProvinceNetIncome struct {
	Province  string  `json:"province"`
	NetIncome float64 `json:"netIncome"`
}

// Result holds the complete calculation breakdown. NetIncome may be
// negative when deductions exceed income; it is never clamped.
type Result struct {
	Inputs     Query               `json:"inputs"`
	Deductions Deductions          `json:"deductions"`
	NetIncome  float64             `json:"netIncome"`
	Comparison []ProvinceNetIncome `json:"comparison"`
}

// Evaluate computes the full deduction summary for one query against the
// given registry, federal table and contribution rules. Federal tax and
// both contributions are computed once and reused for every row of the
// comparison, since only the provincial tax varies by jurisdiction.
func Evaluate(q Query, registry Registry, federal BracketTable, cpp, ei ContributionRule) (*Result, error) {
	if q.AnnualIncome < 0 || math.IsNaN(q.AnnualIncome) || math.IsInf(q.AnnualIncome, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIncome, q.AnnualIncome)
	}
	if !q.Frequency.Valid() {
		return nil, fmt.Errorf("unsupported output frequency: %q", q.Frequency)
	}
	table, ok := registry[q.Province]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvince, q.Province)
	}

	federalTax := ComputeTax(q.AnnualIncome, federal)
	provincialTax := ComputeTax(q.AnnualIncome, table)
	cppAmount := cpp.Amount(q.AnnualIncome)
	eiAmount := ei.Amount(q.AnnualIncome)

	totalDeductions := federalTax + provincialTax + cppAmount + eiAmount
	netIncome := q.AnnualIncome - totalDeductions

	multiplier := 1 / frequencyDivisors[q.Frequency]

	comparison := lo.MapToSlice(registry, func(name string, t BracketTable) ProvinceNetIncome {
		provTax := ComputeTax(q.AnnualIncome, t)
		total := federalTax + provTax + cppAmount + eiAmount
		return ProvinceNetIncome{
			Province:  name,
			NetIncome: round2((q.AnnualIncome - total) * multiplier),
		}
	})
	sort.Slice(comparison, func(i, j int) bool {
		return comparison[i].Province < comparison[j].Province
	})

	return &Result{
		Inputs: q,
		Deductions: Deductions{
			FederalTax:      round2(federalTax * multiplier),
			ProvincialTax:   round2(provincialTax * multiplier),
			CPPContribution: round2(cppAmount * multiplier),
			EIContribution:  round2(eiAmount * multiplier),
			Total:           round2(totalDeductions * multiplier),
		},
		NetIncome:  round2(netIncome * multiplier),
		Comparison: comparison,
	}, nil
}

// Calculate evaluates a query against the built-in 2023 tables
func Calculate(q Query) (*Result, error) {
	return Evaluate(q, ProvincialTaxTables, FederalTable, CPP, EI)
}

// Provinces returns all registered jurisdiction names sorted
func Provinces() []string {
	names := lo.Keys(ProvincialTaxTables)
	sort.Strings(names)
	return names
}

// round2 rounds to 2 decimal places
func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
