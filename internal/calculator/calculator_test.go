package calculator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlafleur/paycalc-helpers/internal/calculator"
)

func TestComputeTax_Federal(t *testing.T) {
	tests := []struct {
		name    string
		income  float64
		wantTax float64
	}{
		{
			name:    "zero income",
			income:  0,
			wantTax: 0,
		},
		{
			name:    "inside first bracket",
			income:  30000,
			wantTax: 30000 * 0.15,
		},
		{
			name:    "exactly on first threshold stays in first bracket",
			income:  50197,
			wantTax: 50197 * 0.15,
		},
		{
			name:    "second bracket",
			income:  60000,
			wantTax: 50197*0.15 + (60000-50197)*0.205,
		},
		{
			name:   "above top threshold",
			income: 300000,
			wantTax: 50197*0.15 +
				(100392-50197)*0.205 +
				(155625-100392)*0.26 +
				(221708-155625)*0.29 +
				(300000-221708)*0.33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculator.ComputeTax(tt.income, calculator.FederalTable)
			assert.InDelta(t, tt.wantTax, got, 1e-9)
		})
	}
}

func TestComputeTax_BelowFirstThresholdIsFlat(t *testing.T) {
	// For any income up to the first threshold the tax is income * rates[0]
	for name, table := range calculator.ProvincialTaxTables {
		income := table.Thresholds[0] * 0.6
		got := calculator.ComputeTax(income, table)
		assert.InDelta(t, income*table.Rates[0], got, 1e-9, "province %s", name)
	}
}

func TestComputeTax_MonotonicAndContinuous(t *testing.T) {
	table := calculator.FederalTable

	// Monotonically non-decreasing over a sweep crossing every bracket
	prev := 0.0
	for income := 0.0; income <= 400000; income += 997 {
		tax := calculator.ComputeTax(income, table)
		assert.GreaterOrEqual(t, tax, prev, "income %.0f", income)
		prev = tax
	}

	// Approaching a threshold from either side converges to the same value
	for _, threshold := range table.Thresholds {
		below := calculator.ComputeTax(threshold-0.001, table)
		at := calculator.ComputeTax(threshold, table)
		above := calculator.ComputeTax(threshold+0.001, table)
		assert.InDelta(t, at, below, 0.01)
		assert.InDelta(t, at, above, 0.01)
	}
}

func TestContributionCaps(t *testing.T) {
	// Below the ceiling the contribution is a flat rate
	assert.InDelta(t, 40000*0.0525, calculator.CPP.Amount(40000), 1e-9)
	assert.InDelta(t, 40000*0.0158, calculator.EI.Amount(40000), 1e-9)

	// A very large income pins both contributions to their caps
	assert.Equal(t, 3500.0, calculator.CPP.Amount(1_000_000))
	assert.Equal(t, 889.54, calculator.EI.Amount(1_000_000))

	// Never above the cap at any income
	for income := 0.0; income < 2_000_000; income += 33333 {
		assert.LessOrEqual(t, calculator.CPP.Amount(income), calculator.CPP.Cap)
		assert.LessOrEqual(t, calculator.EI.Amount(income), calculator.EI.Cap)
	}
}

func TestCalculate_ZeroIncome(t *testing.T) {
	result, err := calculator.Calculate(calculator.Query{
		Province:     "Ontario",
		AnnualIncome: 0,
		Frequency:    calculator.Yearly,
	})
	require.NoError(t, err)

	assert.Zero(t, result.Deductions.FederalTax)
	assert.Zero(t, result.Deductions.ProvincialTax)
	assert.Zero(t, result.Deductions.CPPContribution)
	assert.Zero(t, result.Deductions.EIContribution)
	assert.Zero(t, result.NetIncome)
}

func TestCalculate_Breakdown(t *testing.T) {
	result, err := calculator.Calculate(calculator.Query{
		Province:     "Ontario",
		AnnualIncome: 60000,
		Frequency:    calculator.Yearly,
	})
	require.NoError(t, err)

	wantFederal := 50197*0.15 + (60000-50197)*0.205
	wantProvincial := 46226*0.0505 + (60000-46226)*0.0915
	wantCPP := 3150.0  // 60000 * 0.0525, under the cap
	wantEI := 889.54   // 60000 * 0.0158 = 948, over the cap

	assert.InDelta(t, wantFederal, result.Deductions.FederalTax, 0.01)
	assert.InDelta(t, wantProvincial, result.Deductions.ProvincialTax, 0.01)
	assert.InDelta(t, wantCPP, result.Deductions.CPPContribution, 0.01)
	assert.InDelta(t, wantEI, result.Deductions.EIContribution, 0.01)

	wantTotal := wantFederal + wantProvincial + wantCPP + wantEI
	assert.InDelta(t, wantTotal, result.Deductions.Total, 0.01)
	assert.InDelta(t, 60000-wantTotal, result.NetIncome, 0.01)
}

func TestCalculate_UnknownProvince(t *testing.T) {
	result, err := calculator.Calculate(calculator.Query{
		Province:     "Atlantis",
		AnnualIncome: 60000,
		Frequency:    calculator.Yearly,
	})
	require.ErrorIs(t, err, calculator.ErrUnknownProvince)
	assert.Nil(t, result)
}

func TestCalculate_InvalidIncome(t *testing.T) {
	for _, income := range []float64{-1, -60000} {
		result, err := calculator.Calculate(calculator.Query{
			Province:     "Ontario",
			AnnualIncome: income,
			Frequency:    calculator.Yearly,
		})
		require.ErrorIs(t, err, calculator.ErrInvalidIncome)
		assert.Nil(t, result)
	}
}

func TestCalculate_FrequencyScaling(t *testing.T) {
	base := calculator.Query{Province: "Quebec", AnnualIncome: 85000}

	yearly, err := calculator.Calculate(withFrequency(base, calculator.Yearly))
	require.NoError(t, err)
	monthly, err := calculator.Calculate(withFrequency(base, calculator.Monthly))
	require.NoError(t, err)
	biweekly, err := calculator.Calculate(withFrequency(base, calculator.Biweekly))
	require.NoError(t, err)

	// Every monetary field scales linearly with the frequency divisor
	checks := []struct {
		yearly, monthly, biweekly float64
	}{
		{yearly.Deductions.FederalTax, monthly.Deductions.FederalTax, biweekly.Deductions.FederalTax},
		{yearly.Deductions.ProvincialTax, monthly.Deductions.ProvincialTax, biweekly.Deductions.ProvincialTax},
		{yearly.Deductions.CPPContribution, monthly.Deductions.CPPContribution, biweekly.Deductions.CPPContribution},
		{yearly.Deductions.EIContribution, monthly.Deductions.EIContribution, biweekly.Deductions.EIContribution},
		{yearly.Deductions.Total, monthly.Deductions.Total, biweekly.Deductions.Total},
		{yearly.NetIncome, monthly.NetIncome, biweekly.NetIncome},
	}
	for _, c := range checks {
		assert.InDelta(t, c.yearly/12, c.monthly, 0.01)
		assert.InDelta(t, c.yearly/26, c.biweekly, 0.01)
	}
}

func TestCalculate_Comparison(t *testing.T) {
	result, err := calculator.Calculate(calculator.Query{
		Province:     "Manitoba",
		AnnualIncome: 95000,
		Frequency:    calculator.Monthly,
	})
	require.NoError(t, err)

	// One entry per registered province, sorted by name
	require.Len(t, result.Comparison, len(calculator.ProvincialTaxTables))
	for i := 1; i < len(result.Comparison); i++ {
		assert.Less(t, result.Comparison[i-1].Province, result.Comparison[i].Province)
	}

	// The selected province's row matches the primary net income
	found := false
	for _, row := range result.Comparison {
		if row.Province == "Manitoba" {
			assert.Equal(t, result.NetIncome, row.NetIncome)
			found = true
		}
	}
	assert.True(t, found)
}

func TestProvinces(t *testing.T) {
	provinces := calculator.Provinces()
	require.Len(t, provinces, 13)
	assert.Equal(t, "Alberta", provinces[0])
	assert.Equal(t, "Yukon", provinces[len(provinces)-1])
	assert.Contains(t, provinces, "Quebec")
}

func withFrequency(q calculator.Query, f calculator.Frequency) calculator.Query {
	q.Frequency = f
	return q
}
