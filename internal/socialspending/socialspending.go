// Package socialspending compares debt service with health spending as
// shares of government expenditure.
package socialspending

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/debt"
	"github.com/ONEcampaign/interest-rates/internal/government"
	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/shared"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// Debt burden categories, from the lowest quintile up.
var Categories = []string{"very low", "low", "moderate", "high", "very high"}

// Header is the column layout of the comparison chart.
var Header = []string{"iso_code", "name", "year", "value_debt", "value_health", "income_level", "category"}

// Row is one country-year of the comparison. Debt and Health are percentages
// of government expenditure.
type Row struct {
	ISO3        string
	Name        string
	Year        int
	Debt        float64
	Health      float64
	IncomeLevel string
	Category    string
}

// Value is a country-year value read from a raw table.
type Value struct {
	ISO3  string
	Year  int
	Value float64
}

// ParseValues reads a table with iso_code, year and value columns. Empty
// values are NaN.
func ParseValues(t *sources.Table) ([]Value, error) {
	cols, err := t.Require("iso_code", "year", "value")
	if err != nil {
		return nil, err
	}
	out := make([]Value, 0, len(t.Rows))
	for i, row := range t.Rows {
		year, err := strconv.Atoi(row[cols[1]])
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("row %d: invalid year %q", i+1, row[cols[1]]), err)
		}
		v := math.NaN()
		if raw := row[cols[2]]; raw != "" {
			if v, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, apperrors.NewParsingError(fmt.Sprintf("row %d: invalid value %q", i+1, raw), err)
			}
		}
		out = append(out, Value{ISO3: row[cols[0]], Year: year, Value: v})
	}
	return out, nil
}

// DebtGDP expresses debt service totals as a share of GDP in USD.
func DebtGDP(service []debt.ServiceTotal, gdp government.Series) []Value {
	var out []Value
	for _, s := range service {
		g, ok := gdp.Get(s.ISO3, s.Year)
		if !ok {
			continue
		}
		out = append(out, Value{ISO3: s.ISO3, Year: s.Year, Value: shared.Round(100*s.Value/g, 4)})
	}
	return out
}

// ToExpenditure converts values expressed as a share of GDP into a share of
// government expenditure. Country-years without expenditure are dropped.
func ToExpenditure(values []Value, expenditure government.Series) []Value {
	var out []Value
	for _, v := range values {
		e, ok := expenditure.Get(v.ISO3, v.Year)
		if !ok {
			continue
		}
		out = append(out, Value{ISO3: v.ISO3, Year: v.Year, Value: shared.Round(100*v.Value/e, 4)})
	}
	return out
}

// Compare joins debt and health spending (both as a share of expenditure)
// by country-year and labels each country by the quintile of the whole debt
// distribution its median falls in. Rows are sorted by year and category
// and limited to years before beforeYear.
func Compare(debtExp, healthExp []Value, ref *reference.Table, beforeYear int) ([]Row, error) {
	health := make(map[government.Point]float64, len(healthExp))
	for _, h := range healthExp {
		k := government.Point{ISO3: h.ISO3, Year: h.Year}
		if _, ok := health[k]; !ok {
			health[k] = h.Value
		}
	}

	var rows []Row
	for _, d := range debtExp {
		h, ok := health[government.Point{ISO3: d.ISO3, Year: d.Year}]
		if !ok {
			continue
		}
		name := d.ISO3
		if c, ok := ref.Resolve(d.ISO3); ok {
			name = c.Name
		}
		rows = append(rows, Row{
			ISO3:        d.ISO3,
			Name:        name,
			Year:        d.Year,
			Debt:        d.Value,
			Health:      h,
			IncomeLevel: ref.IncomeLevel(d.ISO3),
		})
	}
	if len(rows) == 0 {
		return nil, nil
	}

	all := make([]float64, len(rows))
	byName := make(map[string][]float64)
	for i, r := range rows {
		all[i] = r.Debt
		byName[r.Name] = append(byName[r.Name], r.Debt)
	}
	edges := make([]float64, len(Categories)+1)
	for i := range edges {
		edges[i] = shared.Quantile(all, float64(i)/float64(len(Categories)))
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("debt quintile edges are not increasing: %v", edges))
		}
	}

	labels := make(map[string]string, len(byName))
	for name, values := range byName {
		labels[name] = categorise(shared.Median(values), edges)
	}

	out := rows[:0]
	for _, r := range rows {
		r.Category = labels[r.Name]
		if r.Year < beforeYear {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return categoryOrder(out[i].Category) < categoryOrder(out[j].Category)
	})
	return out, nil
}

// categorise returns the label of the bin holding v. The first bin includes
// its lower edge and the others only their upper one.
func categorise(v float64, edges []float64) string {
	if math.IsNaN(v) || v < edges[0] || v > edges[len(edges)-1] {
		return ""
	}
	for i := 1; i < len(edges); i++ {
		if v <= edges[i] {
			return Categories[i-1]
		}
	}
	return ""
}

func categoryOrder(c string) int {
	for i, name := range Categories {
		if name == c {
			return i
		}
	}
	return len(Categories)
}

// Records formats rows for the chart CSV.
func Records(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.ISO3,
			r.Name,
			strconv.Itoa(r.Year),
			formatValue(r.Debt),
			formatValue(r.Health),
			r.IncomeLevel,
			r.Category,
		}
	}
	return out
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
