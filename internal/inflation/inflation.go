// Package inflation derives headline inflation key numbers from WFP country
// series weighted by GDP at purchasing power parity.
package inflation

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/government"
	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/shared"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// KeyNumbersFile is the JSON document the key numbers are merged into.
const KeyNumbersFile = "inflation_key_numbers.json"

// Minimum number of reporting countries for a weighted value.
const (
	WorldThreshold  = 145
	AfricaThreshold = 48
)

// DateLayout formats key number dates, e.g. "January 2006".
const DateLayout = "January 2006"

const dateInput = "2006-01-02"

// Observation is one country-month value of a WFP indicator.
type Observation struct {
	ISO3      string
	Date      time.Time
	Indicator string
	Value     float64
}

// ParseWFP reads a WFP inflation table with iso_code, date, indicator and
// value columns.
func ParseWFP(t *sources.Table) ([]Observation, error) {
	cols, err := t.Require("iso_code", "date", "indicator", "value")
	if err != nil {
		return nil, err
	}
	out := make([]Observation, 0, len(t.Rows))
	for i, row := range t.Rows {
		raw := row[cols[1]]
		if len(raw) > len(dateInput) {
			raw = raw[:len(dateInput)]
		}
		date, err := time.Parse(dateInput, raw)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("row %d: invalid date %q", i+1, row[cols[1]]), err)
		}
		v := math.NaN()
		if s := row[cols[3]]; s != "" {
			if v, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, apperrors.NewParsingError(fmt.Sprintf("row %d: invalid value %q", i+1, s), err)
			}
		}
		out = append(out, Observation{ISO3: row[cols[0]], Date: date, Indicator: row[cols[2]], Value: v})
	}
	return out, nil
}

// Options select the observations used for the key numbers.
type Options struct {
	StartYear int
	EndYear   int
	Indicator string
	Exclude   []string
}

// DefaultOptions returns the headline inflation selection between the years.
// Venezuela is left out because its rates dwarf every other country's.
func DefaultOptions(startYear, endYear int) Options {
	return Options{
		StartYear: startYear,
		EndYear:   endYear,
		Indicator: "Inflation Rate",
		Exclude:   []string{"VEN"},
	}
}

// Filter keeps the observations matching opts.
func Filter(obs []Observation, opts Options) []Observation {
	var out []Observation
	for _, o := range obs {
		y := o.Date.Year()
		if y < opts.StartYear || y > opts.EndYear || o.Indicator != opts.Indicator || slices.Contains(opts.Exclude, o.ISO3) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Point is a weighted value at a date.
type Point struct {
	Date  time.Time
	Value float64
}

// WeightedAverage computes, for every date, the average of the observations
// of the countries accepted by keep, weighted by their GDP at PPP that year.
// Observations without a value or weight are ignored, and dates with fewer
// than threshold countries are left out. Values are rounded to 1 decimal and
// points sorted by date.
func WeightedAverage(obs []Observation, ppp government.Series, keep func(iso3 string) bool, threshold int) []Point {
	type sample struct{ values, weights []float64 }
	byDate := make(map[time.Time]*sample)
	for _, o := range obs {
		if keep != nil && !keep(o.ISO3) {
			continue
		}
		w, ok := ppp.Get(o.ISO3, o.Date.Year())
		if !ok || math.IsNaN(w) || math.IsNaN(o.Value) {
			continue
		}
		s, ok := byDate[o.Date]
		if !ok {
			s = &sample{}
			byDate[o.Date] = s
		}
		s.values = append(s.values, o.Value)
		s.weights = append(s.weights, w)
	}

	var out []Point
	for date, s := range byDate {
		if len(s.values) < threshold {
			continue
		}
		out = append(out, Point{Date: date, Value: shared.Round(stat.Mean(s.values, s.weights), 1)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Max returns the highest value and the latest date it was reached.
func Max(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		if p.Value > best.Value || (p.Value == best.Value && p.Date.After(best.Date)) {
			best = p
		}
	}
	return best, true
}

// Latest returns the most recent point.
func Latest(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	latest := points[0]
	for _, p := range points[1:] {
		if p.Date.After(latest.Date) {
			latest = p
		}
	}
	return latest, true
}

// KeyNumbers are the inflation figures quoted in the text.
type KeyNumbers struct {
	WorldMaxValue     float64 `json:"world_max_value"`
	WorldMaxDate      string  `json:"world_max_date"`
	AfricaMaxValue    float64 `json:"africa_max_value"`
	AfricaMaxDate     string  `json:"africa_max_date"`
	WorldLatestValue  float64 `json:"world_latest_value"`
	WorldLatestDate   string  `json:"world_latest_date"`
	AfricaLatestDate  string  `json:"africa_latest_date"`
	AfricaLatestValue float64 `json:"africa_latest_value"`
}

// Map returns the key numbers keyed by their JSON names.
func (k KeyNumbers) Map() map[string]any {
	return map[string]any{
		"world_max_value":     k.WorldMaxValue,
		"world_max_date":      k.WorldMaxDate,
		"africa_max_value":    k.AfricaMaxValue,
		"africa_max_date":     k.AfricaMaxDate,
		"world_latest_value":  k.WorldLatestValue,
		"world_latest_date":   k.WorldLatestDate,
		"africa_latest_date":  k.AfricaLatestDate,
		"africa_latest_value": k.AfricaLatestValue,
	}
}

// Compute returns the world and Africa key numbers.
func Compute(obs []Observation, ppp government.Series, ref *reference.Table, opts Options) (KeyNumbers, error) {
	obs = Filter(obs, opts)
	world := WeightedAverage(obs, ppp, nil, WorldThreshold)
	africa := WeightedAverage(obs, ppp, ref.IsAfrican, AfricaThreshold)

	worldMax, ok := Max(world)
	if !ok {
		return KeyNumbers{}, apperrors.NewNotFoundError(fmt.Sprintf("dates with at least %d countries reporting", WorldThreshold))
	}
	africaMax, ok := Max(africa)
	if !ok {
		return KeyNumbers{}, apperrors.NewNotFoundError(fmt.Sprintf("dates with at least %d African countries reporting", AfricaThreshold))
	}
	worldLatest, _ := Latest(world)
	africaLatest, _ := Latest(africa)

	return KeyNumbers{
		WorldMaxValue:     worldMax.Value,
		WorldMaxDate:      worldMax.Date.Format(DateLayout),
		AfricaMaxValue:    africaMax.Value,
		AfricaMaxDate:     africaMax.Date.Format(DateLayout),
		WorldLatestValue:  worldLatest.Value,
		WorldLatestDate:   worldLatest.Date.Format(DateLayout),
		AfricaLatestDate:  africaLatest.Date.Format(DateLayout),
		AfricaLatestValue: africaLatest.Value,
	}, nil
}
