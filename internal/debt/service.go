package debt

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// ServiceRawFile is the raw data file holding the debt service series.
const ServiceRawFile = "ids_service_raw.csv"

// ServiceHeader is the column layout of ServiceRawFile.
var ServiceHeader = []string{"country", "counterpart_area", "series_code", "year", "value"}

// ServiceRows formats observations for ServiceRawFile. Missing values are
// written as empty cells.
func ServiceRows(obs []sources.Observation) [][]string {
	rows := make([][]string, 0, len(obs))
	for _, o := range obs {
		value := ""
		if !math.IsNaN(o.Value) {
			value = strconv.FormatFloat(o.Value, 'f', -1, 64)
		}
		rows = append(rows, []string{o.Country, o.CounterpartArea, o.SeriesCode, strconv.Itoa(o.Year), value})
	}
	return rows
}

// ParseServiceTable reads ServiceRawFile back into observations.
func ParseServiceTable(t *sources.Table) ([]sources.Observation, error) {
	cols, err := t.Require(ServiceHeader...)
	if err != nil {
		return nil, err
	}

	out := make([]sources.Observation, 0, len(t.Rows))
	for i, row := range t.Rows {
		year, err := strconv.Atoi(row[cols[3]])
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("row %d: invalid year %q", i+1, row[cols[3]]), err)
		}
		value := math.NaN()
		if raw := row[cols[4]]; raw != "" {
			if value, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, apperrors.NewParsingError(fmt.Sprintf("row %d: invalid value %q", i+1, raw), err)
			}
		}
		out = append(out, sources.Observation{
			Country:         row[cols[0]],
			CounterpartArea: row[cols[1]],
			SeriesCode:      row[cols[2]],
			Year:            year,
			Value:           value,
		})
	}
	return out, nil
}

// ServiceTotal is the total debt service of a country in a year.
type ServiceTotal struct {
	Country string
	ISO3    string
	Year    int
	Value   float64
}

// ServiceTotals sums the debt service owed to the World counterpart per
// country and year, and keeps countries with an ISO3 code. Results are sorted
// by country and year.
func ServiceTotals(obs []sources.Observation, ref *reference.Table) []ServiceTotal {
	type key struct {
		country string
		year    int
	}
	sums := make(map[key]float64)
	for _, o := range obs {
		if o.CounterpartArea != WorldAggregate {
			continue
		}
		k := key{o.Country, o.Year}
		if math.IsNaN(o.Value) {
			sums[k] += 0
			continue
		}
		sums[k] += o.Value
	}

	out := make([]ServiceTotal, 0, len(sums))
	for k, v := range sums {
		iso := ref.ISO3(k.country)
		if len(iso) != 3 {
			continue
		}
		out = append(out, ServiceTotal{Country: k.country, ISO3: iso, Year: k.year, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		return out[i].Year < out[j].Year
	})
	return out
}
