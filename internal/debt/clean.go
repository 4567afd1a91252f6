package debt

import (
	"strings"

	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// Record is a cleaned IDS observation.
type Record struct {
	Year            int
	Country         string
	CounterpartArea string
	Continent       string
	IncomeLevel     string
	SeriesCode      string
	Value           float64
}

// Clean keeps the observations of set and enriches them with reference
// metadata:
//   - non-breaking spaces are removed from counterpart names, which are
//     shortened when they name a country;
//   - income level and continent are added, and rows without an income level
//     are dropped;
//   - when counterparts is not nil only those creditors are kept, and typed
//     sets keep, per counterpart, the series matching its type.
func Clean(obs []sources.Observation, ref *reference.Table, set IndicatorSet, counterparts []Counterpart) []Record {
	types := make(map[string]string, len(counterparts))
	for _, c := range counterparts {
		types[c.Name] = c.Type
	}

	var out []Record
	for _, o := range obs {
		if !set.Has(o.SeriesCode) {
			continue
		}
		counterpart := ref.ShortName(strings.ReplaceAll(o.CounterpartArea, "\u00a0", ""))

		income := ref.IncomeLevel(o.Country)
		if income == "" {
			continue
		}

		if counterparts != nil {
			counterpartType, ok := types[counterpart]
			if !ok {
				continue
			}
			if set.Typed() {
				code, ok := set.CodeForType(counterpartType)
				if !ok || code != o.SeriesCode {
					continue
				}
			}
		}

		out = append(out, Record{
			Year:            o.Year,
			Country:         o.Country,
			CounterpartArea: counterpart,
			Continent:       ref.Continent(o.Country),
			IncomeLevel:     income,
			SeriesCode:      o.SeriesCode,
			Value:           o.Value,
		})
	}
	return out
}
