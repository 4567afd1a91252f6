// Package fedrates lines up the Federal Reserve's rate hike cycles so they
// can be compared month by month.
package fedrates

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/ONEcampaign/interest-rates/internal/shared"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

// Output files.
const (
	HikesFile     = "fed_rate_hikes.csv"
	HikesWideFile = "fed_rate_hikes_wide.csv"
)

// DateLayout formats observation dates, e.g. "January 2006".
const DateLayout = "January 2006"

// Header is the column layout of HikesFile.
var Header = []string{"change", "months", "cycle", "date", "effective_rate"}

// Cycle is a hiking cycle, inclusive of both ends.
type Cycle struct {
	Name  string
	Start time.Time
	End   time.Time
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Cycles returns the hiking cycles in chronological order. The current cycle
// runs until today.
func Cycles(today time.Time) []Cycle {
	y, m, d := today.Date()
	return []Cycle{
		{Name: "'87-'89", Start: day(1986, time.October, 1), End: day(1989, time.April, 1)},
		{Name: "'94-'95", Start: day(1994, time.January, 1), End: day(1995, time.April, 1)},
		{Name: "'99-'00", Start: day(1999, time.January, 1), End: day(2000, time.July, 1)},
		{Name: "'04-'06", Start: day(2004, time.May, 1), End: day(2006, time.August, 1)},
		{Name: "'15-'18", Start: day(2015, time.November, 1), End: day(2019, time.January, 1)},
		{Name: "'22-?", Start: day(2022, time.January, 1), End: day(y, m, d)},
	}
}

// Hike is one month of a cycle.
type Hike struct {
	// Change is the rate minus the lowest rate of the cycle.
	Change float64
	// Months counts months since the cycle's first observation.
	Months        int
	Cycle         string
	Date          time.Time
	EffectiveRate float64
}

// Hikes returns the observations falling in each cycle, cycle by cycle.
func Hikes(obs []sources.RateObservation, cycles []Cycle) []Hike {
	var out []Hike
	for _, c := range cycles {
		var in []sources.RateObservation
		for _, o := range obs {
			if !o.Date.Before(c.Start) && !o.Date.After(c.End) {
				in = append(in, o)
			}
		}
		if len(in) == 0 {
			continue
		}

		low, first := math.Inf(1), in[0].Date
		for _, o := range in {
			low = math.Min(low, o.Rate)
			if o.Date.Before(first) {
				first = o.Date
			}
		}
		for _, o := range in {
			out = append(out, Hike{
				Change:        shared.Round(o.Rate-low, 4),
				Months:        (o.Date.Year()-first.Year())*12 + int(o.Date.Month()) - int(first.Month()),
				Cycle:         c.Name,
				Date:          o.Date,
				EffectiveRate: o.Rate,
			})
		}
	}
	return out
}

// Records formats hikes for HikesFile.
func Records(hikes []Hike) [][]string {
	out := make([][]string, len(hikes))
	for i, h := range hikes {
		out[i] = []string{
			formatFloat(h.Change),
			strconv.Itoa(h.Months),
			h.Cycle,
			h.Date.Format(DateLayout),
			formatFloat(h.EffectiveRate),
		}
	}
	return out
}

// Wide pivots hikes to one row per month, date and rate with the change of
// each cycle in its own column. Rows follow the order of hikes sorted by
// months then date; cycles without a value for a row are left empty.
func Wide(hikes []Hike, cycles []Cycle) (header []string, rows [][]string) {
	header = []string{"months", "date", "effective_rate"}
	col := make(map[string]int, len(cycles))
	for _, c := range cycles {
		col[c.Name] = len(header)
		header = append(header, c.Name)
	}

	type rowKey struct {
		months int
		date   int64
		rate   float64
	}
	type entry struct {
		key rowKey
		row []string
	}
	index := make(map[rowKey]int)
	var entries []entry
	for _, h := range hikes {
		k := rowKey{months: h.Months, date: h.Date.Unix(), rate: h.EffectiveRate}
		i, ok := index[k]
		if !ok {
			i = len(entries)
			index[k] = i
			row := make([]string, len(header))
			row[0] = strconv.Itoa(h.Months)
			row[1] = h.Date.Format(DateLayout)
			row[2] = formatFloat(h.EffectiveRate)
			entries = append(entries, entry{key: k, row: row})
		}
		if c, ok := col[h.Cycle]; ok {
			entries[i].row[c] = formatFloat(h.Change)
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		ka, kb := entries[a].key, entries[b].key
		if ka.months != kb.months {
			return ka.months < kb.months
		}
		return ka.date < kb.date
	})
	rows = make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = e.row
	}
	return header, rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
