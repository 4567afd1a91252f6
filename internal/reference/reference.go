// Package reference holds the country metadata used to enrich every dataset:
// ISO3 codes, short names, continents and World Bank income levels.
package reference

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Income levels as published by the World Bank.
const (
	LowIncome         = "Low income"
	LowerMiddleIncome = "Lower middle income"
	UpperMiddleIncome = "Upper middle income"
	HighIncome        = "High income"
)

const (
	ContinentAfrica = "Africa"
	Other           = "Other"
)

//go:embed countries.csv
var countriesCSV string

var header = []string{"iso3", "name", "continent", "income_level", "aliases"}

// Country is one row of the reference table.
type Country struct {
	ISO3        string
	Name        string
	Continent   string
	IncomeLevel string
	Aliases     []string
}

// Table resolves country names and codes. It is read-only once built and
// safe for concurrent use.
type Table struct {
	countries []Country
	byKey     map[string]int
}

// Load builds the table from the embedded reference data.
func Load() (*Table, error) {
	countries, err := Parse(strings.NewReader(countriesCSV))
	if err != nil {
		return nil, fmt.Errorf("parse embedded countries: %w", err)
	}
	return New(countries), nil
}

// LoadWithOverride builds the embedded table and applies the rows of the CSV
// file at path on top of it. Rows replace embedded countries with the same
// ISO3 code; new codes are appended. An empty path skips the override.
func LoadWithOverride(path string) (*Table, error) {
	base, err := Parse(strings.NewReader(countriesCSV))
	if err != nil {
		return nil, fmt.Errorf("parse embedded countries: %w", err)
	}
	if path == "" {
		return New(base), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open countries override: %w", err)
	}
	defer f.Close()

	overrides, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse countries override %s: %w", path, err)
	}

	index := make(map[string]int, len(base))
	for i, c := range base {
		index[c.ISO3] = i
	}
	for _, c := range overrides {
		if i, ok := index[c.ISO3]; ok {
			base[i] = c
			continue
		}
		index[c.ISO3] = len(base)
		base = append(base, c)
	}
	return New(base), nil
}

// Parse reads reference rows in the iso3,name,continent,income_level,aliases
// layout. Aliases are separated by "|".
func Parse(r io.Reader) ([]Country, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)

	first, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range header {
		if strings.TrimSpace(strings.ToLower(first[i])) != col {
			return nil, fmt.Errorf("unexpected column %q at position %d, want %q", first[i], i, col)
		}
	}

	var countries []Country
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		iso := strings.ToUpper(strings.TrimSpace(record[0]))
		if len(iso) != 3 {
			return nil, fmt.Errorf("invalid ISO3 code %q", record[0])
		}
		c := Country{
			ISO3:        iso,
			Name:        strings.TrimSpace(record[1]),
			Continent:   strings.TrimSpace(record[2]),
			IncomeLevel: strings.TrimSpace(record[3]),
		}
		for _, alias := range strings.Split(record[4], "|") {
			if alias = strings.TrimSpace(alias); alias != "" {
				c.Aliases = append(c.Aliases, alias)
			}
		}
		countries = append(countries, c)
	}
	return countries, nil
}

// New indexes countries by ISO3 code, name and aliases. Later rows win on
// conflicting keys.
func New(countries []Country) *Table {
	t := &Table{
		countries: countries,
		byKey:     make(map[string]int, len(countries)*3),
	}
	for i, c := range countries {
		t.byKey[normalize(c.ISO3)] = i
		t.byKey[normalize(c.Name)] = i
		for _, alias := range c.Aliases {
			t.byKey[normalize(alias)] = i
		}
	}
	return t
}

// Countries returns a copy of every row in table order.
func (t *Table) Countries() []Country {
	out := make([]Country, len(t.countries))
	copy(out, t.countries)
	return out
}

// Resolve finds a country by ISO3 code, name or alias, ignoring case,
// accents and punctuation.
func (t *Table) Resolve(name string) (Country, bool) {
	i, ok := t.byKey[normalize(name)]
	if !ok {
		return Country{}, false
	}
	return t.countries[i], true
}

// ISO3 returns the code for name, or "" when it does not resolve.
func (t *Table) ISO3(name string) string {
	c, _ := t.Resolve(name)
	return c.ISO3
}

// ShortName returns the reference name for name, or name unchanged when it
// is not a country (counterparts such as "Bondholders").
func (t *Table) ShortName(name string) string {
	if c, ok := t.Resolve(name); ok {
		return c.Name
	}
	return name
}

func (t *Table) Continent(name string) string {
	c, _ := t.Resolve(name)
	return c.Continent
}

func (t *Table) IncomeLevel(name string) string {
	c, _ := t.Resolve(name)
	return c.IncomeLevel
}

func (t *Table) IsAfrican(name string) bool {
	return t.Continent(name) == ContinentAfrica
}

// IncomeOrder ranks income levels from poorest to richest. Unknown levels
// sort last.
func IncomeOrder(level string) int {
	switch level {
	case LowIncome:
		return 1
	case LowerMiddleIncome:
		return 2
	case UpperMiddleIncome:
		return 3
	case HighIncome:
		return 4
	default:
		return 5
	}
}

// FlagAfrica collapses continents into "Africa" and "Other".
func FlagAfrica(continent string) string {
	if continent == ContinentAfrica {
		return ContinentAfrica
	}
	return Other
}

func normalize(s string) string {
	// transform.Chain is stateful, so it is built per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ReplaceAll(folded, "&", " and ")

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
