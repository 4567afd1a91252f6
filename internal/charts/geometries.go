package charts

import (
	"context"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/sources"
)

const GeometriesFile = "africa_geometries.csv"

var GeometriesHeader = []string{"ISO3", "geometry"}

// GeometryRecords lists the shape of every African country in the
// reference table. Countries missing from t get an empty geometry.
func GeometryRecords(t *sources.Table, ref *reference.Table) ([][]string, error) {
	iso := t.Column("ISO3")
	if iso < 0 {
		iso = t.Column("iso_code")
	}
	geometry := t.Column("geometry")
	if iso < 0 || geometry < 0 {
		return nil, apperrors.NewParsingError("geometries table needs ISO3 and geometry columns", nil)
	}

	shapes := make(map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		if iso >= len(row) || geometry >= len(row) {
			continue
		}
		if _, ok := shapes[row[iso]]; !ok {
			shapes[row[iso]] = row[geometry]
		}
	}

	var out [][]string
	for _, c := range ref.Countries() {
		if c.Continent != reference.ContinentAfrica {
			continue
		}
		out = append(out, []string{c.ISO3, shapes[c.ISO3]})
	}
	return out, nil
}

// GeometriesStep writes the map shapes of African countries.
type GeometriesStep struct {
	operations.BaseStage
	deps *Deps
}

func NewGeometriesStep(d *Deps) *GeometriesStep {
	return &GeometriesStep{
		BaseStage: operations.NewBaseStage(StepGeometries, "Africa geometries", operations.FrequencyWeekly),
		deps:      d,
	}
}

func (s *GeometriesStep) Validate(*operations.OperationState) error {
	return check(s.ID(), map[string]bool{
		"tables":    s.deps.Tables != nil,
		"reference": s.deps.Ref != nil,
		"writer":    s.deps.Writer != nil,
	})
}

func (s *GeometriesStep) Execute(ctx context.Context, state *operations.OperationState) error {
	t, err := s.deps.Tables.Read(ctx, s.deps.Sources.GeometriesTable)
	if err != nil {
		return err
	}
	records, err := GeometryRecords(t, s.deps.Ref)
	if err != nil {
		return err
	}
	return s.deps.write(ctx, state, s.ID(), GeometriesFile, GeometriesHeader, records)
}
