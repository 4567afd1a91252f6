package debt

// IDS series used by the interest analysis.
const (
	InterestRateIndicator = "DT.INR.DPPG"
	MaturityIndicator     = "DT.MAT.DPPG"
	GracePeriodIndicator  = "DT.GPA.DPPG"
)

// Counterpart types.
const (
	Bilateral    = "Bilateral"
	Multilateral = "Multilateral"
	Private      = "Private"
)

// Counterparts studied in the analysis.
const (
	Bondholders     = "Bondholders"
	WorldBankIDA    = "World Bank-IDA"
	WorldBankIBRD   = "World Bank-IBRD"
	AfricanDevBank  = "African Dev. Bank"
	WorldAggregate  = "World"
	AggregateAfrica = "Africa"
)

// TypedIndicator maps an IDS series to the counterpart type it measures.
type TypedIndicator struct {
	Code string
	Type string
}

// IndicatorSet is either a single series reported for every counterpart or
// a list of typed series, of which each counterpart keeps the one matching
// its type.
type IndicatorSet struct {
	Name  string
	Codes []TypedIndicator
}

// Single returns an untyped indicator set.
func Single(name, code string) IndicatorSet {
	return IndicatorSet{Name: name, Codes: []TypedIndicator{{Code: code}}}
}

// Typed reports whether series are selected per counterpart type.
func (s IndicatorSet) Typed() bool {
	return len(s.Codes) > 1 || (len(s.Codes) == 1 && s.Codes[0].Type != "")
}

// SeriesCodes lists the codes of the set.
func (s IndicatorSet) SeriesCodes() []string {
	codes := make([]string, len(s.Codes))
	for i, c := range s.Codes {
		codes[i] = c.Code
	}
	return codes
}

// Has reports whether code belongs to the set.
func (s IndicatorSet) Has(code string) bool {
	for _, c := range s.Codes {
		if c.Code == code {
			return true
		}
	}
	return false
}

// CodeForType returns the series kept for a counterpart type. When several
// series share a type the last one listed wins.
func (s IndicatorSet) CodeForType(counterpartType string) (string, bool) {
	code, ok := "", false
	for _, c := range s.Codes {
		if c.Type == counterpartType {
			code, ok = c.Code, true
		}
	}
	return code, ok
}

var (
	RateIndicators       = Single("rate", InterestRateIndicator)
	GraceIndicators      = Single("grace", GracePeriodIndicator)
	MaturitiesIndicators = Single("maturities", MaturityIndicator)

	CommitmentsIndicators = IndicatorSet{Name: "commitments", Codes: []TypedIndicator{
		{Code: "DT.COM.BLAT.CD", Type: Bilateral},
		{Code: "DT.COM.MLAT.CD", Type: Multilateral},
		{Code: "DT.COM.PRVT.CD", Type: Private},
	}}

	InterestPaymentsIndicators = IndicatorSet{Name: "payments", Codes: []TypedIndicator{
		{Code: "DT.INT.BLAT.CD", Type: Bilateral},
		{Code: "DT.INT.MLAT.CD", Type: Multilateral},
		{Code: "DT.INT.PBND.CD", Type: Private},
		{Code: "DT.INT.PCBK.CD", Type: Private},
		{Code: "DT.INT.PROP.CD", Type: Private},
	}}
)

// Counterpart is a creditor kept in the analysis and its type.
type Counterpart struct {
	Name string
	Type string
}

// StudyCounterparts returns the creditors compared in the analysis.
func StudyCounterparts() []Counterpart {
	return []Counterpart{
		{Name: Bondholders, Type: Private},
		{Name: WorldBankIDA, Type: Multilateral},
		{Name: WorldBankIBRD, Type: Multilateral},
		{Name: AfricanDevBank, Type: Multilateral},
	}
}

// ServiceIndicators are the principal and interest repayment series summed
// into total debt service.
var ServiceIndicators = []string{
	"DT.AMT.BLAT.CD",
	"DT.AMT.MLAT.CD",
	"DT.AMT.PBND.CD",
	"DT.AMT.PCBK.CD",
	"DT.AMT.PROP.CD",
	"DT.INT.BLAT.CD",
	"DT.INT.MLAT.CD",
	"DT.INT.PBND.CD",
	"DT.INT.PCBK.CD",
	"DT.INT.PROP.CD",
}
