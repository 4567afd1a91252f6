package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
)

// SourceIDS names the International Debt Statistics dataset in caches,
// logs and metrics.
const SourceIDS = "ids"

// Observation is one value of an IDS series.
type Observation struct {
	Country         string
	CountryCode     string
	CounterpartArea string
	SeriesCode      string
	Year            int
	Value           float64 // NaN when missing
}

// IDSClient reads World Bank International Debt Statistics (source 6).
type IDSClient struct {
	fetcher     *Fetcher
	baseURL     string
	pageSize    int
	concurrency int
	logger      *slog.Logger
}

func NewIDSClient(fetcher *Fetcher, baseURL string, pageSize int, logger *slog.Logger) *IDSClient {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &IDSClient{
		fetcher:     fetcher,
		baseURL:     strings.TrimRight(baseURL, "/"),
		pageSize:    pageSize,
		concurrency: 4,
		logger:      logger.With(slog.String("component", "ids_client")),
	}
}

// Fetch downloads every indicator for all countries and counterparts and
// keeps the observations between startYear and endYear inclusive.
// Indicators are fetched concurrently; results keep indicator order.
func (c *IDSClient) Fetch(ctx context.Context, indicators []string, startYear, endYear int) ([]Observation, error) {
	results := make([][]Observation, len(indicators))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, indicator := range indicators {
		g.Go(func() error {
			obs, err := c.fetchIndicator(ctx, indicator, startYear, endYear)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", indicator, err)
			}
			results[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Observation
	for _, obs := range results {
		out = append(out, obs...)
	}
	return out, nil
}

func (c *IDSClient) fetchIndicator(ctx context.Context, indicator string, startYear, endYear int) ([]Observation, error) {
	var out []Observation
	for page, pages := 1, 1; page <= pages; page++ {
		body, err := c.fetcher.Get(ctx, SourceIDS, c.pageURL(indicator, page))
		if err != nil {
			return nil, err
		}
		resp, err := decodeIDSPage(body)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("decode %s page %d", indicator, page), err)
		}
		pages = int(resp.Pages)

		for _, dp := range resp.data() {
			obs, ok := dp.observation()
			if !ok || obs.Year < startYear || obs.Year > endYear {
				continue
			}
			if obs.SeriesCode == "" {
				obs.SeriesCode = indicator
			}
			out = append(out, obs)
		}
	}

	c.logger.InfoContext(ctx, "IDS indicator loaded",
		slog.String("indicator", indicator),
		slog.Int("observations", len(out)))
	return out, nil
}

func (c *IDSClient) pageURL(indicator string, page int) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("per_page", strconv.Itoa(c.pageSize))
	q.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s/sources/6/country/all/series/%s/counterpart-area/all/time/all?%s",
		c.baseURL, url.PathEscape(indicator), q.Encode())
}

// flexInt accepts numbers encoded either as JSON numbers or strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type idsVariable struct {
	Concept string `json:"concept"`
	ID      string `json:"id"`
	Value   string `json:"value"`
}

type idsDataPoint struct {
	Variable []idsVariable `json:"variable"`
	Value    *float64      `json:"value"`
}

type idsSource struct {
	Data []idsDataPoint `json:"data"`
}

type idsPage struct {
	Page    flexInt         `json:"page"`
	Pages   flexInt         `json:"pages"`
	Total   flexInt         `json:"total"`
	RawData json.RawMessage `json:"source"`
	sources []idsSource
}

func (p *idsPage) data() []idsDataPoint {
	var out []idsDataPoint
	for _, s := range p.sources {
		out = append(out, s.Data...)
	}
	return out
}

// decodeIDSPage accepts "source" both as an object and as an array of
// objects; the API has served both shapes.
func decodeIDSPage(body []byte) (*idsPage, error) {
	var page idsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(page.RawData)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '[':
		if err := json.Unmarshal(raw, &page.sources); err != nil {
			return nil, err
		}
	default:
		var s idsSource
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		page.sources = []idsSource{s}
	}
	return &page, nil
}

func (dp idsDataPoint) observation() (Observation, bool) {
	obs := Observation{Value: math.NaN()}
	if dp.Value != nil {
		obs.Value = *dp.Value
	}
	for _, v := range dp.Variable {
		switch v.Concept {
		case "Country":
			obs.Country = v.Value
			obs.CountryCode = v.ID
		case "Series":
			obs.SeriesCode = v.ID
		case "Counterpart-Area":
			obs.CounterpartArea = v.Value
		case "Time":
			year, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(v.ID), "YR"))
			if err != nil {
				return obs, false
			}
			obs.Year = year
		}
	}
	return obs, obs.Country != "" && obs.Year != 0
}
