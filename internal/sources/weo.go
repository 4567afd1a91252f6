package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
)

const SourceWEO = "weo"

// WEO indicators used by the pipelines.
const (
	WEORevenue     = "GGR_NGDP"
	WEOExpenditure = "GGX_NGDP"
	WEOGDP         = "NGDPD"
	WEOPPPGDP      = "PPPGDP"
)

// WEOValue is one country-year value of a WEO indicator.
type WEOValue struct {
	ISO3  string
	Year  int
	Value float64
}

// WEOClient reads the IMF DataMapper API.
type WEOClient struct {
	fetcher *Fetcher
	baseURL string
	logger  *slog.Logger
}

func NewWEOClient(fetcher *Fetcher, baseURL string, logger *slog.Logger) *WEOClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WEOClient{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(slog.String("component", "weo_client")),
	}
}

type weoResponse struct {
	Values map[string]map[string]map[string]*float64 `json:"values"`
}

// Fetch returns every country-year value of indicator sorted by ISO3 code
// and year. Null values are skipped.
func (c *WEOClient) Fetch(ctx context.Context, indicator string) ([]WEOValue, error) {
	body, err := c.fetcher.Get(ctx, SourceWEO, c.baseURL+"/"+indicator)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", indicator, err)
	}

	var resp weoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewParsingError("decode WEO "+indicator, err)
	}

	series, ok := resp.Values[indicator]
	if !ok {
		return nil, apperrors.NewNotFoundError("WEO indicator " + indicator)
	}

	var out []WEOValue
	for iso, years := range series {
		for y, v := range years {
			if v == nil {
				continue
			}
			year, err := strconv.Atoi(y)
			if err != nil {
				continue
			}
			out = append(out, WEOValue{ISO3: strings.ToUpper(iso), Year: year, Value: *v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ISO3 != out[j].ISO3 {
			return out[i].ISO3 < out[j].ISO3
		}
		return out[i].Year < out[j].Year
	})

	c.logger.InfoContext(ctx, "WEO indicator loaded",
		slog.String("indicator", indicator),
		slog.Int("values", len(out)))
	return out, nil
}
