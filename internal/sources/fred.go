package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
)

const (
	SourceFRED = "fred"

	fredSeries      = "FEDFUNDS"
	fredFirstDate   = "1954-07-01"
	fredVintageForm = "2006-01-02"
)

// RateObservation is one monthly effective federal funds rate.
type RateObservation struct {
	Date time.Time
	Rate float64
}

// FREDClient downloads the FEDFUNDS series as published at a vintage date.
type FREDClient struct {
	fetcher      *Fetcher
	baseURL      string
	maxFallbacks int
	now          func() time.Time
	logger       *slog.Logger
}

func NewFREDClient(fetcher *Fetcher, baseURL string, maxFallbacks int, logger *slog.Logger) *FREDClient {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFallbacks < 0 {
		maxFallbacks = 0
	}
	return &FREDClient{
		fetcher:      fetcher,
		baseURL:      baseURL,
		maxFallbacks: maxFallbacks,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "fred_client")),
	}
}

// Fetch returns the series at today's vintage. When FRED answers with an
// error status (the vintage is not published yet) it retries with the
// previous day, up to maxFallbacks times.
func (c *FREDClient) Fetch(ctx context.Context) ([]RateObservation, error) {
	today := c.now()
	var lastErr error
	for back := 0; back <= c.maxFallbacks; back++ {
		vintage := today.AddDate(0, 0, -back).Format(fredVintageForm)
		body, err := c.fetcher.Get(ctx, SourceFRED, c.vintageURL(vintage))
		if err != nil {
			if !apperrors.IsType(err, apperrors.ErrTypeUpstream) {
				return nil, err
			}
			c.logger.InfoContext(ctx, "Error downloading data, trying previous vintage",
				slog.String("vintage", vintage),
				slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		return ParseFedFunds(bytes.NewReader(body))
	}
	return nil, fmt.Errorf("no FEDFUNDS vintage available in the last %d days: %w", c.maxFallbacks+1, lastErr)
}

func (c *FREDClient) vintageURL(vintage string) string {
	q := url.Values{}
	q.Set("id", fredSeries)
	q.Set("vintage_date", vintage)
	q.Set("revision_date", vintage)
	q.Set("nd", fredFirstDate)
	return c.baseURL + "?" + q.Encode()
}

// ParseFedFunds reads a fredgraph.csv download. The date column is named
// DATE in older exports and observation_date in newer ones; missing values
// (".") are skipped.
func ParseFedFunds(r io.Reader) ([]RateObservation, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewParsingError("read FRED header", err)
	}

	dateCol, rateCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "DATE", "observation_date":
			dateCol = i
		case fredSeries:
			rateCol = i
		}
	}
	if dateCol < 0 || rateCol < 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("unexpected FRED columns %v", header), nil)
	}

	var out []RateObservation
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("read FRED row", err)
		}
		raw := strings.TrimSpace(record[rateCol])
		if raw == "" || raw == "." {
			continue
		}
		date, err := time.Parse(fredVintageForm, strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, apperrors.NewParsingError("parse FRED date "+record[dateCol], err)
		}
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apperrors.NewParsingError("parse FRED rate "+raw, err)
		}
		out = append(out, RateObservation{Date: date, Rate: rate})
	}
	return out, nil
}
