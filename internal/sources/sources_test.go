package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ONEcampaign/interest-rates/internal/cache"
	"github.com/ONEcampaign/interest-rates/internal/config"
	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
)

func testSourcesConfig() config.SourcesConfig {
	return config.SourcesConfig{
		RequestsPerSecond: 1000,
		Burst:             10,
		Timeout:           5 * time.Second,
		CacheTTL:          time.Hour,
		UserAgent:         "test-agent",
	}
}

func newTestFetcher(repo cache.Repository) *Fetcher {
	return NewFetcher(testSourcesConfig(), repo, "test:", nil)
}

func TestFetcherServesFreshCacheEntries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	f := newTestFetcher(cache.NewMemoryCache())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		body, err := f.Get(ctx, "test", srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body))
	}
	assert.Equal(t, int32(1), hits.Load())

	f.SetRefresh(true)
	_, err := f.Get(ctx, "test", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcherFallsBackToStaleEntry(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "first")
	}))
	defer srv.Close()

	f := newTestFetcher(cache.NewMemoryCache())
	ctx := context.Background()

	_, err := f.Get(ctx, "test", srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	f.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	body, err := f.Get(ctx, "test", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "first", string(body))
}

func TestFetcherUpstreamErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(nil).Get(context.Background(), "test", srv.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))
}

func TestFetcherNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher(nil).Get(context.Background(), "test", url)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
}

const idsPageOne = `{"page":1,"pages":2,"per_page":"2","total":3,"source":{"id":"6","data":[
 {"variable":[{"concept":"Country","id":"KEN","value":"Kenya"},{"concept":"Series","id":"DT.INR.DPPG","value":"Average interest"},{"concept":"Counterpart-Area","id":"907","value":"World Bank-IBRD"},{"concept":"Time","id":"YR2020","value":"2020"}],"value":1.5},
 {"variable":[{"concept":"Country","id":"KEN","value":"Kenya"},{"concept":"Series","id":"DT.INR.DPPG","value":"Average interest"},{"concept":"Counterpart-Area","id":"907","value":"World Bank-IBRD"},{"concept":"Time","id":"YR1999","value":"1999"}],"value":2.5}
]}}`

const idsPageTwo = `{"page":"2","pages":"2","per_page":"2","total":"3","source":[{"id":"6","data":[
 {"variable":[{"concept":"Country","id":"GHA","value":"Ghana"},{"concept":"Series","id":"DT.INR.DPPG","value":"Average interest"},{"concept":"Counterpart-Area","id":"BND","value":"Bondholders"},{"concept":"Time","id":"YR2021","value":"2021"}],"value":null}
]}]}`

func TestIDSClientPaginatesAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/sources/6/country/all/series/DT.INR.DPPG/counterpart-area/all/time/all")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, idsPageTwo)
			return
		}
		fmt.Fprint(w, idsPageOne)
	}))
	defer srv.Close()

	client := NewIDSClient(newTestFetcher(nil), srv.URL, 2, nil)
	obs, err := client.Fetch(context.Background(), []string{"DT.INR.DPPG"}, 2000, 2021)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "Kenya", obs[0].Country)
	assert.Equal(t, "KEN", obs[0].CountryCode)
	assert.Equal(t, "World Bank-IBRD", obs[0].CounterpartArea)
	assert.Equal(t, 2020, obs[0].Year)
	assert.Equal(t, 1.5, obs[0].Value)

	assert.Equal(t, "Bondholders", obs[1].CounterpartArea)
	assert.True(t, math.IsNaN(obs[1].Value))
}

func TestIDSClientKeepsIndicatorOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		series := "DT.MAT.DPPG"
		if strings.Contains(r.URL.Path, "DT.GPA.DPPG") {
			series = "DT.GPA.DPPG"
		}
		fmt.Fprintf(w, `{"page":1,"pages":1,"source":{"data":[{"variable":[{"concept":"Country","id":"KEN","value":"Kenya"},{"concept":"Series","id":%q},{"concept":"Counterpart-Area","value":"World"},{"concept":"Time","id":"YR2010"}],"value":3}]}}`, series)
	}))
	defer srv.Close()

	client := NewIDSClient(newTestFetcher(nil), srv.URL, 100, nil)
	obs, err := client.Fetch(context.Background(), []string{"DT.GPA.DPPG", "DT.MAT.DPPG"}, 2000, 2021)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "DT.GPA.DPPG", obs[0].SeriesCode)
	assert.Equal(t, "DT.MAT.DPPG", obs[1].SeriesCode)
}

func TestWEOClient(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != "/NGDPD" {
			fmt.Fprint(w, `{"values":{},"api":{"version":"1"}}`)
			return
		}
		fmt.Fprint(w, `{"values":{"NGDPD":{"ken":{"2021":110.3,"2020":100.1},"AGO":{"2020":null,"2021":70}}},"api":{"version":"1"}}`)
	}))
	defer srv.Close()

	client := NewWEOClient(newTestFetcher(nil), srv.URL+"/", nil)
	values, err := client.Fetch(context.Background(), WEOGDP)
	require.NoError(t, err)
	assert.Equal(t, []WEOValue{
		{ISO3: "AGO", Year: 2021, Value: 70},
		{ISO3: "KEN", Year: 2020, Value: 100.1},
		{ISO3: "KEN", Year: 2021, Value: 110.3},
	}, values)

	_, err = client.Fetch(context.Background(), "MISSING")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	assert.Equal(t, []string{"/NGDPD", "/MISSING"}, paths)
}

func TestFREDClientFallsBackToPreviousVintage(t *testing.T) {
	var vintages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		vintages = append(vintages, q.Get("vintage_date"))
		assert.Equal(t, "FEDFUNDS", q.Get("id"))
		assert.Equal(t, q.Get("vintage_date"), q.Get("revision_date"))
		assert.Equal(t, "1954-07-01", q.Get("nd"))
		if q.Get("vintage_date") == "2024-03-10" {
			http.Error(w, "not yet", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "observation_date,FEDFUNDS\n2022-01-01,0.08\n2022-02-01,.\n2022-03-01,0.20\n")
	}))
	defer srv.Close()

	client := NewFREDClient(newTestFetcher(nil), srv.URL, 3, nil)
	client.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	obs, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-10", "2024-03-09"}, vintages)
	require.Len(t, obs, 2)
	assert.Equal(t, time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC), obs[1].Date)
	assert.Equal(t, 0.20, obs[1].Rate)
}

func TestFREDClientGivesUpAfterMaxFallbacks(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewFREDClient(newTestFetcher(nil), srv.URL, 2, nil)
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestParseFedFundsLegacyHeader(t *testing.T) {
	obs, err := ParseFedFunds(strings.NewReader("DATE,FEDFUNDS\n1954-07-01,0.80\n"))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 0.80, obs[0].Rate)

	_, err = ParseFedFunds(strings.NewReader("date,value\n"))
	assert.Error(t, err)
}

func TestTableSource(t *testing.T) {
	dir := t.TempDir()
	paths, err := config.NewPaths(config.PathsConfig{BaseDir: dir})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	require.NoError(t, os.WriteFile(filepath.Join(paths.RawDataDir, "health.csv"),
		[]byte("\ufeffiso_code,year,value\nKEN,2020,7.5\n"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "iso_code,geometry\nKEN,POLYGON\n")
	}))
	defer srv.Close()

	src := NewTableSource(newTestFetcher(nil), paths)

	local, err := src.Read(context.Background(), "health.csv")
	require.NoError(t, err)
	cols, err := local.Require("iso_code", "value")
	require.NoError(t, err)
	assert.Equal(t, "KEN", local.Rows[0][cols[0]])
	assert.Equal(t, "7.5", local.Rows[0][cols[1]])

	remote, err := src.Read(context.Background(), srv.URL+"/geometries.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.Column("geometry"))
	assert.Equal(t, -1, remote.Column("missing"))

	_, err = src.Read(context.Background(), "absent.csv")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}
