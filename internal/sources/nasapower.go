package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/evaonline/eto-engine/internal/httputil"
	"github.com/evaonline/eto-engine/internal/models"
)

const nasaPowerBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

// NASAPower fetches daily point data from the NASA POWER API (global
// coverage, 1990 onward). Parameter names are already the canonical set.
type NASAPower struct {
	baseURL string
	client  *http.Client
}

func NewNASAPower() *NASAPower {
	return &NASAPower{
		baseURL: nasaPowerBaseURL,
		client:  httputil.NewClient(),
	}
}

// NewNASAPowerWithBaseURL is used by tests to point at a local server.
func NewNASAPowerWithBaseURL(baseURL string) *NASAPower {
	p := NewNASAPower()
	p.baseURL = baseURL
	return p
}

func (p *NASAPower) Name() string { return "nasa_power" }

type nasaPowerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

func (p *NASAPower) FetchDaily(ctx context.Context, lat, lon float64, start, end time.Time) ([]models.DailyRecord, error) {
	q := url.Values{}
	q.Set("parameters", "T2M_MAX,T2M_MIN,T2M,RH2M,WS2M,ALLSKY_SFC_SW_DWN,PRECTOTCORR")
	q.Set("community", "AG")
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("start", start.Format("20060102"))
	q.Set("end", end.Format("20060102"))
	q.Set("format", "JSON")

	body, err := fetchWithRetry(ctx, p.client, p.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var data nasaPowerResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if len(data.Properties.Parameter) == 0 {
		return nil, fmt.Errorf("no parameters returned")
	}

	byDate := make(map[string]*models.DailyRecord)
	for name, values := range data.Properties.Parameter {
		v := models.Variable(name)
		for dateStr, value := range values {
			rec, ok := byDate[dateStr]
			if !ok {
				rec = &models.DailyRecord{}
				byDate[dateStr] = rec
			}
			rec.SetValue(v, sql.NullFloat64{Float64: value, Valid: true})
		}
	}

	records := make([]models.DailyRecord, 0, len(byDate))
	for dateStr, rec := range byDate {
		date, err := time.Parse("20060102", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", dateStr, err)
		}
		rec.Date = date
		records = append(records, *rec)
	}
	sortRecords(records)
	return records, nil
}

// fetchWithRetry GETs a URL with exponential backoff. Rate-limit style
// statuses retry; anything else fails permanently.
func fetchWithRetry(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
