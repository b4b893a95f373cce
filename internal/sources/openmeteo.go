package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/evaonline/eto-engine/internal/eto"
	"github.com/evaonline/eto-engine/internal/httputil"
	"github.com/evaonline/eto-engine/internal/models"
)

const openMeteoArchiveBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// OpenMeteoArchive fetches daily reanalysis data from the Open-Meteo archive
// API (global coverage, 1940 onward). Variable names are harmonized to the
// canonical set and wind is brought down from 10 m to the 2 m reference
// height at the boundary, so every source delivers the same units.
type OpenMeteoArchive struct {
	baseURL string
	client  *http.Client
}

func NewOpenMeteoArchive() *OpenMeteoArchive {
	return &OpenMeteoArchive{
		baseURL: openMeteoArchiveBaseURL,
		client:  httputil.NewClient(),
	}
}

// NewOpenMeteoArchiveWithBaseURL is used by tests to point at a local server.
func NewOpenMeteoArchiveWithBaseURL(baseURL string) *OpenMeteoArchive {
	a := NewOpenMeteoArchive()
	a.baseURL = baseURL
	return a
}

func (a *OpenMeteoArchive) Name() string { return "openmeteo_archive" }

type openMeteoResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		TempMax       []*float64 `json:"temperature_2m_max"`
		TempMin       []*float64 `json:"temperature_2m_min"`
		TempMean      []*float64 `json:"temperature_2m_mean"`
		Humidity      []*float64 `json:"relative_humidity_2m_mean"`
		WindSpeed10m  []*float64 `json:"wind_speed_10m_mean"`
		RadiationSum  []*float64 `json:"shortwave_radiation_sum"`
		Precipitation []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

func (a *OpenMeteoArchive) FetchDaily(ctx context.Context, lat, lon float64, start, end time.Time) ([]models.DailyRecord, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("daily", "temperature_2m_max,temperature_2m_min,temperature_2m_mean,relative_humidity_2m_mean,wind_speed_10m_mean,shortwave_radiation_sum,precipitation_sum")
	q.Set("timezone", "UTC")
	q.Set("wind_speed_unit", "ms")

	body, err := fetchWithRetry(ctx, a.client, a.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var data openMeteoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if len(data.Daily.Time) == 0 {
		return nil, fmt.Errorf("no daily data returned")
	}

	records := make([]models.DailyRecord, 0, len(data.Daily.Time))
	for i, dateStr := range data.Daily.Time {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", dateStr, err)
		}

		rec := models.DailyRecord{Date: date}
		rec.TempMax = nullAt(data.Daily.TempMax, i)
		rec.TempMin = nullAt(data.Daily.TempMin, i)
		rec.TempMean = nullAt(data.Daily.TempMean, i)
		rec.Humidity = nullAt(data.Daily.Humidity, i)
		rec.SolarRadiation = nullAt(data.Daily.RadiationSum, i)
		rec.Precipitation = nullAt(data.Daily.Precipitation, i)

		if w := nullAt(data.Daily.WindSpeed10m, i); w.Valid {
			rec.WindSpeed = sql.NullFloat64{Float64: eto.WindAt2m(w.Float64, 10), Valid: true}
		}

		records = append(records, rec)
	}
	return records, nil
}

func nullAt(vals []*float64, i int) sql.NullFloat64 {
	if i >= len(vals) || vals[i] == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *vals[i], Valid: true}
}
