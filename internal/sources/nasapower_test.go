package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const nasaPowerFixture = `{
	"properties": {
		"parameter": {
			"T2M_MAX": {"20240115": 31.2, "20240116": 30.1},
			"T2M_MIN": {"20240115": 20.4, "20240116": 19.8},
			"T2M": {"20240115": 25.5, "20240116": 24.6},
			"RH2M": {"20240115": 72.0, "20240116": 75.5},
			"WS2M": {"20240115": 1.8, "20240116": 2.1},
			"ALLSKY_SFC_SW_DWN": {"20240115": 22.3, "20240116": -999.0},
			"PRECTOTCORR": {"20240115": 4.2, "20240116": 0.0}
		}
	}
}`

func TestNASAPowerFetchDaily(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(nasaPowerFixture))
	}))
	defer srv.Close()

	adapter := NewNASAPowerWithBaseURL(srv.URL)
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	records, err := adapter.FetchDaily(context.Background(), -22.3, -48.56, start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}

	if gotQuery["community"] != "AG" {
		t.Errorf("community = %q, want AG", gotQuery["community"])
	}
	if gotQuery["start"] != "20240115" || gotQuery["end"] != "20240116" {
		t.Errorf("date range = %s..%s, want 20240115..20240116", gotQuery["start"], gotQuery["end"])
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if !records[0].Date.Before(records[1].Date) {
		t.Error("records should be sorted by date")
	}

	first := records[0]
	if !first.TempMax.Valid || first.TempMax.Float64 != 31.2 {
		t.Errorf("TempMax = %+v, want 31.2", first.TempMax)
	}
	if !first.SolarRadiation.Valid || first.SolarRadiation.Float64 != 22.3 {
		t.Errorf("SolarRadiation = %+v, want 22.3", first.SolarRadiation)
	}

	// Sentinels pass through untouched; screening them is the
	// preprocessor's job.
	if !records[1].SolarRadiation.Valid || records[1].SolarRadiation.Float64 != -999 {
		t.Errorf("day 2 SolarRadiation = %+v, want the raw -999", records[1].SolarRadiation)
	}
}

func TestNASAPowerRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(nasaPowerFixture))
	}))
	defer srv.Close()

	adapter := NewNASAPowerWithBaseURL(srv.URL)
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	records, err := adapter.FetchDaily(context.Background(), -22.3, -48.56, start, start)
	if err != nil {
		t.Fatalf("FetchDaily after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(records) == 0 {
		t.Error("expected records after successful retry")
	}
}

func TestNASAPowerClientErrorIsPermanent(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	adapter := NewNASAPowerWithBaseURL(srv.URL)
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if _, err := adapter.FetchDaily(context.Background(), -22.3, -48.56, start, start); err == nil {
		t.Fatal("expected an error for a 422 response")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (client errors must not retry)", attempts)
	}
}

func TestNASAPowerEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties": {"parameter": {}}}`))
	}))
	defer srv.Close()

	adapter := NewNASAPowerWithBaseURL(srv.URL)
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if _, err := adapter.FetchDaily(context.Background(), -22.3, -48.56, start, start); err == nil {
		t.Fatal("expected an error for an empty parameter map")
	}
}

func TestNASAPowerName(t *testing.T) {
	if got := NewNASAPower().Name(); got != "nasa_power" {
		t.Errorf("Name() = %q", got)
	}
	var _ Adapter = NewNASAPower()
	var _ Adapter = NewOpenMeteoArchive()
}
