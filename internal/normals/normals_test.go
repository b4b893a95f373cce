package normals

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/evaonline/eto-engine/internal/models"
	"github.com/evaonline/eto-engine/internal/store"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewLoader(st)
}

func seedStation(t *testing.T, l *Loader, id, city string, lat, lon float64) {
	t.Helper()
	if err := l.store.UpsertNormalsStation(store.NormalsStation{
		StationID: id, City: city, Latitude: lat, Longitude: lon,
	}); err != nil {
		t.Fatalf("seed station %s: %v", id, err)
	}
	if err := l.store.UpsertMonthlyNormal(id, models.VarTempMax, time.January, 30); err != nil {
		t.Fatalf("seed normal %s: %v", id, err)
	}
}

func TestLookupNearestWithinRange(t *testing.T) {
	l := newTestLoader(t)
	seedStation(t, l, "near", "Jaú", -22.30, -48.56)
	seedStation(t, l, "far", "Bauru", -22.31, -49.06) // ~50 km west

	found, prior, err := l.Lookup(-22.32, -48.60, 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected a station within the default range")
	}
	if prior.City != "Jaú" {
		t.Errorf("City = %q, want the nearer station", prior.City)
	}
	if prior.DistanceKm <= 0 || prior.DistanceKm > 10 {
		t.Errorf("DistanceKm = %.1f, want a few km", prior.DistanceKm)
	}
	if v, ok := prior.Normal(models.VarTempMax, time.January); !ok || v != 30 {
		t.Errorf("Normal = %v/%v, want 30", v, ok)
	}
}

func TestLookupDistanceCutoff(t *testing.T) {
	l := newTestLoader(t)
	seedStation(t, l, "83672", "Jaú", -22.30, -48.56)

	// São Paulo city is roughly 250 km from Jaú.
	found, _, err := l.Lookup(-23.55, -46.63, 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("a station 250 km away must not qualify under the 120 km default")
	}

	found, prior, err := l.Lookup(-23.55, -46.63, 400)
	if err != nil {
		t.Fatalf("Lookup wide: %v", err)
	}
	if !found {
		t.Fatal("explicit 400 km radius should accept it")
	}
	if prior.DistanceKm < 150 || prior.DistanceKm > 350 {
		t.Errorf("DistanceKm = %.1f, want roughly 250", prior.DistanceKm)
	}
}

func TestLookupStationWithoutNormals(t *testing.T) {
	l := newTestLoader(t)
	if err := l.store.UpsertNormalsStation(store.NormalsStation{
		StationID: "bare", City: "Nowhere", Latitude: 0, Longitude: 0,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	found, _, err := l.Lookup(0.1, 0.1, 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("a station with no normals must not be used as a prior")
	}
}

func TestImportCSV(t *testing.T) {
	l := newTestLoader(t)

	path := filepath.Join(t.TempDir(), "normals.csv")
	csv := `station_id,city,latitude,longitude,variable,month,value
83672,Jaú,-22.30,-48.56,T2M_MAX,1,30.1
83672,Jaú,-22.30,-48.56,T2M_MAX,7,24.8
83672,Jaú,-22.30,-48.56,RH2M,1,74
`
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	n, err := l.ImportCSV(path)
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if n != 3 {
		t.Errorf("imported %d rows, want 3", n)
	}

	found, prior, err := l.Lookup(-22.30, -48.56, 0)
	if err != nil || !found {
		t.Fatalf("Lookup after import: found=%v err=%v", found, err)
	}
	if v, _ := prior.Normal(models.VarTempMax, time.July); v != 24.8 {
		t.Errorf("July TempMax = %v, want 24.8", v)
	}
	if v, _ := prior.Normal(models.VarHumidity, time.January); v != 74.0 {
		t.Errorf("January Humidity = %v, want 74", v)
	}
}

func TestImportCSVBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"bad month", "station_id,city,latitude,longitude,variable,month,value\ns1,X,0,0,T2M,13,20\n"},
		{"bad latitude", "station_id,city,latitude,longitude,variable,month,value\ns1,X,abc,0,T2M,1,20\n"},
		{"bad value", "station_id,city,latitude,longitude,variable,month,value\ns1,X,0,0,T2M,1,xyz\n"},
		{"short header", "station_id,city\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLoader(t)
			path := filepath.Join(t.TempDir(), "bad.csv")
			if err := os.WriteFile(path, []byte(tt.csv), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			if _, err := l.ImportCSV(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestHaversine(t *testing.T) {
	// Jaú to Bauru is on the order of 50 km.
	d := haversineKm(-22.30, -48.56, -22.31, -49.06)
	if d < 40 || d > 60 {
		t.Errorf("distance = %.1f km, want roughly 50", d)
	}
	if z := haversineKm(10, 20, 10, 20); math.Abs(z) > 1e-9 {
		t.Errorf("identical points should be 0 km apart, got %v", z)
	}
}
