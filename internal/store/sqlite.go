package store

import (
	"database/sql"
	"time"

	"github.com/evaonline/eto-engine/internal/models"
)

// Store persists climatological normals and computed ETo results in SQLite.
// The fusion core itself never touches it; the CLI does.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// NormalsStation is one reference station carrying monthly normals.
type NormalsStation struct {
	StationID string
	City      string
	Latitude  float64
	Longitude float64
}

func (s *Store) UpsertNormalsStation(st NormalsStation) error {
	_, err := s.db.Exec(`
		INSERT INTO normals_stations (station_id, city, latitude, longitude)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(station_id) DO UPDATE SET
			city = excluded.city,
			latitude = excluded.latitude,
			longitude = excluded.longitude
	`, st.StationID, st.City, st.Latitude, st.Longitude)
	return err
}

func (s *Store) GetNormalsStations() ([]NormalsStation, error) {
	rows, err := s.db.Query(`SELECT station_id, city, latitude, longitude FROM normals_stations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []NormalsStation
	for rows.Next() {
		var st NormalsStation
		if err := rows.Scan(&st.StationID, &st.City, &st.Latitude, &st.Longitude); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

func (s *Store) UpsertMonthlyNormal(stationID string, variable models.Variable, month time.Month, value float64) error {
	_, err := s.db.Exec(`
		INSERT INTO monthly_normals (station_id, variable, month, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(station_id, variable, month) DO UPDATE SET value = excluded.value
	`, stationID, string(variable), int(month), value)
	return err
}

// GetMonthlyNormals returns every normal for a station, keyed by variable
// then calendar month.
func (s *Store) GetMonthlyNormals(stationID string) (map[models.Variable]map[time.Month]float64, error) {
	rows, err := s.db.Query(`SELECT variable, month, value FROM monthly_normals WHERE station_id = ?`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	normals := make(map[models.Variable]map[time.Month]float64)
	for rows.Next() {
		var (
			variable string
			month    int
			value    float64
		)
		if err := rows.Scan(&variable, &month, &value); err != nil {
			return nil, err
		}
		v := models.Variable(variable)
		if normals[v] == nil {
			normals[v] = make(map[time.Month]float64)
		}
		normals[v][time.Month(month)] = value
	}
	return normals, rows.Err()
}

func (s *Store) UpsertEToResult(latitude, longitude float64, rec models.EToRecord) error {
	errText := sql.NullString{String: rec.Error, Valid: rec.Error != ""}
	_, err := s.db.Exec(`
		INSERT INTO eto_results (latitude, longitude, date, et0_mm, quality, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(latitude, longitude, date) DO UPDATE SET
			et0_mm = excluded.et0_mm,
			quality = excluded.quality,
			error = excluded.error
	`, latitude, longitude, rec.Date, rec.EToMmDay, string(rec.Quality), errText)
	return err
}

func (s *Store) GetEToSeries(latitude, longitude float64, start, end time.Time) ([]models.EToRecord, error) {
	rows, err := s.db.Query(`
		SELECT date, et0_mm, quality, error
		FROM eto_results
		WHERE latitude = ? AND longitude = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, latitude, longitude, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.EToRecord
	for rows.Next() {
		var (
			rec     models.EToRecord
			quality string
			errText sql.NullString
		)
		if err := rows.Scan(&rec.Date, &rec.EToMmDay, &quality, &errText); err != nil {
			return nil, err
		}
		rec.Quality = models.Quality(quality)
		rec.Error = errText.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
