package store

import (
	"fmt"
	"log"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS normals_stations (
    station_id TEXT PRIMARY KEY,
    city TEXT,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS monthly_normals (
    station_id TEXT NOT NULL,
    variable TEXT NOT NULL,
    month INTEGER NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (station_id, variable, month),
    FOREIGN KEY (station_id) REFERENCES normals_stations(station_id)
);

CREATE TABLE IF NOT EXISTS eto_results (
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    date DATE NOT NULL,
    et0_mm REAL NOT NULL,
    quality TEXT NOT NULL,
    error TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(latitude, longitude, date)
);
`,
	},
	{
		Version:     2,
		Description: "Index results by location",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_eto_results_location ON eto_results(latitude, longitude, date);
`,
	},
}

func (s *Store) Migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if err := s.applyMigration(m); err != nil {
			return err
		}
		log.Printf("store: applied migration %d: %s", m.Version, m.Description)
	}
	return nil
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d: %w", m.Version, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`, m.Version, m.Description); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}
