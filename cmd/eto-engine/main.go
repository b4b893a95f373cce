package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/evaonline/eto-engine/internal/eto"
	"github.com/evaonline/eto-engine/internal/fusion"
	"github.com/evaonline/eto-engine/internal/models"
	"github.com/evaonline/eto-engine/internal/normals"
	"github.com/evaonline/eto-engine/internal/pipeline"
	"github.com/evaonline/eto-engine/internal/scoring"
	"github.com/evaonline/eto-engine/internal/sources"
	"github.com/evaonline/eto-engine/internal/store"
)

type cli struct {
	DB string `env:"ETO_DB" default:"data/eto.db" help:"Path to SQLite database."`

	Calc          calcCmd          `cmd:"" help:"Fetch, fuse and compute a daily ETo series for a location."`
	Score         scoreCmd         `cmd:"" help:"Compare a computed ETo series against a reference series."`
	ImportNormals importNormalsCmd `cmd:"" name:"import-normals" help:"Load climatological monthly normals from CSV."`
	ServeMetrics  serveMetricsCmd  `cmd:"" name:"serve-metrics" help:"Expose Prometheus metrics over HTTP."`
}

func main() {
	var c cli
	ktx := kong.Parse(&c,
		kong.Name("eto-engine"),
		kong.Description("Multi-source climate data fusion and FAO-56 reference evapotranspiration."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	ktx.FatalIfErrorf(ktx.Run(&c))
}

func openStore(path string) (*store.Store, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, db, nil
}

type calcCmd struct {
	Lat       float64 `required:"" help:"Latitude in decimal degrees."`
	Lon       float64 `required:"" help:"Longitude in decimal degrees."`
	Elevation float64 `default:"0" help:"Elevation above sea level in metres."`
	Start     string  `required:"" help:"Start date (YYYY-MM-DD)."`
	End       string  `required:"" help:"End date (YYYY-MM-DD)."`
	NoStore   bool    `help:"Print results without persisting them."`
}

func (c *calcCmd) Run(root *cli) error {
	start, err := time.Parse("2006-01-02", c.Start)
	if err != nil {
		return fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", c.End)
	if err != nil {
		return fmt.Errorf("parse end date: %w", err)
	}

	st, db, err := openStore(root.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p := pipeline.New(
		[]sources.Adapter{sources.NewNASAPower(), sources.NewOpenMeteoArchive()},
		normals.NewLoader(st),
		fusion.New(fusion.DefaultConfig()),
		eto.NewCalculator(eto.Config{}),
		pipeline.Config{MaxPriorDistanceKm: normals.DefaultMaxDistanceKm},
	)

	res, err := p.Run(ctx, pipeline.Request{
		Latitude:  c.Lat,
		Longitude: c.Lon,
		Elevation: c.Elevation,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		log.Printf("warning: %s", w)
	}

	counts := map[models.Quality]int{}
	for _, rec := range res.Records {
		counts[rec.Quality]++
		if !c.NoStore {
			if err := st.UpsertEToResult(c.Lat, c.Lon, rec); err != nil {
				return fmt.Errorf("store result for %s: %w", rec.Date.Format("2006-01-02"), err)
			}
		}
		line := fmt.Sprintf("%s\t%.2f mm/day\t%s", rec.Date.Format("2006-01-02"), rec.EToMmDay, rec.Quality)
		if rec.Error != "" {
			line += "\t" + rec.Error
		}
		fmt.Println(line)
	}

	log.Printf("computed %d days (high=%d medium=%d low=%d)",
		len(res.Records), counts[models.QualityHigh], counts[models.QualityMedium], counts[models.QualityLow])
	return nil
}

type scoreCmd struct {
	Computed   string `arg:"" help:"CSV of computed values (date,value)."`
	Reference  string `arg:"" help:"CSV of reference values (date,value)."`
	MinOverlap int    `default:"30" help:"Minimum overlapping days required."`
}

func (c *scoreCmd) Run(root *cli) error {
	computed, err := readSeriesCSV(c.Computed)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Computed, err)
	}
	reference, err := readSeriesCSV(c.Reference)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Reference, err)
	}

	stats := scoring.Compare(computed, reference, c.MinOverlap)
	if !stats.Valid {
		return fmt.Errorf("cannot score: %s", stats.Reason)
	}

	fmt.Printf("days:  %d\n", stats.Days)
	fmt.Printf("MAE:   %.4f\n", stats.MAE)
	fmt.Printf("RMSE:  %.4f\n", stats.RMSE)
	fmt.Printf("bias:  %.4f\n", stats.Bias)
	fmt.Printf("R2:    %.4f\n", stats.R2)
	fmt.Printf("KGE:   %.4f\n", stats.KGE)
	fmt.Printf("NSE:   %.4f\n", stats.NSE)
	fmt.Printf("PBIAS: %.2f%%\n", stats.PBias)
	return nil
}

// readSeriesCSV parses date,value rows, skipping a header line when the
// first field does not parse as a date.
func readSeriesCSV(path string) ([]scoring.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	var points []scoring.Point
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("line %d: expected date,value", line)
		}

		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: date: %w", line, err)
		}
		value, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: value: %w", line, err)
		}
		points = append(points, scoring.Point{Date: date, Value: value})
	}
	return points, nil
}

type importNormalsCmd struct {
	Path string `arg:"" help:"CSV with columns station_id,city,latitude,longitude,variable,month,value."`
}

func (c *importNormalsCmd) Run(root *cli) error {
	st, db, err := openStore(root.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := normals.NewLoader(st).ImportCSV(c.Path)
	if err != nil {
		return err
	}
	log.Printf("imported %d monthly normals", n)
	return nil
}

type serveMetricsCmd struct {
	Addr string `default:":9100" help:"Listen address."`
}

func (c *serveMetricsCmd) Run(root *cli) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: c.Addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("serving metrics on %s", c.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
