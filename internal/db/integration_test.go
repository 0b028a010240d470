package db_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/cantonhealth/internal/db"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/pipeline"
)

const (
	testPort     = 15433
	testDB       = "cantontest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Fprintln(os.Stderr, "SKIP: embedded postgres tests need a full run")
		os.Exit(0)
	}

	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupDB creates a connection pool on a clean layers schema.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS layers CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := db.ApplyMigrations(ctx, pool, zerolog.Nop()); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	// Idempotent.
	if err := db.ApplyMigrations(ctx, pool, zerolog.Nop()); err != nil {
		pool.Close()
		t.Fatalf("second migration run: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

func stageFixture(t *testing.T, pool *pgxpool.Pool, layer, name string) *model.Layer {
	t.Helper()
	ctx := context.Background()
	l, report, err := pipeline.LoadLayer(ctx, zerolog.Nop(), "../pipeline/testdata/"+layer+".geojson", layer, nil)
	if err != nil {
		t.Fatalf("load %s: %v", layer, err)
	}
	res, err := db.StageLayer(ctx, pool, zerolog.Nop(), name, l, db.Origin{
		Path:   report.Source,
		SHA256: report.SHA256,
		CRS:    report.SourceCRS,
	})
	if err != nil {
		t.Fatalf("stage %s: %v", layer, err)
	}
	if res.FeaturesStaged != int64(len(l.Features)) {
		t.Fatalf("staged %d of %d features", res.FeaturesStaged, len(l.Features))
	}
	return l
}

func TestStageAndReadLayer(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	store := db.NewStore(pool, zerolog.Nop())

	want := stageFixture(t, pool, model.LayerFacilities, "hospitales")

	got, err := store.ReadLayer(ctx, "hospitales")
	if err != nil {
		t.Fatalf("ReadLayer: %v", err)
	}
	if len(got.Features) != len(want.Features) {
		t.Fatalf("features: got %d, want %d", len(got.Features), len(want.Features))
	}
	if got.GeometryCount() != want.GeometryCount() {
		t.Errorf("geometries: got %d, want %d", got.GeometryCount(), want.GeometryCount())
	}
	for i := range want.Features {
		w, g := want.Features[i], got.Features[i]
		if fmt.Sprint(w.Properties[model.ColCategory]) != fmt.Sprint(g.Properties[model.ColCategory]) {
			t.Errorf("row %d category: got %v, want %v", i, g.Properties[model.ColCategory], w.Properties[model.ColCategory])
		}
		if (w.Geometry == nil) != (g.Geometry == nil) {
			t.Errorf("row %d geometry presence differs", i)
		}
	}
	if !sort.StringsAreSorted(got.Columns) {
		t.Errorf("columns not sorted: %v", got.Columns)
	}

	var app string
	if err := pool.QueryRow(ctx, "SELECT current_setting('application_name')").Scan(&app); err != nil {
		t.Fatalf("application_name: %v", err)
	}
	if app != db.ApplicationName {
		t.Errorf("application_name = %q", app)
	}
}

func TestReadLayer_LatestBatchWins(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	store := db.NewStore(pool, zerolog.Nop())

	stageFixture(t, pool, model.LayerFacilities, "capa")
	time.Sleep(10 * time.Millisecond)
	want := stageFixture(t, pool, model.LayerBoundaries, "capa")

	got, err := store.ReadLayer(ctx, "capa")
	if err != nil {
		t.Fatalf("ReadLayer: %v", err)
	}
	if len(got.Features) != len(want.Features) {
		t.Errorf("expected the boundary batch (%d features), got %d", len(want.Features), len(got.Features))
	}

	batches, err := store.ListBatches(ctx)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0].FeatureCount != int64(len(want.Features)) {
		t.Errorf("newest batch should list first, got %+v", batches[0])
	}

	n, err := db.DeleteBatch(ctx, pool, batches[0].BatchID)
	if err != nil || n != 1 {
		t.Fatalf("DeleteBatch: n=%d err=%v", n, err)
	}
	var features int64
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM layers.features WHERE batch_id = $1", batches[0].BatchID).Scan(&features); err != nil {
		t.Fatalf("count: %v", err)
	}
	if features != 0 {
		t.Errorf("features of deleted batch remain: %d", features)
	}
}

func TestReadLayer_UnfinishedBatchIgnored(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	store := db.NewStore(pool, zerolog.Nop())

	want := stageFixture(t, pool, model.LayerFacilities, "capa")
	time.Sleep(10 * time.Millisecond)

	// A newer batch whose COPY never finished.
	partial := uuid.New()
	if _, err := pool.Exec(ctx,
		`INSERT INTO layers.batches (batch_id, layer, source_path) VALUES ($1, 'capa', 'partial.geojson')`,
		partial); err != nil {
		t.Fatalf("insert partial batch: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO layers.features (batch_id, layer, row_number) VALUES ($1, 'capa', 1)`,
		partial); err != nil {
		t.Fatalf("insert partial feature: %v", err)
	}

	got, err := store.ReadLayer(ctx, "capa")
	if err != nil {
		t.Fatalf("ReadLayer: %v", err)
	}
	if len(got.Features) != len(want.Features) {
		t.Errorf("expected the finished batch (%d features), got %d", len(want.Features), len(got.Features))
	}

	batches, err := store.ListBatches(ctx)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 2 || batches[0].BatchID != partial || batches[0].FinishedAt != nil || batches[1].FinishedAt == nil {
		t.Errorf("unexpected batch listing: %+v", batches)
	}

	// Only an unfinished batch: nothing to read.
	if _, err := pool.Exec(ctx, `INSERT INTO layers.batches (batch_id, layer, source_path) VALUES ($1, 'solo', 'x')`, uuid.New()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ReadLayer(ctx, "solo"); !errors.Is(err, db.ErrNoBatch) {
		t.Errorf("expected ErrNoBatch, got %v", err)
	}
}

func TestReadLayer_Missing(t *testing.T) {
	pool := setupDB(t)
	store := db.NewStore(pool, zerolog.Nop())
	if _, err := store.ReadLayer(context.Background(), "nada"); err == nil {
		t.Fatal("expected error for unstaged layer")
	}
}

func TestPipelineFromStagedLayers(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	store := db.NewStore(pool, zerolog.Nop())

	for _, layer := range model.LayerNames() {
		stageFixture(t, pool, layer, layer)
	}

	files := pipeline.Sources{
		Population: "../pipeline/testdata/population.geojson",
		Facilities: "../pipeline/testdata/facilities.geojson",
		Boundaries: "../pipeline/testdata/boundaries.geojson",
	}
	staged := pipeline.Sources{
		Population: "postgres:" + model.LayerPopulation,
		Facilities: "postgres:" + model.LayerFacilities,
		Boundaries: "postgres:" + model.LayerBoundaries,
	}

	want, err := pipeline.Run(ctx, zerolog.Nop(), files, nil)
	if err != nil {
		t.Fatalf("run from files: %v", err)
	}
	got, err := pipeline.Run(ctx, zerolog.Nop(), staged, store)
	if err != nil {
		t.Fatalf("run from postgres: %v", err)
	}

	if len(got.Districts) != len(want.Districts) {
		t.Fatalf("districts: got %d, want %d", len(got.Districts), len(want.Districts))
	}
	byName := make(map[string]model.District)
	for _, d := range got.Districts {
		byName[d.Name] = d
	}
	for _, w := range want.Districts {
		g, ok := byName[w.Name]
		if !ok {
			t.Errorf("district %q missing", w.Name)
			continue
		}
		if g.Population != w.Population || g.FacilityCount != w.FacilityCount || g.HasRatio() != w.HasRatio() {
			t.Errorf("district %q: got %+v, want %+v", w.Name, g, w)
		}
	}
}
