package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/gyeh/cantonhealth/internal/geo"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/source"
	embedsql "github.com/gyeh/cantonhealth/internal/sql"
)

const stageBufferSize = 1024

// ErrNoBatch is returned when a layer has no finished staged batch.
var ErrNoBatch = errors.New("no staged batch for layer")

// StageResult holds metrics from staging one layer.
type StageResult struct {
	BatchID        uuid.UUID
	Layer          string
	FeaturesRead   int64
	FeaturesStaged int64
	Duration       time.Duration
}

// Origin records where a staged layer came from.
type Origin struct {
	Path   string
	SHA256 string
	CRS    string // CRS of the source file before reprojection
}

// StageLayer COPY-loads the features of l into layers.features under a new
// batch. l must already be in EPSG:4326.
func StageLayer(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, name string, l *model.Layer, origin Origin) (*StageResult, error) {
	start := time.Now()
	batchID := uuid.New()

	if _, err := pool.Exec(ctx, embedsql.InsertBatch, batchID, name, origin.Path, origin.SHA256, origin.CRS); err != nil {
		return nil, fmt.Errorf("register batch: %w", err)
	}

	ch := make(chan *model.StagedFeature, stageBufferSize)
	errCh := make(chan error, 1)

	// Producer goroutine: encode features → push to channel
	go func() {
		defer close(ch)
		for i, f := range l.Features {
			staged, err := encodeFeature(batchID, name, int64(i+1), f)
			if err != nil {
				errCh <- fmt.Errorf("encode row %d: %w", i+1, err)
				return
			}
			select {
			case ch <- staged:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		errCh <- nil
	}()

	src := NewChannelSource(ctx, ch)
	staged, err := pool.CopyFrom(ctx,
		pgx.Identifier{"layers", "features"},
		model.StagedFeatureColumns(),
		src,
	)

	// Drain so the producer can exit if COPY stopped early.
	for range ch {
	}
	prodErr := <-errCh
	if prodErr == nil {
		prodErr = err
	}
	if prodErr == nil && staged != src.Rows() {
		prodErr = fmt.Errorf("copied %d of %d encoded features", staged, src.Rows())
	}
	if prodErr != nil {
		if _, delErr := pool.Exec(context.WithoutCancel(ctx), embedsql.DeleteBatch, batchID); delErr != nil {
			log.Warn().Err(delErr).Str("batch_id", batchID.String()).Msg("failed to remove partial batch")
		}
		return nil, fmt.Errorf("stage copy: %w", prodErr)
	}

	if _, err := pool.Exec(ctx, embedsql.FinishBatch, batchID, staged); err != nil {
		return nil, fmt.Errorf("finish batch: %w", err)
	}

	dur := time.Since(start)
	log.Info().
		Str("layer", name).
		Str("batch_id", batchID.String()).
		Int("features_read", len(l.Features)).
		Int64("features_staged", staged).
		Str("duration", dur.String()).
		Msg("staging complete")

	return &StageResult{
		BatchID:        batchID,
		Layer:          name,
		FeaturesRead:   int64(len(l.Features)),
		FeaturesStaged: staged,
		Duration:       dur,
	}, nil
}

func encodeFeature(batchID uuid.UUID, layer string, row int64, f model.Feature) (*model.StagedFeature, error) {
	props := f.Properties
	if props == nil {
		props = map[string]any{}
	}
	propJSON, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	var geomWKB []byte
	if f.Geometry != nil {
		geomWKB, err = wkb.Marshal(f.Geometry, wkb.NDR)
		if err != nil {
			return nil, fmt.Errorf("geometry: %w", err)
		}
	}
	return &model.StagedFeature{
		BatchID:    batchID,
		Layer:      layer,
		RowNumber:  row,
		Properties: propJSON,
		Geometry:   geomWKB,
	}, nil
}

// Store reads staged layers back.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewStore wraps a pool.
func NewStore(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// ReadLayer returns the latest staged batch of the named layer in EPSG:4326.
func (s *Store) ReadLayer(ctx context.Context, name string) (*model.Layer, error) {
	var (
		batchID    uuid.UUID
		sourcePath string
		count      int64
	)
	err := s.pool.QueryRow(ctx, embedsql.LatestBatch, name).Scan(&batchID, &sourcePath, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w %q", ErrNoBatch, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find batch for %q: %w", name, err)
	}

	rows, err := s.pool.Query(ctx, embedsql.SelectFeatures, batchID)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	features := make([]model.Feature, 0, count)
	for rows.Next() {
		var (
			row     int64
			propRaw []byte
			geomRaw []byte
		)
		if err := rows.Scan(&row, &propRaw, &geomRaw); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		var f model.Feature
		if err := json.Unmarshal(propRaw, &f.Properties); err != nil {
			return nil, fmt.Errorf("decode properties of row %d: %w", row, err)
		}
		if len(geomRaw) > 0 {
			f.Geometry, err = wkb.Unmarshal(geomRaw)
			if err != nil {
				return nil, fmt.Errorf("decode geometry of row %d: %w", row, err)
			}
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}

	s.log.Debug().
		Str("layer", name).
		Str("batch_id", batchID.String()).
		Str("staged_from", sourcePath).
		Int("features", len(features)).
		Msg("read staged layer")

	return &model.Layer{
		CRS:      geo.WGS84,
		Columns:  source.CollectColumns(features),
		Features: features,
	}, nil
}

// BatchInfo describes one staged batch.
type BatchInfo struct {
	BatchID      uuid.UUID
	Layer        string
	SourcePath   string
	SourceSHA256 string
	FeatureCount int64
	CreatedAt    time.Time
	// FinishedAt is nil while the batch is still being copied, or if its
	// stage failed before cleanup.
	FinishedAt *time.Time
}

// ListBatches returns every staged batch, newest first within each layer.
func (s *Store) ListBatches(ctx context.Context) ([]BatchInfo, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListBatches)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BatchInfo, error) {
		var b BatchInfo
		err := row.Scan(&b.BatchID, &b.Layer, &b.SourcePath, &b.SourceSHA256, &b.FeatureCount, &b.CreatedAt, &b.FinishedAt)
		return b, err
	})
}

// DeleteBatch removes a staged batch and its features.
func DeleteBatch(ctx context.Context, pool *pgxpool.Pool, batchID uuid.UUID) (int64, error) {
	tag, err := pool.Exec(ctx, embedsql.DeleteBatch, batchID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ source.LayerStore = (*Store)(nil)
