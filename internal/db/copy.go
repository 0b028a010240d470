package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/gyeh/cantonhealth/internal/model"
)

// ChannelSource implements pgx.CopyFromSource over staged features sent by
// the layer encoder. The buffered channel bounds how far encoding runs
// ahead of COPY.
type ChannelSource struct {
	ctx     context.Context
	ch      <-chan *model.StagedFeature
	current *model.StagedFeature
	rows    int64
	err     error
}

// NewChannelSource creates a CopyFromSource backed by ch. Cancelling ctx
// ends the COPY with ctx's error instead of waiting for ch to close.
func NewChannelSource(ctx context.Context, ch <-chan *model.StagedFeature) *ChannelSource {
	return &ChannelSource{ctx: ctx, ch: ch}
}

// Next advances to the next feature. It returns false when the channel is
// closed or the context is done.
func (s *ChannelSource) Next() bool {
	select {
	case f, ok := <-s.ch:
		if !ok {
			return false
		}
		s.current = f
		s.rows++
		return true
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		return false
	}
}

// Values returns the current feature in StagedFeatureColumns order.
func (s *ChannelSource) Values() ([]any, error) {
	return s.current.CopyValues(), nil
}

// Err returns the context error if staging was cancelled.
func (s *ChannelSource) Err() error {
	return s.err
}

// Rows returns the number of features handed to COPY so far.
func (s *ChannelSource) Rows() int64 {
	return s.rows
}

var _ pgx.CopyFromSource = (*ChannelSource)(nil)
