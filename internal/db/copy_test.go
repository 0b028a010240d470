package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gyeh/cantonhealth/internal/model"
)

func TestChannelSource(t *testing.T) {
	ch := make(chan *model.StagedFeature, 2)
	id := uuid.New()
	ch <- &model.StagedFeature{BatchID: id, Layer: "cantones", RowNumber: 1, Properties: []byte(`{}`)}
	ch <- &model.StagedFeature{BatchID: id, Layer: "cantones", RowNumber: 2, Properties: []byte(`{}`)}
	close(ch)

	src := NewChannelSource(context.Background(), ch)
	var rows []int64
	for src.Next() {
		v, err := src.Values()
		if err != nil {
			t.Fatal(err)
		}
		if v[4] != nil {
			t.Errorf("empty geometry should copy as NULL, got %v", v[4])
		}
		rows = append(rows, v[2].(int64))
	}
	if src.Err() != nil || src.Rows() != 2 || len(rows) != 2 || rows[1] != 2 {
		t.Errorf("rows=%v count=%d err=%v", rows, src.Rows(), src.Err())
	}
}

func TestChannelSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewChannelSource(ctx, make(chan *model.StagedFeature))
	if src.Next() {
		t.Fatal("Next should stop on a cancelled context")
	}
	if !errors.Is(src.Err(), context.Canceled) {
		t.Errorf("Err = %v", src.Err())
	}
}
