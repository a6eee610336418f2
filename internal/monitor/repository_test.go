package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database/databasetest"
)

func TestSampleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(databasetest.Open(t).Sqlx())
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, v := range []float64{20, 20.5, 21} {
		s := Sample{Device: "arduino1", Kind: device.KindSensor, Element: "TEMPINT", RecordedAt: base.Add(time.Duration(i) * time.Minute), Value: v}
		if err := repo.AppendSample(ctx, s); err != nil {
			t.Fatalf("AppendSample() error = %v", err)
		}
	}
	if err := repo.AppendSample(ctx, Sample{Device: "arduino1", Kind: device.KindSwitch, Element: "1", RecordedAt: base, Value: 1}); err != nil {
		t.Fatalf("AppendSample() error = %v", err)
	}

	all, err := repo.ListSamples(ctx, Query{Device: "arduino1", Kind: device.KindSensor, Element: "TEMPINT"})
	if err != nil {
		t.Fatalf("ListSamples() error = %v", err)
	}
	if len(all) != 3 || all[0].Value != 20 || all[2].Value != 21 || !all[1].RecordedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("ListSamples() = %+v", all)
	}

	window, err := repo.ListSamples(ctx, Query{Kind: device.KindSensor, Since: base.Add(time.Minute), Until: base.Add(2 * time.Minute)})
	if err != nil || len(window) != 1 || window[0].Value != 20.5 {
		t.Errorf("ListSamples(window) = %+v, %v", window, err)
	}

	limited, err := repo.ListSamples(ctx, Query{Limit: 2})
	if err != nil || len(limited) != 2 {
		t.Errorf("ListSamples(limit) = %d, %v", len(limited), err)
	}
}
