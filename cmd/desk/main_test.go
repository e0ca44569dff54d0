package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"atlasgym/internal/visits"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyAlerts struct {
	failures int
	cancel   context.CancelFunc
	afters   []visits.Cursor
	stale    visits.Visit
	fresh    visits.Visit
}

func (f *flakyAlerts) Alerts(ctx context.Context, after visits.Cursor) ([]visits.Visit, visits.Cursor, error) {
	f.afters = append(f.afters, after)
	if f.failures > 0 {
		f.failures--
		return nil, visits.Cursor{}, errors.New("connection refused")
	}
	if after == (visits.Cursor{}) {
		return []visits.Visit{f.stale}, visits.Of(f.stale), nil
	}
	f.cancel()
	return []visits.Visit{f.fresh}, visits.Of(f.fresh), nil
}

func TestWatchAlertsSkipsHistoryAfterFailedStart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	src := &flakyAlerts{
		failures: 2,
		cancel:   cancel,
		stale:    visits.Visit{ID: "v1", Code: "11111", Name: "Vieja", Date: at, Reason: visits.ReasonExpired},
		fresh:    visits.Visit{ID: "v2", Code: "22222", Name: "Nueva", Date: at.Add(time.Hour), Reason: visits.ReasonExpired},
	}

	var out bytes.Buffer
	watchAlerts(ctx, src, &out, time.Millisecond)

	require.Len(t, src.afters, 4)
	assert.Equal(t, visits.Cursor{}, src.afters[2])
	assert.Equal(t, visits.Of(src.stale), src.afters[3])
	assert.Contains(t, out.String(), "22222")
	assert.NotContains(t, out.String(), "11111")
}

func TestWatchAlertsStopsWhileServerIsDown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	src := &flakyAlerts{failures: 1 << 20, cancel: cancel}

	var out bytes.Buffer
	watchAlerts(ctx, src, &out, time.Millisecond)

	assert.Empty(t, out.String())
	for _, c := range src.afters {
		assert.Equal(t, visits.Cursor{}, c)
	}
}
