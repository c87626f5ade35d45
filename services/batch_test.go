package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pjc-admin/statistiques-api/models"
)

func failOn(bad int) YearFetcher {
	return func(ctx context.Context, year int) (*models.YearStatistic, error) {
		if year == bad {
			return nil, errBackendDown
		}
		s := ZeroYearStatistic(year)
		return &s, nil
	}
}

func TestSequentialPolicy_IsolatesFailures(t *testing.T) {
	results := SequentialPolicy{}.Fetch(context.Background(), []int{2023, 2024, 2025}, failOn(2024))

	require.Len(t, results, 3)
	assert.NoError(t, results[2023].Err)
	assert.ErrorIs(t, results[2024].Err, errBackendDown)
	assert.Nil(t, results[2024].Stat)
	assert.Equal(t, 2025, results[2025].Stat.Year)
}

func TestSequentialPolicy_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := SequentialPolicy{}.Fetch(ctx, []int{2023, 2024}, func(ctx context.Context, year int) (*models.YearStatistic, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})

	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.ErrorIs(t, results[2023].Err, context.Canceled)
}

func TestParallelPolicy_RespectsLimit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var running, peak int32
	fetch := func(ctx context.Context, year int) (*models.YearStatistic, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		s := ZeroYearStatistic(year)
		return &s, nil
	}

	years := []int{2020, 2021, 2022, 2023, 2024, 2025, 2026}
	results := ParallelPolicy{Limit: 2}.Fetch(context.Background(), years, fetch)

	assert.Len(t, results, len(years))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestParallelPolicy_FailureDoesNotCancelSiblings(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	results := ParallelPolicy{Limit: 3}.Fetch(context.Background(), []int{2023, 2024, 2025}, failOn(2023))

	assert.Error(t, results[2023].Err)
	assert.NoError(t, results[2024].Err)
	assert.NoError(t, results[2025].Err)
}

func TestNewFetchPolicy(t *testing.T) {
	assert.Equal(t, ParallelPolicy{Limit: 4}, NewFetchPolicy("parallel", 4))
	assert.Equal(t, SequentialPolicy{}, NewFetchPolicy("sequential", 4))
	assert.Equal(t, SequentialPolicy{}, NewFetchPolicy("", 0))
}
