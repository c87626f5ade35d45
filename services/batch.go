package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pjc-admin/statistiques-api/models"
)

// YearFetcher loads the statistics of one year.
type YearFetcher func(ctx context.Context, year int) (*models.YearStatistic, error)

// YearResult holds either the statistics of a year or the reason they are missing.
type YearResult struct {
	Stat *models.YearStatistic
	Err  error
}

// FetchPolicy décide comment les années sont chargées (une par une ou en parallèle).
// A failed year never aborts the others.
type FetchPolicy interface {
	Fetch(ctx context.Context, years []int, fetch YearFetcher) map[int]YearResult
}

// SequentialPolicy charge les années dans l'ordre, une requête à la fois
type SequentialPolicy struct{}

func (SequentialPolicy) Fetch(ctx context.Context, years []int, fetch YearFetcher) map[int]YearResult {
	results := make(map[int]YearResult, len(years))
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			results[year] = YearResult{Err: err}
			continue
		}
		stat, err := fetch(ctx, year)
		results[year] = YearResult{Stat: stat, Err: err}
	}
	return results
}

// ParallelPolicy loads up to Limit years at once.
type ParallelPolicy struct {
	Limit int
}

func (p ParallelPolicy) Fetch(ctx context.Context, years []int, fetch YearFetcher) map[int]YearResult {
	results := make(map[int]YearResult, len(years))
	var mu sync.Mutex

	limit := p.Limit
	if limit < 1 {
		limit = 1
	}

	// errgroup sans WithContext : une année en échec ne doit pas annuler les autres
	var g errgroup.Group
	g.SetLimit(limit)

	for _, year := range years {
		year := year
		g.Go(func() error {
			var res YearResult
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Stat, res.Err = fetch(ctx, year)
			}

			mu.Lock()
			results[year] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// NewFetchPolicy construit la politique configurée
func NewFetchPolicy(name string, concurrency int) FetchPolicy {
	if name == "parallel" {
		return ParallelPolicy{Limit: concurrency}
	}
	return SequentialPolicy{}
}

// FetchYears runs policy over years, defaulting to the sequential policy.
func FetchYears(ctx context.Context, policy FetchPolicy, years []int, fetch YearFetcher) map[int]YearResult {
	if policy == nil {
		policy = SequentialPolicy{}
	}
	return policy.Fetch(ctx, years, fetch)
}
