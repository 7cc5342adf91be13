package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"rca-rates/models"
	"rca-rates/utils"
)

// RateAPI is the remote historical-rates source. A nil payload with a nil
// error means the API had nothing for the span.
type RateAPI interface {
	FetchRange(ctx context.Context, storeID models.StoreID, from, to time.Time) (*models.APIRatePayload, error)
}

// FetchPlan lists the missing ranges to request for one store.
type FetchPlan struct {
	Store  models.Store
	Ranges []models.DateRange
}

// ProgressEvent reports the outcome of one (store, range) fetch.
type ProgressEvent struct {
	StoreID   models.StoreID
	Range     models.DateRange
	Records   int
	Err       error
	Completed int
	Total     int
}

// ProgressObserver receives one event per finished range. Calls are
// serialized by the Fetcher.
type ProgressObserver interface {
	RangeDone(ev ProgressEvent)
}

// ProgressFunc adapts a plain function to ProgressObserver.
type ProgressFunc func(ev ProgressEvent)

func (f ProgressFunc) RangeDone(ev ProgressEvent) { f(ev) }

type nopObserver struct{}

func (nopObserver) RangeDone(ProgressEvent) {}

// FetchResult is what arrived from the API. Partial is set when the run was
// cancelled; Skipped counts the ranges that were never attempted or were
// interrupted mid-call. The records that did arrive are still valid.
type FetchResult struct {
	Records []models.CanonicalRateRecord
	Fetched int
	Failed  int
	Skipped int
	Partial bool
}

// Fetcher requests missing ranges from the API on a worker pool.
type Fetcher struct {
	api        RateAPI
	pool       *utils.WorkerPool
	normalizer *Normalizer
	logger     *utils.Logger
}

// NewFetcher creates a Fetcher. With a single worker the calls run one after
// another, store by store and range by range.
func NewFetcher(api RateAPI, pool *utils.WorkerPool, normalizer *Normalizer, logger *utils.Logger) *Fetcher {
	return &Fetcher{api: api, pool: pool, normalizer: normalizer, logger: logger}
}

type fetchUnit struct {
	store models.Store
	rng   models.DateRange
}

// unitState is the outcome of one (store, range) unit. A unit whose call
// was cut short by cancellation counts as interrupted, not failed.
type unitState int

const (
	unitPending unitState = iota
	unitFetched
	unitFailed
	unitInterrupted
)

type unitKey struct {
	store      models.StoreID
	start, end time.Time
}

// FetchMissing requests every planned range. A range that errors or returns
// nothing contributes zero records and does not stop its siblings. Records
// are concatenated in plan order whatever order the calls complete in.
func (f *Fetcher) FetchMissing(ctx context.Context, plans []FetchPlan, observer ProgressObserver) FetchResult {
	if observer == nil {
		observer = nopObserver{}
	}

	seen := utils.NewKeySet[unitKey]()
	var units []fetchUnit
	for _, p := range plans {
		for _, r := range p.Ranges {
			if !seen.Add(unitKey{store: p.Store.ID, start: r.Start, end: r.End}) {
				continue
			}
			units = append(units, fetchUnit{store: p.Store, rng: r})
		}
	}

	results := make([][]models.CanonicalRateRecord, len(units))
	states := make([]unitState, len(units))

	var mu sync.Mutex
	completed := 0

	f.logger.Info("[fetch] Requesting %d ranges for %d stores", len(units), len(plans))

	for i, u := range units {
		i, u := i, u
		ok := f.pool.Submit(ctx, func() {
			records, err := f.fetchOne(ctx, u)
			results[i] = records

			state := unitFetched
			switch {
			case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
				state = unitInterrupted
			case err != nil:
				state = unitFailed
			}

			mu.Lock()
			defer mu.Unlock()
			states[i] = state
			completed++
			observer.RangeDone(ProgressEvent{
				StoreID:   u.store.ID,
				Range:     u.rng,
				Records:   len(records),
				Err:       err,
				Completed: completed,
				Total:     len(units),
			})
		})
		if !ok {
			break
		}
	}
	f.pool.Wait()

	var res FetchResult
	for i := range units {
		switch states[i] {
		case unitPending, unitInterrupted:
			res.Skipped++
		case unitFailed:
			res.Failed++
		default:
			res.Fetched++
			res.Records = append(res.Records, results[i]...)
		}
	}
	res.Partial = res.Skipped > 0 || ctx.Err() != nil

	if res.Partial {
		f.logger.Warn("[fetch] Interrupted: %d ranges done, %d failed, %d not completed",
			res.Fetched, res.Failed, res.Skipped)
	} else {
		f.logger.Info("[fetch] Complete: %d ranges fetched, %d failed, %d records",
			res.Fetched, res.Failed, len(res.Records))
	}
	return res
}

func (f *Fetcher) fetchOne(ctx context.Context, u fetchUnit) ([]models.CanonicalRateRecord, error) {
	payload, err := f.api.FetchRange(ctx, u.store.ID, u.rng.Start, u.rng.End)
	if err != nil {
		f.logger.Warn("[fetch] store %s range %s failed: %v", u.store.ID, u.rng, err)
		return nil, err
	}
	if payload == nil || len(payload.Rates) == 0 {
		f.logger.Debug("[fetch] store %s range %s: no data", u.store.ID, u.rng)
		return nil, nil
	}
	return f.normalizer.FromAPIPayload(payload, u.store), nil
}
