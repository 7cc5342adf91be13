package services

import (
	"context"
	"fmt"
	"sort"

	"rca-rates/models"
	"rca-rates/storage"
	"rca-rates/utils"
)

// FetchMode selects which stores' gaps are filled from the paid API.
type FetchMode string

const (
	FetchNone     FetchMode = "none"
	FetchAll      FetchMode = "all"
	FetchSelected FetchMode = "selected"
)

// FetchSelection is the operator's decision on paid fetches.
type FetchSelection struct {
	Mode     FetchMode
	StoreIDs []models.StoreID
}

// Analysis is the full input to one run. Stores[0] is the subject.
type Analysis struct {
	RunID     string
	Stores    []models.Store
	Window    models.DateWindow
	Rankings  models.Rankings
	Factors   models.AdjustmentFactors
	Names     map[models.StoreID]string
	Overrides map[models.FeatureKey]string
	Fetch     FetchSelection
}

// Validate rejects inputs that would make any stage meaningless.
func (a Analysis) Validate() error {
	if len(a.Stores) == 0 {
		return models.ErrNoStores
	}
	for _, s := range a.Stores {
		if s.ID == "" {
			return fmt.Errorf("%w: store %q has no ID", models.ErrInput, s.Name)
		}
	}
	if err := a.Window.Validate(); err != nil {
		return err
	}
	if err := a.Rankings.Validate(); err != nil {
		return err
	}
	return a.Factors.Validate()
}

// PipelineOptions holds the tunables the pipeline needs from config.
type PipelineOptions struct {
	CostPerDay  float64
	MaxAPISpend float64
	Backfill    bool
}

// Result is everything a run produced. Records is always populated when the
// run got past validation; Summary is nil when SummaryErr is set.
type Result struct {
	Records     []models.CanonicalRateRecord
	FeatureKeys []models.FeatureKeyInfo
	Unmatched   []models.FeatureKey
	Gaps        models.GapReport
	Summary     *models.SummaryReport
	SummaryErr  error
	Stats       models.RunStats
}

// Pipeline wires the stages together. Each stage receives only the values
// it needs and returns new ones.
type Pipeline struct {
	source     storage.RateSource
	writer     storage.RateWriter
	fetcher    *Fetcher
	normalizer *Normalizer
	builder    *SummaryBuilder
	observer   ProgressObserver
	opts       PipelineOptions
	logger     *utils.Logger
}

// NewPipeline creates a Pipeline. fetcher may be nil when no API is
// configured; writer may be nil when backfill is off.
func NewPipeline(source storage.RateSource, writer storage.RateWriter, fetcher *Fetcher, normalizer *Normalizer,
	builder *SummaryBuilder, observer ProgressObserver, opts PipelineOptions, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		source:     source,
		writer:     writer,
		fetcher:    fetcher,
		normalizer: normalizer,
		builder:    builder,
		observer:   observer,
		opts:       opts,
		logger:     logger,
	}
}

// Gaps runs only the database query and gap analysis.
func (p *Pipeline) Gaps(ctx context.Context, a Analysis) (models.GapReport, map[models.StoreID][]models.DBRateRow, error) {
	if err := a.Validate(); err != nil {
		return models.GapReport{}, nil, err
	}

	ids := models.StoreIDs(a.Stores)
	rowsByStore, datesByStore, err := p.source.RatesInWindow(ctx, ids, a.Window.From, a.Window.To)
	if err != nil {
		return models.GapReport{}, nil, fmt.Errorf("query rate warehouse: %w", err)
	}

	gaps := AnalyzeGaps(datesByStore, ids, a.Window)
	report := BuildGapReport(a.Stores, a.Names, gaps, a.Window, p.opts.CostPerDay)
	for _, g := range report.Stores {
		p.logger.Info("[gaps] %s (%s): %d missing days in %d ranges, coverage %.1f%%",
			g.StoreName, g.StoreID, g.MissingDays, len(g.Ranges), g.CoveragePct)
	}
	p.logger.Info("[gaps] Total missing days: %d, estimated API cost $%.2f",
		report.TotalMissingDays, report.EstimatedCost)
	return report, rowsByStore, nil
}

// Run executes every stage. Only invalid input or an unreachable warehouse
// is fatal; API failures and an unbuildable summary are reported in Result.
func (p *Pipeline) Run(ctx context.Context, a Analysis) (*Result, error) {
	gapReport, rowsByStore, err := p.Gaps(ctx, a)
	if err != nil {
		return nil, err
	}

	res := &Result{Gaps: gapReport}
	res.Stats.RunID = a.RunID
	res.Stats.StoresAnalysed = len(a.Stores)

	dbRecords := p.databaseRecords(a, rowsByStore)

	plans, skippedStores := SelectFetchPlans(a.Stores, gapReport, a.Fetch, p.opts.CostPerDay, p.opts.MaxAPISpend)
	for _, id := range skippedStores {
		p.logger.Warn("[pipeline] Store %s skipped: its gaps would exceed the API spend cap $%.2f", id, p.opts.MaxAPISpend)
	}

	var apiRecords []models.CanonicalRateRecord
	if len(plans) > 0 {
		if p.fetcher == nil {
			p.logger.Warn("[pipeline] %d stores have gaps but no API client is configured", len(plans))
		} else {
			fr := p.fetcher.FetchMissing(ctx, plans, p.observer)
			apiRecords = fr.Records
			res.Stats.RangesFetched = fr.Fetched
			res.Stats.RangesFailed = fr.Failed
			res.Stats.RangesSkipped = fr.Skipped
			res.Stats.PartialFetch = fr.Partial
		}
	}

	if p.opts.Backfill && p.writer != nil && len(apiRecords) > 0 {
		// a cancelled run still backfills what it paid for
		if err := p.writer.Write(context.WithoutCancel(ctx), apiRecords); err != nil {
			p.logger.Error("[pipeline] Backfill of %d API records failed: %v", len(apiRecords), err)
		} else {
			p.logger.Info("[pipeline] Backfilled %d API records into the warehouse", len(apiRecords))
		}
	}

	var dropped int
	res.Records, res.FeatureKeys, res.Unmatched, dropped = p.reconcile(a, dbRecords, apiRecords)

	res.Stats.DroppedNonUnit = dropped
	res.Stats.TotalRecords = len(res.Records)
	for _, r := range res.Records {
		if r.Provenance == models.ProvenanceAPI {
			res.Stats.APIRecords++
		} else {
			res.Stats.DBRecords++
		}
	}
	p.logger.Info("[pipeline] Reconciled %d records (db %d, api %d, non-unit dropped %d, %d feature keys)",
		res.Stats.TotalRecords, res.Stats.DBRecords, res.Stats.APIRecords, dropped, len(res.FeatureKeys))

	res.Summary, res.SummaryErr = p.builder.Build(res.Records, a.Stores, a.Rankings, a.Factors)
	if res.SummaryErr != nil {
		p.logger.Error("[pipeline] Summary not built: %v", res.SummaryErr)
	}
	return res, nil
}

// Preview is what the operator reviews before paying for any fetch: the
// coverage table and the feature keys already present in the warehouse.
type Preview struct {
	Gaps        models.GapReport
	FeatureKeys []models.FeatureKeyInfo
	Unmatched   []models.FeatureKey
}

// Preview runs gap analysis and classifies the warehouse records. It never
// calls the API.
func (p *Pipeline) Preview(ctx context.Context, a Analysis) (*Preview, error) {
	gapReport, rowsByStore, err := p.Gaps(ctx, a)
	if err != nil {
		return nil, err
	}
	_, keys, unmatched, _ := p.reconcile(a, p.databaseRecords(a, rowsByStore), nil)
	return &Preview{Gaps: gapReport, FeatureKeys: keys, Unmatched: unmatched}, nil
}

func (p *Pipeline) databaseRecords(a Analysis, rowsByStore map[models.StoreID][]models.DBRateRow) []models.CanonicalRateRecord {
	var out []models.CanonicalRateRecord
	for _, s := range a.Stores {
		out = append(out, p.normalizer.FromDatabaseRows(rowsByStore[s.ID], s)...)
	}
	return out
}

// reconcile merges both sources, keeps rentable units and assigns feature
// codes. Overrides that match no key are logged.
func (p *Pipeline) reconcile(a Analysis, dbRecords, apiRecords []models.CanonicalRateRecord) ([]models.CanonicalRateRecord, []models.FeatureKeyInfo, []models.FeatureKey, int) {
	merged := Merge(dbRecords, apiRecords, a.Names)
	units, dropped := FilterUnitType(merged, models.UnitTypeUnit)
	keys := ApplyOverrides(DistinctFeatureKeys(units), a.Overrides)
	unmatched := UnmatchedOverrides(keys, a.Overrides)
	for _, k := range unmatched {
		p.logger.Warn("[classify] Override for %s CC=%v DU=%v matches no unit in the data; ignored",
			k.Size, k.ClimateControlled, k.DriveUp)
	}
	return AssignFeatureCodes(units, a.Overrides), keys, unmatched, dropped
}

// SelectFetchPlans turns the gap report into fetch plans for the stores the
// operator chose. With a positive spend cap, stores are admitted smallest
// gap first until the next one would exceed the cap; the rest are returned
// as skipped.
func SelectFetchPlans(stores []models.Store, gaps models.GapReport, sel FetchSelection, costPerDay, maxSpend float64) ([]FetchPlan, []models.StoreID) {
	if sel.Mode == FetchNone || sel.Mode == "" {
		return nil, nil
	}

	wanted := make(map[models.StoreID]bool, len(sel.StoreIDs))
	for _, id := range sel.StoreIDs {
		wanted[id] = true
	}
	storeIdx := models.StoreIndex(stores)

	var candidates []models.StoreGap
	for _, g := range gaps.Stores {
		if g.MissingDays == 0 {
			continue
		}
		if sel.Mode == FetchSelected && !wanted[g.StoreID] {
			continue
		}
		candidates = append(candidates, g)
	}

	admitted := make(map[models.StoreID]bool, len(candidates))
	var skipped []models.StoreID
	if maxSpend > 0 {
		bySize := append([]models.StoreGap(nil), candidates...)
		sort.SliceStable(bySize, func(i, j int) bool { return bySize[i].MissingDays < bySize[j].MissingDays })
		var spend float64
		for _, g := range bySize {
			cost := float64(g.MissingDays) * costPerDay
			if spend+cost > maxSpend {
				skipped = append(skipped, g.StoreID)
				continue
			}
			spend += cost
			admitted[g.StoreID] = true
		}
	} else {
		for _, g := range candidates {
			admitted[g.StoreID] = true
		}
	}

	var plans []FetchPlan
	for _, g := range candidates {
		if admitted[g.StoreID] {
			plans = append(plans, FetchPlan{Store: storeIdx[g.StoreID], Ranges: g.Ranges})
		}
	}
	return plans, skipped
}
