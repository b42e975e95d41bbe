package publisher

import (
	"context"
	"sort"
	"sync"

	"crosspost/internal/domain"
)

// AggregatedAnalytics fans analytics reads out to the named platforms and
// sums core metrics. A failing platform contributes zeros and is annotated
// in Gaps; the aggregation itself never aborts.
func (p *Publisher) AggregatedAnalytics(ctx context.Context, names []string, tr domain.TimeRange) *domain.AggregatedAnalytics {
	perPlatform, gaps := p.collectAnalytics(ctx, names, tr)

	agg := &domain.AggregatedAnalytics{
		PerPlatform: perPlatform,
		Gaps:        gaps,
		Range:       tr,
	}
	for _, pa := range perPlatform {
		agg.TotalViews += pa.Views
		agg.TotalEngagements += pa.Engagements
		agg.TotalShares += pa.Shares
		agg.TotalComments += pa.Comments
	}
	return agg
}

// ComparativeAnalytics computes a per-metric winner by simple max
// comparison; ties go to the first platform in name order.
func (p *Publisher) ComparativeAnalytics(ctx context.Context, names []string, tr domain.TimeRange) *domain.ComparativeAnalytics {
	perPlatform, gaps := p.collectAnalytics(ctx, names, tr)

	sorted := make([]string, 0, len(perPlatform))
	for name := range perPlatform {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	winners := make(map[string]string, 4)
	metrics := map[string]func(domain.PlatformAnalytics) int64{
		"views":       func(a domain.PlatformAnalytics) int64 { return a.Views },
		"engagements": func(a domain.PlatformAnalytics) int64 { return a.Engagements },
		"shares":      func(a domain.PlatformAnalytics) int64 { return a.Shares },
		"comments":    func(a domain.PlatformAnalytics) int64 { return a.Comments },
	}
	for metric, get := range metrics {
		best := int64(-1)
		for _, name := range sorted {
			if v := get(perPlatform[name]); v > best {
				best = v
				winners[metric] = name
			}
		}
	}

	return &domain.ComparativeAnalytics{
		Winners:     winners,
		PerPlatform: perPlatform,
		Gaps:        gaps,
		Range:       tr,
	}
}

func (p *Publisher) collectAnalytics(ctx context.Context, names []string, tr domain.TimeRange) (map[string]domain.PlatformAnalytics, []string) {
	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		perPlatform = make(map[string]domain.PlatformAnalytics, len(names))
		gaps        []string
	)

	addGap := func(name string) {
		perPlatform[name] = domain.PlatformAnalytics{Platform: name, Estimated: true, Range: tr}
		gaps = append(gaps, name)
	}

	for _, name := range names {
		adapter, ok := p.adapter(name)
		if !ok {
			mu.Lock()
			addGap(name)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, p.cfg.AdapterTimeout)
			defer cancel()

			pa, err := adapter.Analytics(callCtx, tr)

			mu.Lock()
			defer mu.Unlock()
			if err != nil || pa == nil {
				p.logger.Warn("analytics call failed, substituting zeros", "platform", name, "error", err)
				addGap(name)
				return
			}
			pa.Platform = name
			perPlatform[name] = *pa
		}(name)
	}
	wg.Wait()

	sort.Strings(gaps)
	return perPlatform, gaps
}
