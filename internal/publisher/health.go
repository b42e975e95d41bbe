package publisher

import (
	"context"
	"sort"
	"sync"
	"time"

	"crosspost/internal/domain"
)

// CheckPlatformHealth runs every registered adapter's health check
// concurrently and rolls the statuses up: unhealthy beats degraded beats
// healthy. Issues are flattened and sorted by severity.
func (p *Publisher) CheckPlatformHealth(ctx context.Context) *domain.HealthReport {
	names := p.Platforms()

	report := &domain.HealthReport{
		Overall:   domain.HealthHealthy,
		Platforms: make(map[string]domain.PlatformHealth, len(names)),
		CheckedAt: time.Now().UTC(),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		adapter, ok := p.adapter(name)
		if !ok {
			continue
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, p.cfg.AdapterTimeout)
			defer cancel()

			health := adapter.HealthCheck(checkCtx)
			health.Platform = name

			mu.Lock()
			report.Platforms[name] = health
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	for name, health := range report.Platforms {
		switch health.Status {
		case domain.HealthUnhealthy:
			report.Overall = domain.HealthUnhealthy
		case domain.HealthDegraded:
			if report.Overall == domain.HealthHealthy {
				report.Overall = domain.HealthDegraded
			}
		}

		for _, msg := range health.Errors {
			report.Issues = append(report.Issues, domain.HealthIssue{
				Platform: name,
				Severity: domain.SeverityError,
				Message:  msg,
			})
		}
		for _, msg := range health.Warnings {
			report.Issues = append(report.Issues, domain.HealthIssue{
				Platform: name,
				Severity: domain.SeverityWarning,
				Message:  msg,
			})
		}
	}

	sort.SliceStable(report.Issues, func(i, j int) bool {
		if report.Issues[i].Severity != report.Issues[j].Severity {
			return report.Issues[i].Severity > report.Issues[j].Severity
		}
		return report.Issues[i].Platform < report.Issues[j].Platform
	})

	return report
}
