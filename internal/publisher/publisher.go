// Package publisher coordinates a single logical publish across an arbitrary
// subset of registered, authenticated platform adapters.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"crosspost/internal/domain"
	"crosspost/internal/events"
	"crosspost/internal/platform"
)

const defaultMaxConcurrent = 3

// Config holds fan-out settings.
type Config struct {
	// MaxConcurrent bounds how many adapter calls run at once per request.
	MaxConcurrent int
	// AdapterTimeout bounds every adapter network call.
	AdapterTimeout time.Duration
}

// Publisher owns a registry of authenticated adapters and fans publish
// requests out across them with per-platform failure isolation.
type Publisher struct {
	formatter Formatter
	emitter   events.Emitter
	logger    *slog.Logger
	cfg       Config

	mu       sync.RWMutex
	adapters map[string]platform.Adapter
	order    []string
}

// New creates a Publisher with an empty registry.
func New(formatter Formatter, emitter events.Emitter, logger *slog.Logger, cfg Config) *Publisher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 30 * time.Second
	}
	if emitter == nil {
		emitter = events.Noop{}
	}

	return &Publisher{
		formatter: formatter,
		emitter:   emitter,
		logger:    logger,
		cfg:       cfg,
		adapters:  make(map[string]platform.Adapter),
	}
}

// AddPlatform authenticates the adapter and registers it. A failed
// authentication leaves the registry untouched. Re-adding an already
// registered platform re-authenticates without duplicating the entry.
func (p *Publisher) AddPlatform(ctx context.Context, adapter platform.Adapter, creds platform.Credentials) error {
	auth, err := adapter.Authenticate(ctx, creds)
	if err != nil {
		return fmt.Errorf("authenticate %s: %w", adapter.Name(), err)
	}
	if !auth.Success {
		return domain.NewPublishError(domain.CodeAuth, adapter.Name(), "authentication rejected")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	name := adapter.Name()
	if _, exists := p.adapters[name]; !exists {
		p.order = append(p.order, name)
	}
	p.adapters[name] = adapter

	p.logger.Info("platform registered", "platform", name, "identity", auth.Identity)
	return nil
}

// RemovePlatform drops an adapter from the registry.
func (p *Publisher) RemovePlatform(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.adapters[name]; !exists {
		return
	}
	delete(p.adapters, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Platforms returns registered platform names in registration order.
func (p *Publisher) Platforms() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p *Publisher) adapter(name string) (platform.Adapter, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.adapters[name]
	return a, ok
}

// PublishToAll publishes to every registered platform.
func (p *Publisher) PublishToAll(ctx context.Context, content *domain.Content, opts domain.MultiPublishOptions) (*domain.PublishReport, error) {
	return p.PublishToSelected(ctx, content, p.Platforms(), opts)
}

// PublishToSelected publishes to the named platforms. Every named platform
// appears exactly once in the report, success or failure; no adapter error
// escapes the fan-out.
func (p *Publisher) PublishToSelected(ctx context.Context, content *domain.Content, names []string, opts domain.MultiPublishOptions) (*domain.PublishReport, error) {
	return p.fanOut(ctx, names, opts, func(ctx context.Context, name string, adapter platform.Adapter) domain.PublishResult {
		return p.formatAndPublish(ctx, name, adapter, content, opts)
	})
}

// UpdateOnPlatforms re-formats and updates a previously published entity on
// each platform, keyed by the platform's external id.
func (p *Publisher) UpdateOnPlatforms(ctx context.Context, content *domain.Content, externalIDs map[string]string, opts domain.MultiPublishOptions) (*domain.PublishReport, error) {
	names := sortedKeys(externalIDs)
	return p.fanOut(ctx, names, opts, func(ctx context.Context, name string, adapter platform.Adapter) domain.PublishResult {
		formatted, ferr := p.formatter.Format(content, name, adapter.Capabilities(), ruleFor(opts, name))
		if ferr != nil {
			return domain.FailedResult(name, domain.AsPublishError(ferr, name))
		}
		res, err := adapter.Update(ctx, externalIDs[name], formatted, optionFor(opts, name))
		return normalizeResult(name, res, err)
	})
}

// DeleteFromPlatforms removes a previously published entity from each
// platform, keyed by the platform's external id.
func (p *Publisher) DeleteFromPlatforms(ctx context.Context, externalIDs map[string]string, opts domain.MultiPublishOptions) (*domain.PublishReport, error) {
	names := sortedKeys(externalIDs)
	return p.fanOut(ctx, names, opts, func(ctx context.Context, name string, adapter platform.Adapter) domain.PublishResult {
		res, err := adapter.Delete(ctx, externalIDs[name])
		return normalizeResult(name, res, err)
	})
}

type dispatchFunc func(ctx context.Context, name string, adapter platform.Adapter) domain.PublishResult

func (p *Publisher) fanOut(ctx context.Context, names []string, opts domain.MultiPublishOptions, dispatch dispatchFunc) (*domain.PublishReport, error) {
	start := time.Now()
	ordered := applyPublishOrder(names, opts.PublishOrder)

	width := opts.MaxConcurrent
	if width <= 0 {
		width = p.cfg.MaxConcurrent
	}

	var (
		resMu   sync.Mutex
		results = make(map[string]domain.PublishResult, len(ordered))
		failed  bool
		wg      sync.WaitGroup
		sem     = make(chan struct{}, width)
	)

	record := func(res domain.PublishResult) {
		resMu.Lock()
		defer resMu.Unlock()
		results[res.Platform] = res
		if !res.Success {
			failed = true
		}
	}
	hasFailed := func() bool {
		resMu.Lock()
		defer resMu.Unlock()
		return failed
	}

	for _, name := range ordered {
		if _, ok := p.adapter(name); !ok {
			record(domain.FailedResult(name,
				domain.NewPublishError(domain.CodeValidation, name, "platform is not registered")))
			continue
		}

		sem <- struct{}{} // acquire before spawning so starts honor the order

		// StopOnFirstFailure only prevents new dispatches; in-flight calls
		// run to completion to avoid undefined remote state. Checked after
		// the slot acquire so a serialized fan-out sees every earlier result.
		if opts.StopOnFirstFailure && hasFailed() {
			<-sem
			record(domain.FailedResult(name,
				domain.NewPublishError(domain.CodeSkipped, name, "skipped after earlier failure")))
			continue
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("adapter panicked", "platform", name, "panic", r)
					record(domain.FailedResult(name,
						domain.NewPublishError(domain.CodeInternal, name, fmt.Sprintf("adapter panic: %v", r))))
				}
			}()

			adapter, _ := p.adapter(name)
			callCtx, cancel := context.WithTimeout(ctx, p.cfg.AdapterTimeout)
			defer cancel()

			record(dispatch(callCtx, name, adapter))
		}(name)
	}

	wg.Wait()

	report := &domain.PublishReport{
		Success: true,
		Results: results,
		Errors:  make(map[string]string),
	}
	for name, res := range results {
		if res.Success {
			report.SuccessCount++
		} else {
			report.FailureCount++
			report.Errors[name] = res.ErrorText
		}
	}
	if opts.RequireAllSuccess {
		report.Success = report.FailureCount == 0
	} else {
		report.Success = report.SuccessCount > 0
	}
	report.TotalDuration = time.Since(start)

	p.logger.Info("fan-out completed",
		"platforms", len(ordered),
		"succeeded", report.SuccessCount,
		"failed", report.FailureCount,
		"duration", report.TotalDuration,
	)

	return report, nil
}

func (p *Publisher) formatAndPublish(ctx context.Context, name string, adapter platform.Adapter, content *domain.Content, opts domain.MultiPublishOptions) domain.PublishResult {
	p.emit(ctx, events.Event{
		Type:      events.TypeDispatchStart,
		Platform:  name,
		ContentID: content.ID,
	})

	formatted, err := p.formatter.Format(content, name, adapter.Capabilities(), ruleFor(opts, name))
	if err != nil {
		res := domain.FailedResult(name, domain.AsPublishError(err, name))
		p.emitResult(ctx, content.ID, res)
		return res
	}

	raw, err := adapter.Publish(ctx, formatted, optionFor(opts, name))
	res := normalizeResult(name, raw, err)
	p.emitResult(ctx, content.ID, res)
	return res
}

func (p *Publisher) emitResult(ctx context.Context, contentID string, res domain.PublishResult) {
	p.emit(ctx, events.Event{
		Type:      events.TypeDispatchResult,
		Platform:  res.Platform,
		ContentID: contentID,
		Success:   events.Bool(res.Success),
		Error:     res.ErrorText,
	})
}

func (p *Publisher) emit(ctx context.Context, event events.Event) {
	if err := p.emitter.Emit(ctx, event); err != nil {
		p.logger.Debug("event emission failed", "type", event.Type, "error", err)
	}
}

// normalizeResult collapses the (result, error) adapter return into exactly
// one PublishResult.
func normalizeResult(name string, res *domain.PublishResult, err error) domain.PublishResult {
	if err != nil {
		return domain.FailedResult(name, domain.AsPublishError(err, name))
	}
	if res == nil {
		return domain.FailedResult(name,
			domain.NewPublishError(domain.CodeInternal, name, "adapter returned no result"))
	}
	out := *res
	out.Platform = name
	if !out.Success && out.ErrorText == "" && out.Error != nil {
		out.ErrorText = out.Error.Error()
	}
	return out
}

// applyPublishOrder starts explicitly ordered platforms first, then the rest
// in their given order. Unknown names in the order list are ignored.
func applyPublishOrder(names, order []string) []string {
	if len(order) == 0 {
		out := make([]string, len(names))
		copy(out, names)
		return out
	}

	named := make(map[string]bool, len(names))
	for _, n := range names {
		named[n] = true
	}

	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range order {
		if named[n] && !seen[n] {
			out = append(out, n)
			seen[n] = true
		}
	}
	for _, n := range names {
		if !seen[n] {
			out = append(out, n)
			seen[n] = true
		}
	}
	return out
}

func ruleFor(opts domain.MultiPublishOptions, name string) *domain.AdaptationRules {
	if r, ok := opts.AdaptationRules[name]; ok {
		return &r
	}
	return nil
}

func optionFor(opts domain.MultiPublishOptions, name string) domain.PublishOptions {
	return opts.PlatformOptions[name]
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
