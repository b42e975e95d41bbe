package publisher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"crosspost/internal/domain"
	"crosspost/internal/format"
	"crosspost/internal/platform"
)

// fakeAdapter is a scriptable in-memory platform.Adapter.
type fakeAdapter struct {
	name string
	caps domain.PlatformCapabilities

	authErr    error
	authReject bool

	mu        sync.Mutex
	published []string
	startedAt map[string]time.Time

	publishFn func(ctx context.Context) (*domain.PublishResult, error)
	deleteFn  func(ctx context.Context, externalID string) (*domain.PublishResult, error)
	analytics *domain.PlatformAnalytics
	health    domain.PlatformHealth
}

func newFakeAdapter(name string) *fakeAdapter {
	return &fakeAdapter{
		name: name,
		caps: domain.PlatformCapabilities{
			MaxContentLength: 100000,
			MaxTitleLength:   150,
			SupportedFormats: []domain.ContentFormat{domain.FormatHTML, domain.FormatMarkdown},
			MaxTags:          10,
		},
		startedAt: make(map[string]time.Time),
		health:    domain.PlatformHealth{Status: domain.HealthHealthy},
	}
}

func (f *fakeAdapter) Name() string                              { return f.name }
func (f *fakeAdapter) Capabilities() domain.PlatformCapabilities { return f.caps }
func (f *fakeAdapter) RateLimit() domain.RateLimit               { return domain.RateLimit{} }

func (f *fakeAdapter) HealthCheck(context.Context) domain.PlatformHealth {
	h := f.health
	h.Platform = f.name
	return h
}

func (f *fakeAdapter) Authenticate(context.Context, platform.Credentials) (*domain.AuthResult, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &domain.AuthResult{Success: !f.authReject, Identity: "user@" + f.name}, nil
}

func (f *fakeAdapter) Publish(ctx context.Context, formatted *domain.FormattedContent, _ domain.PublishOptions) (*domain.PublishResult, error) {
	f.mu.Lock()
	f.published = append(f.published, formatted.Title)
	f.startedAt[formatted.Title] = time.Now()
	f.mu.Unlock()

	if f.publishFn != nil {
		return f.publishFn(ctx)
	}
	return &domain.PublishResult{
		Platform:    f.name,
		Success:     true,
		ExternalID:  f.name + "-1",
		URL:         "https://" + f.name + ".example/1",
		PublishedAt: time.Now(),
	}, nil
}

func (f *fakeAdapter) Update(ctx context.Context, externalID string, _ *domain.FormattedContent, _ domain.PublishOptions) (*domain.PublishResult, error) {
	return &domain.PublishResult{Platform: f.name, Success: true, ExternalID: externalID}, nil
}

func (f *fakeAdapter) Delete(ctx context.Context, externalID string) (*domain.PublishResult, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, externalID)
	}
	return &domain.PublishResult{Platform: f.name, Success: true, ExternalID: externalID}, nil
}

func (f *fakeAdapter) Schedule(ctx context.Context, formatted *domain.FormattedContent, _ time.Time, opts domain.PublishOptions) (*domain.PublishResult, error) {
	return f.Publish(ctx, formatted, opts)
}

func (f *fakeAdapter) Analytics(context.Context, domain.TimeRange) (*domain.PlatformAnalytics, error) {
	if f.analytics == nil {
		return nil, domain.NewPublishError(domain.CodeNetwork, f.name, "analytics unavailable")
	}
	return f.analytics, nil
}

func (f *fakeAdapter) ContentAnalytics(context.Context, string, domain.TimeRange) (*domain.ContentAnalytics, error) {
	return &domain.ContentAnalytics{Platform: f.name}, nil
}

type PublisherTestSuite struct {
	suite.Suite

	publisher *Publisher
	logger    *slog.Logger
}

func (s *PublisherTestSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.publisher = New(format.New(), nil, s.logger, Config{MaxConcurrent: 3})
}

func TestPublisherTestSuite(t *testing.T) {
	suite.Run(t, new(PublisherTestSuite))
}

func (s *PublisherTestSuite) add(adapters ...*fakeAdapter) {
	for _, a := range adapters {
		s.Require().NoError(s.publisher.AddPlatform(context.Background(), a, platform.Credentials{}))
	}
}

func (s *PublisherTestSuite) content() *domain.Content {
	return &domain.Content{
		ID:           "content-1",
		Title:        "Shipping the new release",
		Body:         "<p>It is out. Full notes follow.</p>",
		SourceFormat: domain.FormatHTML,
		Keywords:     []string{"release", "golang"},
	}
}

func (s *PublisherTestSuite) TestAddPlatform_AuthRejectedNotRegistered() {
	bad := newFakeAdapter("wordpress")
	bad.authReject = true

	err := s.publisher.AddPlatform(context.Background(), bad, platform.Credentials{})

	s.Error(err)
	var pe *domain.PublishError
	s.ErrorAs(err, &pe)
	s.Equal(domain.CodeAuth, pe.Code)
	s.Empty(s.publisher.Platforms())
}

func (s *PublisherTestSuite) TestAddPlatform_ReAddKeepsSingleEntry() {
	a := newFakeAdapter("wordpress")
	s.add(a, a)
	s.Equal([]string{"wordpress"}, s.publisher.Platforms())
}

func (s *PublisherTestSuite) TestRemovePlatform() {
	s.add(newFakeAdapter("wordpress"), newFakeAdapter("medium"))

	s.publisher.RemovePlatform("wordpress")
	s.Equal([]string{"medium"}, s.publisher.Platforms())

	s.publisher.RemovePlatform("ghost") // no-op
	s.Equal([]string{"medium"}, s.publisher.Platforms())
}

func (s *PublisherTestSuite) TestPublishToAll_AllSucceed() {
	s.add(newFakeAdapter("wordpress"), newFakeAdapter("medium"))

	report, err := s.publisher.PublishToAll(context.Background(), s.content(), domain.MultiPublishOptions{})

	s.NoError(err)
	s.True(report.Success)
	s.Equal(2, report.SuccessCount)
	s.Equal(0, report.FailureCount)
	s.Len(report.Results, 2)
	s.True(report.Results["wordpress"].Success)
	s.True(report.Results["medium"].Success)
}

func (s *PublisherTestSuite) TestPublishToSelected_PartialFailure() {
	wp := newFakeAdapter("wordpress")
	md := newFakeAdapter("medium")
	li := newFakeAdapter("linkedin")
	li.publishFn = func(context.Context) (*domain.PublishResult, error) {
		return nil, domain.NewPublishError(domain.CodeRateLimit, "linkedin", "quota exhausted")
	}
	s.add(wp, md, li)

	report, err := s.publisher.PublishToSelected(context.Background(), s.content(),
		[]string{"wordpress", "medium", "linkedin"}, domain.MultiPublishOptions{})

	s.NoError(err)
	s.True(report.Success) // partial success still counts without RequireAllSuccess
	s.Equal(2, report.SuccessCount)
	s.Equal(1, report.FailureCount)
	s.Len(report.Results, 3)

	failed := report.Results["linkedin"]
	s.False(failed.Success)
	s.Require().NotNil(failed.Error)
	s.Equal(domain.CodeRateLimit, failed.Error.Code)
	s.True(failed.Error.Retryable())
	s.Contains(report.Errors["linkedin"], "quota exhausted")
}

func (s *PublisherTestSuite) TestPublishToSelected_RequireAllSuccess() {
	wp := newFakeAdapter("wordpress")
	li := newFakeAdapter("linkedin")
	li.publishFn = func(context.Context) (*domain.PublishResult, error) {
		return nil, domain.NewPublishError(domain.CodeRateLimit, "linkedin", "quota exhausted")
	}
	s.add(wp, li)

	report, err := s.publisher.PublishToSelected(context.Background(), s.content(),
		[]string{"wordpress", "linkedin"},
		domain.MultiPublishOptions{RequireAllSuccess: true})

	s.NoError(err)
	s.False(report.Success)
	s.Equal(1, report.SuccessCount)
}

func (s *PublisherTestSuite) TestPublishToSelected_UnknownPlatform() {
	s.add(newFakeAdapter("wordpress"))

	report, err := s.publisher.PublishToSelected(context.Background(), s.content(),
		[]string{"wordpress", "ghost"}, domain.MultiPublishOptions{})

	s.NoError(err)
	s.Len(report.Results, 2)

	unknown := report.Results["ghost"]
	s.False(unknown.Success)
	s.Require().NotNil(unknown.Error)
	s.Equal(domain.CodeValidation, unknown.Error.Code)
}

func (s *PublisherTestSuite) TestPublishToSelected_StopOnFirstFailure() {
	failing := newFakeAdapter("wordpress")
	failing.publishFn = func(context.Context) (*domain.PublishResult, error) {
		return nil, domain.NewPublishError(domain.CodeAuth, "wordpress", "token expired")
	}
	second := newFakeAdapter("medium")
	third := newFakeAdapter("linkedin")
	s.add(failing, second, third)

	report, err := s.publisher.PublishToSelected(context.Background(), s.content(),
		[]string{"wordpress", "medium", "linkedin"},
		domain.MultiPublishOptions{
			StopOnFirstFailure: true,
			MaxConcurrent:      1,
		})

	s.NoError(err)
	s.Len(report.Results, 3)
	s.Equal(domain.CodeAuth, report.Results["wordpress"].Error.Code)
	s.Equal(domain.CodeSkipped, report.Results["medium"].Error.Code)
	s.Equal(domain.CodeSkipped, report.Results["linkedin"].Error.Code)
	s.Empty(second.published)
	s.Empty(third.published)
}

func (s *PublisherTestSuite) TestPublishToSelected_PublishOrderHonored() {
	var mu sync.Mutex
	var order []string
	mk := func(name string) *fakeAdapter {
		a := newFakeAdapter(name)
		a.publishFn = func(context.Context) (*domain.PublishResult, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return &domain.PublishResult{Platform: name, Success: true}, nil
		}
		return a
	}
	s.add(mk("wordpress"), mk("medium"), mk("linkedin"))

	_, err := s.publisher.PublishToSelected(context.Background(), s.content(),
		[]string{"wordpress", "medium", "linkedin"},
		domain.MultiPublishOptions{
			PublishOrder:  []string{"linkedin", "medium"},
			MaxConcurrent: 1,
		})

	s.NoError(err)
	s.Equal([]string{"linkedin", "medium", "wordpress"}, order)
}

func (s *PublisherTestSuite) TestPublishToSelected_AdapterPanicIsolated() {
	panicky := newFakeAdapter("wordpress")
	panicky.publishFn = func(context.Context) (*domain.PublishResult, error) {
		panic("adapter bug")
	}
	s.add(panicky, newFakeAdapter("medium"))

	report, err := s.publisher.PublishToSelected(context.Background(), s.content(),
		[]string{"wordpress", "medium"}, domain.MultiPublishOptions{})

	s.NoError(err)
	s.Len(report.Results, 2)
	s.Equal(domain.CodeInternal, report.Results["wordpress"].Error.Code)
	s.True(report.Results["medium"].Success)
}

func (s *PublisherTestSuite) TestPublishToSelected_FormatFailureIsolated() {
	plainOnly := newFakeAdapter("notebook")
	plainOnly.caps.SupportedFormats = nil // nothing representable
	s.add(plainOnly, newFakeAdapter("medium"))

	report, err := s.publisher.PublishToSelected(context.Background(), s.content(),
		[]string{"notebook", "medium"}, domain.MultiPublishOptions{})

	s.NoError(err)
	s.Equal(domain.CodeUnsupportedContent, report.Results["notebook"].Error.Code)
	s.True(report.Results["medium"].Success)
	s.Empty(plainOnly.published)
}

func (s *PublisherTestSuite) TestUpdateOnPlatforms() {
	s.add(newFakeAdapter("wordpress"), newFakeAdapter("medium"))

	report, err := s.publisher.UpdateOnPlatforms(context.Background(), s.content(),
		map[string]string{"wordpress": "wp-7", "medium": "md-9"},
		domain.MultiPublishOptions{})

	s.NoError(err)
	s.True(report.Success)
	s.Equal("wp-7", report.Results["wordpress"].ExternalID)
	s.Equal("md-9", report.Results["medium"].ExternalID)
}

func (s *PublisherTestSuite) TestDeleteFromPlatforms_PartialFailure() {
	wp := newFakeAdapter("wordpress")
	md := newFakeAdapter("medium")
	md.deleteFn = func(_ context.Context, externalID string) (*domain.PublishResult, error) {
		return nil, domain.NewPublishError(domain.CodeNotFound, "medium", "post is gone")
	}
	s.add(wp, md)

	report, err := s.publisher.DeleteFromPlatforms(context.Background(),
		map[string]string{"wordpress": "wp-7", "medium": "md-9"},
		domain.MultiPublishOptions{})

	s.NoError(err)
	s.Equal(1, report.SuccessCount)
	s.Equal(domain.CodeNotFound, report.Results["medium"].Error.Code)
}

func (s *PublisherTestSuite) TestCheckPlatformHealth_Rollup() {
	healthy := newFakeAdapter("wordpress")
	degraded := newFakeAdapter("medium")
	degraded.health = domain.PlatformHealth{
		Status:   domain.HealthDegraded,
		Warnings: []string{"slow responses"},
	}
	down := newFakeAdapter("linkedin")
	down.health = domain.PlatformHealth{
		Status: domain.HealthUnhealthy,
		Errors: []string{"connection refused"},
	}
	s.add(healthy, degraded, down)

	report := s.publisher.CheckPlatformHealth(context.Background())

	s.Equal(domain.HealthUnhealthy, report.Overall)
	s.Len(report.Platforms, 3)
	s.Require().Len(report.Issues, 2)
	s.Equal(domain.SeverityError, report.Issues[0].Severity)
	s.Equal("linkedin", report.Issues[0].Platform)
	s.Equal(domain.SeverityWarning, report.Issues[1].Severity)
}

func (s *PublisherTestSuite) TestAggregatedAnalytics_GapsNeverAbort() {
	wp := newFakeAdapter("wordpress")
	wp.analytics = &domain.PlatformAnalytics{Views: 100, Engagements: 10, Shares: 5}
	md := newFakeAdapter("medium")
	md.analytics = &domain.PlatformAnalytics{Views: 40, Engagements: 30, Comments: 2}
	broken := newFakeAdapter("linkedin") // analytics call errors
	s.add(wp, md, broken)

	tr := domain.TimeRange{Start: time.Now().AddDate(0, 0, -7), End: time.Now()}
	agg := s.publisher.AggregatedAnalytics(context.Background(),
		[]string{"wordpress", "medium", "linkedin"}, tr)

	s.Equal(int64(140), agg.TotalViews)
	s.Equal(int64(40), agg.TotalEngagements)
	s.Equal(int64(5), agg.TotalShares)
	s.Equal(int64(2), agg.TotalComments)
	s.Equal([]string{"linkedin"}, agg.Gaps)
	s.True(agg.PerPlatform["linkedin"].Estimated)
}

func (s *PublisherTestSuite) TestComparativeAnalytics_Winners() {
	wp := newFakeAdapter("wordpress")
	wp.analytics = &domain.PlatformAnalytics{Views: 100, Engagements: 10}
	md := newFakeAdapter("medium")
	md.analytics = &domain.PlatformAnalytics{Views: 40, Engagements: 30}
	s.add(wp, md)

	tr := domain.TimeRange{Start: time.Now().AddDate(0, 0, -7), End: time.Now()}
	cmp := s.publisher.ComparativeAnalytics(context.Background(), []string{"wordpress", "medium"}, tr)

	s.Equal("wordpress", cmp.Winners["views"])
	s.Equal("medium", cmp.Winners["engagements"])
}
