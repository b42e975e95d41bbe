package publisher

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"crosspost/internal/domain"
)

// Formatter adapts canonical content to one platform's capabilities.
type Formatter interface {
	Format(content *domain.Content, platformName string, caps domain.PlatformCapabilities, rules *domain.AdaptationRules) (*domain.FormattedContent, error)
}
