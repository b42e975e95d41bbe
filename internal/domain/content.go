package domain

import "time"

// ContentFormat identifies a content markup encoding.
type ContentFormat string

const (
	FormatHTML      ContentFormat = "html"
	FormatMarkdown  ContentFormat = "markdown"
	FormatRichText  ContentFormat = "richtext"
	FormatPlainText ContentFormat = "plaintext"
)

// SEO carries the search-engine metadata attached to a piece of content.
type SEO struct {
	MetaTitle       string `json:"meta_title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`
	FocusKeyword    string `json:"focus_keyword,omitempty"`
	CanonicalURL    string `json:"canonical_url,omitempty"`
}

// Content is the canonical content object produced by the content-generation
// collaborator. Everything downstream (formatting, publishing, scheduling)
// consumes this shape.
type Content struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Body             string        `json:"body"`
	SourceFormat     ContentFormat `json:"source_format"`
	Excerpt          string        `json:"excerpt,omitempty"`
	Keywords         []string      `json:"keywords,omitempty"`
	Author           string        `json:"author,omitempty"`
	FeaturedImageURL string        `json:"featured_image_url,omitempty"`
	SEO              SEO           `json:"seo"`
	PublishedAt      time.Time     `json:"published_at"`
	Status           string        `json:"status,omitempty"`
}

// PlatformCapabilities declares a platform's limits and features. Immutable
// per adapter instance; the formatter queries it before adapting content.
type PlatformCapabilities struct {
	MaxContentLength     int
	MaxTitleLength       int
	MaxDescriptionLength int
	// SupportedFormats is ordered by fidelity, best first.
	SupportedFormats   []ContentFormat
	SupportsMedia      bool
	SupportsScheduling bool
	SupportsAnalytics  bool
	MaxTags            int
	MaxCategories      int
}

// SupportsFormat reports whether f is in the declared format list.
func (c PlatformCapabilities) SupportsFormat(f ContentFormat) bool {
	for _, s := range c.SupportedFormats {
		if s == f {
			return true
		}
	}
	return false
}

// ModificationImpact grades how lossy an adaptation step was.
type ModificationImpact string

const (
	ImpactLow    ModificationImpact = "low"
	ImpactMedium ModificationImpact = "medium"
	ImpactHigh   ModificationImpact = "high"
)

// Modification records one change the formatter made to fit a platform.
type Modification struct {
	Field       string             `json:"field"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Impact      ModificationImpact `json:"impact"`
}

// FormattedContent is the platform-fitted representation of one Content for
// one target. It lives only for the duration of a publish attempt.
type FormattedContent struct {
	Platform         string         `json:"platform"`
	Title            string         `json:"title"`
	Body             string         `json:"body"`
	Format           ContentFormat  `json:"format"`
	Excerpt          string         `json:"excerpt,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	SEO              SEO            `json:"seo"`
	FeaturedImageURL string         `json:"featured_image_url,omitempty"`
	AdaptedWordCount int            `json:"adapted_word_count"`
	AdaptationScore  float64        `json:"adaptation_score"`
	Modifications    []Modification `json:"modifications,omitempty"`
	Warnings         []string       `json:"warnings,omitempty"`
	Suggestions      []string       `json:"suggestions,omitempty"`
}

// AdaptationRules is an operator override applied to a single platform before
// the general formatting rules, so one platform can be special-cased without
// forking the algorithm.
type AdaptationRules struct {
	ForceFormat      ContentFormat `yaml:"force_format" json:"force_format,omitempty"`
	MaxContentLength int           `yaml:"max_content_length" json:"max_content_length,omitempty"`
	StripImages      bool          `yaml:"strip_images" json:"strip_images,omitempty"`
	ExtraTags        []string      `yaml:"extra_tags" json:"extra_tags,omitempty"`
}
