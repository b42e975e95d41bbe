// Package format adapts canonical content to one platform's declared
// capabilities and scores the fidelity of that adaptation.
package format

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"crosspost/internal/domain"
)

// Score weights: each lossy operation and the truncated share of the body
// pull the adaptation score down from 1.
const (
	structuralLossWeight = 0.15
	lengthLossWeight     = 0.5
)

// formatPreference orders target formats by fidelity for each source format.
var formatPreference = map[domain.ContentFormat][]domain.ContentFormat{
	domain.FormatHTML:      {domain.FormatHTML, domain.FormatRichText, domain.FormatMarkdown, domain.FormatPlainText},
	domain.FormatRichText:  {domain.FormatRichText, domain.FormatHTML, domain.FormatMarkdown, domain.FormatPlainText},
	domain.FormatMarkdown:  {domain.FormatMarkdown, domain.FormatHTML, domain.FormatRichText, domain.FormatPlainText},
	domain.FormatPlainText: {domain.FormatPlainText, domain.FormatMarkdown, domain.FormatHTML, domain.FormatRichText},
}

// Formatter reshapes content deterministically; it performs no network I/O.
type Formatter struct{}

// New creates a Formatter.
func New() *Formatter {
	return &Formatter{}
}

// Format adapts content for one platform. Content that merely needs
// adaptation never errors; only a content/capability mismatch with no
// representable format does.
func (f *Formatter) Format(content *domain.Content, platformName string, caps domain.PlatformCapabilities, rules *domain.AdaptationRules) (*domain.FormattedContent, error) {
	out := &domain.FormattedContent{
		Platform:         platformName,
		SEO:              content.SEO,
		FeaturedImageURL: content.FeaturedImageURL,
	}

	maxContent := caps.MaxContentLength
	if rules != nil && rules.MaxContentLength > 0 && (maxContent == 0 || rules.MaxContentLength < maxContent) {
		maxContent = rules.MaxContentLength
	}

	target, err := f.targetFormat(content.SourceFormat, caps, rules)
	if err != nil {
		return nil, err
	}
	out.Format = target

	body, err := f.convertBody(content.Body, content.SourceFormat, target, out)
	if err != nil {
		return nil, err
	}

	if rules != nil && rules.StripImages {
		body, err = f.stripImages(body, target)
		if err != nil {
			return nil, err
		}
		out.Modifications = append(out.Modifications, domain.Modification{
			Field:       "body",
			Type:        "images_stripped",
			Description: "platform rules exclude inline images",
			Impact:      domain.ImpactMedium,
		})
	}

	truncationRatio := 0.0
	if maxContent > 0 && len(body) > maxContent {
		truncated := truncateAtBoundary(body, maxContent)
		truncationRatio = float64(len(body)-len(truncated)) / float64(len(body))
		out.Modifications = append(out.Modifications, domain.Modification{
			Field: "body",
			Type:  "truncation",
			Description: fmt.Sprintf("body truncated from %d to %d characters to fit platform limit",
				len(body), len(truncated)),
			Impact: domain.ImpactHigh,
		})
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("content exceeds the %d character limit; %d%% was removed",
				maxContent, int(truncationRatio*100)))
		body = truncated
	}
	out.Body = body
	out.AdaptedWordCount = len(strings.Fields(body))

	out.Title = f.fitTitle(content, caps, out)
	out.Excerpt = f.fitExcerpt(content, body, target, caps, out)
	out.Tags = f.selectTags(content.Keywords, caps, rules, out)

	out.AdaptationScore = f.score(out.Modifications, truncationRatio)
	if out.AdaptationScore < 0.7 {
		out.Suggestions = append(out.Suggestions,
			fmt.Sprintf("consider authoring shorter %s-native content for %s", target, platformName))
	}

	return out, nil
}

// targetFormat picks the highest-fidelity format both sides support.
func (f *Formatter) targetFormat(source domain.ContentFormat, caps domain.PlatformCapabilities, rules *domain.AdaptationRules) (domain.ContentFormat, error) {
	if rules != nil && rules.ForceFormat != "" {
		if !caps.SupportsFormat(rules.ForceFormat) {
			return "", domain.NewPublishError(domain.CodeUnsupportedContent, "",
				fmt.Sprintf("forced format %q is not supported by the platform", rules.ForceFormat))
		}
		return rules.ForceFormat, nil
	}

	prefs, ok := formatPreference[source]
	if !ok {
		return "", domain.NewPublishError(domain.CodeUnsupportedContent, "",
			fmt.Sprintf("unknown source format %q", source))
	}

	for _, candidate := range prefs {
		if caps.SupportsFormat(candidate) {
			return candidate, nil
		}
	}

	return "", domain.NewPublishError(domain.CodeUnsupportedContent, "",
		fmt.Sprintf("no supported format can represent %s content", source))
}

func (f *Formatter) convertBody(body string, source, target domain.ContentFormat, out *domain.FormattedContent) (string, error) {
	// Rich text is carried as HTML internally.
	src := source
	if src == domain.FormatRichText {
		src = domain.FormatHTML
	}
	dst := target
	if dst == domain.FormatRichText {
		dst = domain.FormatHTML
	}

	if src == dst {
		return body, nil
	}

	var converted string
	var err error
	switch {
	case src == domain.FormatHTML && dst == domain.FormatMarkdown:
		converted, err = htmlToMarkdown(body)
	case src == domain.FormatHTML && dst == domain.FormatPlainText:
		converted, err = htmlToPlain(body)
	case src == domain.FormatMarkdown && dst == domain.FormatHTML:
		converted = markdownToHTML(body)
	case src == domain.FormatMarkdown && dst == domain.FormatPlainText:
		converted = markdownToPlain(body)
	case src == domain.FormatPlainText && dst == domain.FormatHTML:
		converted = plainToHTML(body)
	case src == domain.FormatPlainText && dst == domain.FormatMarkdown:
		converted = body
	default:
		return "", domain.NewPublishError(domain.CodeUnsupportedContent, "",
			fmt.Sprintf("no conversion from %s to %s", source, target))
	}
	if err != nil {
		return "", err
	}

	impact := domain.ImpactMedium
	if dst == domain.FormatPlainText {
		impact = domain.ImpactHigh
	}
	out.Modifications = append(out.Modifications, domain.Modification{
		Field:       "body",
		Type:        "format_conversion",
		Description: fmt.Sprintf("converted body from %s to %s", source, target),
		Impact:      impact,
	})

	return converted, nil
}

func (f *Formatter) stripImages(body string, target domain.ContentFormat) (string, error) {
	switch target {
	case domain.FormatHTML, domain.FormatRichText:
		return stripHTMLImages(body)
	case domain.FormatMarkdown:
		return strings.TrimSpace(mdImageRe.ReplaceAllString(body, "")), nil
	default:
		return body, nil
	}
}

func (f *Formatter) fitTitle(content *domain.Content, caps domain.PlatformCapabilities, out *domain.FormattedContent) string {
	title := content.Title
	if title == "" {
		title = content.SEO.MetaTitle
	}

	if caps.MaxTitleLength > 0 && len(title) > caps.MaxTitleLength {
		title = trimAtWord(title, caps.MaxTitleLength)
		out.Modifications = append(out.Modifications, domain.Modification{
			Field:       "title",
			Type:        "title_trim",
			Description: fmt.Sprintf("title shortened to fit %d characters", caps.MaxTitleLength),
			Impact:      domain.ImpactMedium,
		})
	}
	return title
}

func (f *Formatter) fitExcerpt(content *domain.Content, body string, target domain.ContentFormat, caps domain.PlatformCapabilities, out *domain.FormattedContent) string {
	excerpt := content.Excerpt
	derived := false
	if excerpt == "" {
		plain := body
		switch target {
		case domain.FormatHTML, domain.FormatRichText:
			if p, err := htmlToPlain(body); err == nil {
				plain = p
			}
		case domain.FormatMarkdown:
			plain = markdownToPlain(body)
		}
		excerpt = firstSentences(plain, 2)
		derived = true
	}

	if caps.MaxDescriptionLength > 0 && len(excerpt) > caps.MaxDescriptionLength {
		excerpt = trimAtWord(excerpt, caps.MaxDescriptionLength)
		if !derived {
			out.Modifications = append(out.Modifications, domain.Modification{
				Field:       "excerpt",
				Type:        "excerpt_trim",
				Description: fmt.Sprintf("excerpt shortened to fit %d characters", caps.MaxDescriptionLength),
				Impact:      domain.ImpactLow,
			})
		}
	}
	return excerpt
}

// selectTags keeps keywords in declared relevance order up to the platform
// limit.
func (f *Formatter) selectTags(keywords []string, caps domain.PlatformCapabilities, rules *domain.AdaptationRules, out *domain.FormattedContent) []string {
	tags := make([]string, 0, len(keywords))
	tags = append(tags, keywords...)
	if rules != nil {
		tags = append(tags, rules.ExtraTags...)
	}

	if caps.MaxTags > 0 && len(tags) > caps.MaxTags {
		out.Modifications = append(out.Modifications, domain.Modification{
			Field:       "tags",
			Type:        "tags_limited",
			Description: fmt.Sprintf("kept %d of %d tags", caps.MaxTags, len(tags)),
			Impact:      domain.ImpactLow,
		})
		tags = tags[:caps.MaxTags]
	}
	return tags
}

func (f *Formatter) score(mods []domain.Modification, truncationRatio float64) float64 {
	lossyOps := 0
	for _, m := range mods {
		if m.Impact != domain.ImpactLow {
			lossyOps++
		}
	}

	score := 1 - structuralLossWeight*float64(lossyOps) - lengthLossWeight*truncationRatio
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// truncateAtBoundary cuts s to at most max bytes at the nearest paragraph,
// then sentence, then word boundary. It never splits a word and keeps the
// opening of the text.
func truncateAtBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}

	cut := safeSlice(s, max)

	if idx := strings.LastIndex(cut, "\n\n"); idx > max/2 {
		return strings.TrimSpace(cut[:idx])
	}

	sentenceEnd := -1
	for _, sep := range []string{". ", ".\n", "! ", "? "} {
		if idx := strings.LastIndex(cut, sep); idx > sentenceEnd {
			sentenceEnd = idx
		}
	}
	if sentenceEnd > max/4 {
		return strings.TrimSpace(cut[:sentenceEnd+1])
	}

	if idx := strings.LastIndexAny(cut, " \n\t"); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}

	// Single giant token; a hard cut is all that is left.
	return cut
}

// trimAtWord shortens s to max bytes at a word boundary, with an ellipsis
// when something was removed.
func trimAtWord(s string, max int) string {
	if len(s) <= max {
		return s
	}

	cut := safeSlice(s, max-3)
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}

// safeSlice cuts at a rune boundary at or before n bytes.
func safeSlice(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// firstSentences returns up to n leading sentences of plain text.
func firstSentences(s string, n int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == '!' || s[i] == '?' {
			count++
			if count == n {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}
	return s
}
