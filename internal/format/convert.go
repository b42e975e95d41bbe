package format

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/atom"

	nethtml "golang.org/x/net/html"
)

var (
	mdImageRe  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkRe   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdBoldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdItalicRe = regexp.MustCompile(`\*([^*]+)\*`)
	mdCodeRe   = regexp.MustCompile("`([^`]+)`")
	mdHeaderRe = regexp.MustCompile(`(?m)^#{1,6}\s+`)
)

// htmlToPlain extracts readable text from HTML, keeping paragraph breaks.
func htmlToPlain(in string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

// htmlToMarkdown renders HTML as Markdown. Unknown elements degrade to their
// text content, so the result is always representable.
func htmlToMarkdown(in string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	doc.Find("body").Contents().Each(func(_ int, sel *goquery.Selection) {
		renderMarkdownNode(&sb, sel)
	})

	out := strings.TrimSpace(sb.String())
	// Collapse runs of blank lines left by nested blocks.
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return out, nil
}

func renderMarkdownNode(sb *strings.Builder, sel *goquery.Selection) {
	node := sel.Get(0)
	if node.Type == nethtml.TextNode {
		if text := strings.TrimSpace(node.Data); text != "" {
			sb.WriteString(text)
		}
		return
	}

	switch node.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(node.Data[1] - '0')
		sb.WriteString(strings.Repeat("#", level))
		sb.WriteString(" ")
		sb.WriteString(strings.TrimSpace(sel.Text()))
		sb.WriteString("\n\n")
	case atom.P, atom.Div:
		sb.WriteString(inlineMarkdown(sel))
		sb.WriteString("\n\n")
	case atom.Ul, atom.Ol:
		ordered := node.DataAtom == atom.Ol
		sel.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
			if ordered {
				fmt.Fprintf(sb, "%d. %s\n", i+1, inlineMarkdown(li))
			} else {
				fmt.Fprintf(sb, "- %s\n", inlineMarkdown(li))
			}
		})
		sb.WriteString("\n")
	case atom.Blockquote:
		for _, line := range strings.Split(strings.TrimSpace(sel.Text()), "\n") {
			sb.WriteString("> ")
			sb.WriteString(strings.TrimSpace(line))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	case atom.Pre:
		sb.WriteString("```\n")
		sb.WriteString(strings.TrimRight(sel.Text(), "\n"))
		sb.WriteString("\n```\n\n")
	case atom.Img:
		alt := sel.AttrOr("alt", "")
		src := sel.AttrOr("src", "")
		fmt.Fprintf(sb, "![%s](%s)\n\n", alt, src)
	case atom.Br:
		sb.WriteString("\n")
	case atom.Hr:
		sb.WriteString("---\n\n")
	default:
		if text := strings.TrimSpace(inlineMarkdown(sel)); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}
}

// inlineMarkdown renders a selection's children with inline markup only.
func inlineMarkdown(sel *goquery.Selection) string {
	var sb strings.Builder
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Get(0)
		if node.Type == nethtml.TextNode {
			sb.WriteString(node.Data)
			return
		}
		switch node.DataAtom {
		case atom.Strong, atom.B:
			sb.WriteString("**")
			sb.WriteString(child.Text())
			sb.WriteString("**")
		case atom.Em, atom.I:
			sb.WriteString("*")
			sb.WriteString(child.Text())
			sb.WriteString("*")
		case atom.Code:
			sb.WriteString("`")
			sb.WriteString(child.Text())
			sb.WriteString("`")
		case atom.A:
			fmt.Fprintf(&sb, "[%s](%s)", child.Text(), child.AttrOr("href", ""))
		case atom.Img:
			fmt.Fprintf(&sb, "![%s](%s)", child.AttrOr("alt", ""), child.AttrOr("src", ""))
		case atom.Br:
			sb.WriteString("\n")
		default:
			sb.WriteString(inlineMarkdown(child))
		}
	})
	return strings.TrimSpace(sb.String())
}

// markdownToHTML renders Markdown as HTML: headings, lists, fenced code,
// paragraphs, plus inline emphasis, code and links.
func markdownToHTML(in string) string {
	var sb strings.Builder
	lines := strings.Split(in, "\n")

	var para []string
	var list []string
	inFence := false

	flushPara := func() {
		if len(para) > 0 {
			sb.WriteString("<p>")
			sb.WriteString(inlineHTML(strings.Join(para, " ")))
			sb.WriteString("</p>\n")
			para = nil
		}
	}
	flushList := func() {
		if len(list) > 0 {
			sb.WriteString("<ul>\n")
			for _, item := range list {
				sb.WriteString("<li>")
				sb.WriteString(inlineHTML(item))
				sb.WriteString("</li>\n")
			}
			sb.WriteString("</ul>\n")
			list = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				sb.WriteString("</code></pre>\n")
			} else {
				flushPara()
				flushList()
				sb.WriteString("<pre><code>")
			}
			inFence = !inFence
			continue
		}
		if inFence {
			sb.WriteString(html.EscapeString(line))
			sb.WriteString("\n")
			continue
		}

		switch {
		case trimmed == "":
			flushPara()
			flushList()
		case strings.HasPrefix(trimmed, "#"):
			flushPara()
			flushList()
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' && level < 6 {
				level++
			}
			text := strings.TrimSpace(trimmed[level:])
			fmt.Fprintf(&sb, "<h%d>%s</h%d>\n", level, inlineHTML(text), level)
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			flushPara()
			list = append(list, strings.TrimSpace(trimmed[2:]))
		default:
			flushList()
			para = append(para, trimmed)
		}
	}
	flushPara()
	flushList()

	return strings.TrimSpace(sb.String())
}

func inlineHTML(in string) string {
	out := html.EscapeString(in)
	out = mdImageRe.ReplaceAllStringFunc(out, func(string) string { return "" })
	out = mdBoldRe.ReplaceAllString(out, "<strong>$1</strong>")
	out = mdItalicRe.ReplaceAllString(out, "<em>$1</em>")
	out = mdCodeRe.ReplaceAllString(out, "<code>$1</code>")
	out = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`).ReplaceAllString(out, `<a href="$2">$1</a>`)
	return out
}

// markdownToPlain strips Markdown syntax down to readable text.
func markdownToPlain(in string) string {
	out := mdImageRe.ReplaceAllString(in, "")
	out = mdLinkRe.ReplaceAllString(out, "$1")
	out = mdBoldRe.ReplaceAllString(out, "$1")
	out = mdItalicRe.ReplaceAllString(out, "$1")
	out = mdCodeRe.ReplaceAllString(out, "$1")
	out = mdHeaderRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "```", "")
	return strings.TrimSpace(out)
}

// plainToHTML wraps paragraphs in <p> with escaping.
func plainToHTML(in string) string {
	paragraphs := strings.Split(strings.TrimSpace(in), "\n\n")
	var sb strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(p))
		sb.WriteString("</p>\n")
	}
	return strings.TrimSpace(sb.String())
}

// stripHTMLImages removes img elements from an HTML fragment.
func stripHTMLImages(in string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("img").Remove()
	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return strings.TrimSpace(out), nil
}
