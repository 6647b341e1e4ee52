package service

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Laisky/agency-site/library"
)

const excerptLength = 200

var (
	titleRegexp     = regexp.MustCompile(`<(h[23])[^>]{0,}>([^<]+)</\w+>`)
	titleMenuRegexp = regexp.MustCompile(`<(h[23]) *id="([^"]*)">([^<]+)</\w+>`) // extract menu
	validHTMLID     = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

	contentPolicy = newContentPolicy()
	// textPolicy strips every tag, used for comments and excerpts
	textPolicy = bluemonday.StrictPolicy()
)

func newContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")
	return p
}

// ParseMarkdown2HTML render markdown into sanitized html, h2/h3 headers get
// an anchor id usable by ExtractMenu.
func ParseMarkdown2HTML(md []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})

	cnt := string(markdown.ToHTML(md, p, renderer))
	cnt = titleRegexp.ReplaceAllStringFunc(cnt, func(tag string) string {
		m := titleRegexp.FindStringSubmatch(tag)
		return `<` + m[1] + ` id="` + convertTitleID(m[2]) + `">` + m[2] + `</` + m[1] + `>`
	})

	return contentPolicy.Sanitize(cnt)
}

// convertTitleID convert title to valid html id
//
// https://www.w3.org/TR/REC-html40/types.html#:~:text=ID%20and%20NAME%20tokens%20must,periods%20(%22.%22).
func convertTitleID(title string) string {
	return "header-" + validHTMLID.ReplaceAllString(url.QueryEscape(html.UnescapeString(title)), "")
}

// ExtractMenu build a nested list of links to the h2/h3 headers of html
func ExtractMenu(cnt string) string {
	matches := titleMenuRegexp.FindAllStringSubmatch(cnt, -1)
	if len(matches) == 0 {
		return ""
	}

	var (
		sb       strings.Builder
		inLevel3 bool
	)
	sb.WriteString(`<nav class="post-menu"><ul>`)
	for i, ts := range matches {
		level, id, title := strings.ToLower(ts[1]), ts[2], ts[3]
		switch {
		case level == "h3" && !inLevel3 && i > 0:
			sb.WriteString(`<ul>`)
			inLevel3 = true
		case level == "h2" && inLevel3:
			sb.WriteString(`</li></ul></li>`)
			inLevel3 = false
		case i > 0:
			sb.WriteString(`</li>`)
		}

		sb.WriteString(`<li><a href="#` + id + `">` + title + `</a>`)
	}

	if inLevel3 {
		sb.WriteString(`</li></ul>`)
	}
	sb.WriteString(`</li></ul></nav>`)
	return sb.String()
}

// Excerpt plain text summary of rendered html
func Excerpt(rendered string) string {
	text := strings.Join(strings.Fields(StripTags(rendered)), " ")
	if short := library.Truncate(text, excerptLength); short != text {
		return strings.TrimSpace(short) + "…"
	}

	return text
}

// StripTags drops all markup and returns plain text
func StripTags(s string) string {
	return html.UnescapeString(textPolicy.Sanitize(s))
}
