// Package slugify derives url slugs from titles and names.
package slugify

import (
	"regexp"
	"strings"

	gutils "github.com/Laisky/go-utils/v6"
	"github.com/kennygrant/sanitize"

	"github.com/Laisky/agency-site/library"
)

// MaxLength of a derived slug in runes
const MaxLength = 96

var (
	separators = regexp.MustCompile(`[\s./_]+`)
	dashes     = regexp.MustCompile(`-{2,}`)
)

// Make derive an url slug from title. Titles without any latin letter
// or digit, arabic titles for example, get a random slug.
func Make(title string) string {
	if slug := latin(title); slug != "" {
		return slug
	}

	return strings.ToLower(gutils.UUID7())
}

// Readable is Make that keeps non latin names readable, so the same
// name always maps to the same slug.
func Readable(name string) string {
	if slug := latin(name); slug != "" {
		return slug
	}

	slug := separators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(library.Truncate(slug, MaxLength), "-")
}

func latin(s string) string {
	slug := sanitize.Path(sanitize.Accents(strings.ToLower(s)))
	slug = separators.ReplaceAllString(slug, "-")
	slug = dashes.ReplaceAllString(slug, "-")
	return strings.Trim(library.Truncate(slug, MaxLength), "-")
}
