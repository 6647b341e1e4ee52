// Package i18n picks between the english and arabic variants of content.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Lang supported content language
type Lang string

const (
	EN Lang = "en"
	AR Lang = "ar"
)

var (
	supported = []Lang{EN, AR}
	matcher   = language.NewMatcher([]language.Tag{language.English, language.Arabic})
)

// Parse returns the supported language of s, ok is false when s is not supported
func Parse(s string) (Lang, bool) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return EN, false
	}

	base, _ := tag.Base()
	for _, l := range supported {
		if base.String() == string(l) {
			return l, true
		}
	}

	return EN, false
}

// Negotiate choose a language from an explicit `lang` value first,
// then the Accept-Language header, and falls back to english.
func Negotiate(explicit, acceptLanguage string) Lang {
	if explicit != "" {
		if l, ok := Parse(explicit); ok {
			return l
		}
	}

	if acceptLanguage == "" {
		return EN
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return EN
	}

	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return EN
	}

	return supported[idx]
}

// Pick returns ar when lang is arabic and ar is not empty, en otherwise
func Pick(lang Lang, en, ar string) string {
	if lang == AR && ar != "" {
		return ar
	}

	return en
}
