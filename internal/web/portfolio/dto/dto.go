// Package dto request and response shapes of the portfolio API
package dto

import (
	"github.com/Laisky/agency-site/internal/web/portfolio/model"
	"github.com/Laisky/agency-site/library/i18n"
)

// ProjectInput create or replace a project
type ProjectInput struct {
	Slug      string   `json:"slug"`
	Title     string   `json:"title"`
	TitleAr   string   `json:"title_ar"`
	Summary   string   `json:"summary"`
	SummaryAr string   `json:"summary_ar"`
	Client    string   `json:"client"`
	Services  []string `json:"services"`
	Tags      []string `json:"tags"`
	URL       string   `json:"url"`
	CoverURL  string   `json:"cover_url"`
	Featured  bool     `json:"featured"`
	Published bool     `json:"published"`
	Order     int64    `json:"order"`
}

// ProjectCfg public listing
type ProjectCfg struct {
	FeaturedOnly bool
	Service      string
	Language     i18n.Lang
}

// ProjectView a project in one language
type ProjectView struct {
	ID       string    `json:"id"`
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Client   string    `json:"client,omitempty"`
	Services []string  `json:"services"`
	Tags     []string  `json:"tags"`
	URL      string    `json:"url,omitempty"`
	CoverURL string    `json:"cover_url,omitempty"`
	Featured bool      `json:"featured"`
	Language i18n.Lang `json:"language"`
}

// NewProjectView localize p, arabic fields fall back to english
func NewProjectView(p *model.Project, lang i18n.Lang) *ProjectView {
	v := &ProjectView{
		ID:       p.ID,
		Slug:     p.Slug,
		Title:    i18n.Pick(lang, p.Title, p.TitleAr),
		Summary:  i18n.Pick(lang, p.Summary, p.SummaryAr),
		Client:   p.Client,
		Services: p.Services,
		Tags:     p.Tags,
		URL:      p.URL,
		CoverURL: p.CoverURL,
		Featured: p.Featured,
		Language: lang,
	}
	if v.Services == nil {
		v.Services = []string{}
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if lang == "" {
		v.Language = i18n.EN
	}

	return v
}
