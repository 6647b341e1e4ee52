package site

import (
	"sort"
	"strings"

	gconfig "github.com/Laisky/go-config/v2"

	"github.com/Laisky/agency-site/library/i18n"
)

// Service the agency sells
type Service struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NameAr    string `json:"-"`
	Summary   string `json:"summary,omitempty"`
	SummaryAr string `json:"-"`
	Icon      string `json:"icon,omitempty"`
	Order     int    `json:"order"`
}

// Plan is one pricing tier
type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	NameAr      string   `json:"-"`
	Price       string   `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	Period      string   `json:"period,omitempty"`
	Features    []string `json:"features"`
	FeaturesAr  []string `json:"-"`
	Highlighted bool     `json:"highlighted"`
	Order       int      `json:"order"`
}

// Catalog of services and pricing plans, read once from configuration
type Catalog struct {
	services []Service
	plans    []Plan
}

// NewCatalog sorts services and plans by order, then id
func NewCatalog(services []Service, plans []Plan) *Catalog {
	sort.SliceStable(services, func(i, j int) bool {
		if services[i].Order != services[j].Order {
			return services[i].Order < services[j].Order
		}
		return services[i].ID < services[j].ID
	})
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Order != plans[j].Order {
			return plans[i].Order < plans[j].Order
		}
		return plans[i].ID < plans[j].ID
	})

	return &Catalog{services: services, plans: plans}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CatalogFromConfig reads `settings.site.services.<id>` and `settings.site.pricing.<id>`
func CatalogFromConfig() *Catalog {
	var services []Service
	for _, id := range sortedKeys(gconfig.Shared.GetStringMap("settings.site.services")) {
		key := "settings.site.services." + id
		services = append(services, Service{
			ID:        strings.ToLower(id),
			Name:      gconfig.Shared.GetString(key + ".name"),
			NameAr:    gconfig.Shared.GetString(key + ".name_ar"),
			Summary:   gconfig.Shared.GetString(key + ".summary"),
			SummaryAr: gconfig.Shared.GetString(key + ".summary_ar"),
			Icon:      gconfig.Shared.GetString(key + ".icon"),
			Order:     gconfig.Shared.GetInt(key + ".order"),
		})
	}

	var plans []Plan
	for _, id := range sortedKeys(gconfig.Shared.GetStringMap("settings.site.pricing")) {
		key := "settings.site.pricing." + id
		plans = append(plans, Plan{
			ID:          strings.ToLower(id),
			Name:        gconfig.Shared.GetString(key + ".name"),
			NameAr:      gconfig.Shared.GetString(key + ".name_ar"),
			Price:       gconfig.Shared.GetString(key + ".price"),
			Currency:    gconfig.Shared.GetString(key + ".currency"),
			Period:      gconfig.Shared.GetString(key + ".period"),
			Features:    gconfig.Shared.GetStringSlice(key + ".features"),
			FeaturesAr:  gconfig.Shared.GetStringSlice(key + ".features_ar"),
			Highlighted: gconfig.Shared.GetBool(key + ".highlighted"),
			Order:       gconfig.Shared.GetInt(key + ".order"),
		})
	}

	return NewCatalog(services, plans)
}

// HasService reports whether id is a known service
func (c *Catalog) HasService(id string) bool {
	for _, s := range c.services {
		if s.ID == id {
			return true
		}
	}

	return false
}

// Services localized to lang, arabic falls back to english per field
func (c *Catalog) Services(lang i18n.Lang) []Service {
	out := make([]Service, 0, len(c.services))
	for _, s := range c.services {
		s.Name = i18n.Pick(lang, s.Name, s.NameAr)
		s.Summary = i18n.Pick(lang, s.Summary, s.SummaryAr)
		out = append(out, s)
	}

	return out
}

// Plans localized to lang
func (c *Catalog) Plans(lang i18n.Lang) []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if lang == i18n.AR {
			p.Name = i18n.Pick(lang, p.Name, p.NameAr)
			if len(p.FeaturesAr) != 0 {
				p.Features = p.FeaturesAr
			}
		}
		if p.Features == nil {
			p.Features = []string{}
		}
		out = append(out, p)
	}

	return out
}
