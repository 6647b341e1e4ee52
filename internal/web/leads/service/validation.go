package service

import (
	"html"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Laisky/agency-site/internal/web/leads/dto"
	"github.com/Laisky/agency-site/internal/web/leads/model"
	"github.com/Laisky/agency-site/library"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/mail"
)

const (
	maxNameLen     = 100
	maxCompanyLen  = 100
	maxPhoneLen    = 32
	maxMessageLen  = 5000
	maxServices    = 20
	maxPageSize    = 100
	defaultPerHour = 5
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	phoneRegexp  = regexp.MustCompile(`^\+?[0-9 ()\-.]{5,}$`)
)

// cleanText drops markup, trims and bounds input to maxLen runes
func cleanText(input string, maxLen int, field string, required bool) (string, error) {
	if strings.ContainsRune(input, '\x00') {
		return "", apperr.Validation("%s contains invalid null byte", field)
	}

	text := strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(input)))
	switch {
	case text == "" && required:
		return "", apperr.Validation("%s is required", field)
	case utf8.RuneCountInString(text) > maxLen:
		return "", apperr.Validation("%s too long, max %d characters", field, maxLen)
	}

	return text, nil
}

// buildLead validates the form of kind into a new lead without id or timestamps
func (s *Leads) buildLead(kind model.Kind, in *dto.LeadInput, client dto.Client) (*model.Lead, error) {
	if !kind.Valid() {
		return nil, apperr.Validation("unknown lead kind `%s`", kind)
	}

	lead := &model.Lead{
		Kind:      kind,
		Status:    model.StatusNew,
		Services:  []string{},
		IP:        client.IP,
		UserAgent: library.Truncate(client.UserAgent, 256),
	}

	var err error
	if lead.Name, err = cleanText(in.Name, maxNameLen, "name", true); err != nil {
		return nil, err
	}
	if lead.Email, err = mail.ValidAddress(in.Email); err != nil {
		return nil, apperr.Validation("invalid email: %v", err)
	}
	if lead.Company, err = cleanText(in.Company, maxCompanyLen, "company", false); err != nil {
		return nil, err
	}
	if lead.Phone = strings.TrimSpace(in.Phone); lead.Phone != "" {
		if len(lead.Phone) > maxPhoneLen || !phoneRegexp.MatchString(lead.Phone) {
			return nil, apperr.Validation("invalid phone number")
		}
	}
	if lead.Message, err = cleanText(in.Message, maxMessageLen, "message", kind == model.KindContact); err != nil {
		return nil, err
	}

	lead.Language = client.Lang
	if in.Language != "" {
		lang, ok := i18n.Parse(in.Language)
		if !ok {
			return nil, apperr.Validation("unsupported language `%s`", in.Language)
		}
		lead.Language = lang
	}
	if lead.Language == "" {
		lead.Language = i18n.EN
	}

	if kind == model.KindQuote {
		if err = s.quoteFields(lead, in); err != nil {
			return nil, err
		}
	}

	return lead, nil
}

func (s *Leads) quoteFields(lead *model.Lead, in *dto.LeadInput) error {
	if len(in.Services) == 0 {
		return apperr.Validation("choose at least one service")
	}
	if len(in.Services) > maxServices {
		return apperr.Validation("too many services, max %d", maxServices)
	}
	for _, id := range in.Services {
		id = strings.ToLower(strings.TrimSpace(id))
		if !s.catalog.HasService(id) {
			return apperr.Validation("unknown service `%s`", id)
		}
		if !slices.Contains(lead.Services, id) {
			lead.Services = append(lead.Services, id)
		}
	}

	if !slices.Contains(model.Budgets, in.Budget) {
		return apperr.Validation("budget must be one of %s", strings.Join(model.Budgets, ", "))
	}
	if !slices.Contains(model.Timelines, in.Timeline) {
		return apperr.Validation("timeline must be one of %s", strings.Join(model.Timelines, ", "))
	}
	lead.Budget = in.Budget
	lead.Timeline = in.Timeline
	return nil
}

func sanitizePagination(page, size int) (int, int, error) {
	if page < 0 {
		return 0, 0, apperr.Validation("page must not be negative")
	}
	switch {
	case size == 0:
		size = 20
	case size < 0 || size > maxPageSize:
		return 0, 0, apperr.Validation("size must be between 1 and %d", maxPageSize)
	}

	return page, size, nil
}
