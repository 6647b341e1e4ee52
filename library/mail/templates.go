package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/matcornic/hermes/v2"

	"github.com/Laisky/agency-site/library/i18n"
)

const buttonColor = "#1F6FEB"

// Templates renders email bodies with hermes
type Templates struct {
	siteName string
	siteURL  string
}

// NewTemplates create templates for the site
func NewTemplates(siteName, siteURL string) *Templates {
	return &Templates{
		siteName: siteName,
		siteURL:  strings.TrimSuffix(siteURL, "/"),
	}
}

// NewTemplatesFromConfig reads `settings.site.name` and `settings.site.url`
func NewTemplatesFromConfig() *Templates {
	return NewTemplates(
		gconfig.Shared.GetString("settings.site.name"),
		gconfig.Shared.GetString("settings.site.url"),
	)
}

func (t *Templates) hermes(lang i18n.Lang) hermes.Hermes {
	h := hermes.Hermes{
		Product: hermes.Product{
			Name: t.siteName,
			Link: t.siteURL,
		},
	}
	if lang == i18n.AR {
		h.TextDirection = hermes.TDRightToLeft
		h.Product.Copyright = fmt.Sprintf("© %d %s. جميع الحقوق محفوظة.", time.Now().Year(), t.siteName)
		h.Product.TroubleText = "إذا لم يعمل الزر '{ACTION}'، انسخ الرابط التالي والصقه في المتصفح."
	}

	return h
}

func (t *Templates) render(lang i18n.Lang, subject, tag string, email hermes.Email) (*Message, error) {
	h := t.hermes(lang)
	htmlBody, err := h.GenerateHTML(email)
	if err != nil {
		return nil, errors.Wrapf(err, "render html `%s`", tag)
	}

	text, err := h.GeneratePlainText(email)
	if err != nil {
		return nil, errors.Wrapf(err, "render text `%s`", tag)
	}

	return &Message{
		Subject: subject,
		HTML:    htmlBody,
		Text:    text,
		Tag:     tag,
	}, nil
}

func (t *Templates) link(path string) string {
	return t.siteURL + "/" + strings.TrimPrefix(path, "/")
}

// LeadDetails is the visitor submitted contact or quote form
type LeadDetails struct {
	ID       string
	Kind     string
	Name     string
	Email    string
	Phone    string
	Company  string
	Message  string
	Services []string
	Budget   string
	Timeline string
	Lang     i18n.Lang
}

// LeadNotification mails the team about a new lead
func (t *Templates) LeadNotification(lead LeadDetails) (*Message, error) {
	rows := []hermes.Entry{
		{Key: "Kind", Value: lead.Kind},
		{Key: "Name", Value: lead.Name},
		{Key: "Email", Value: lead.Email},
		{Key: "Language", Value: string(lead.Lang)},
	}
	for _, opt := range []hermes.Entry{
		{Key: "Phone", Value: lead.Phone},
		{Key: "Company", Value: lead.Company},
		{Key: "Services", Value: strings.Join(lead.Services, ", ")},
		{Key: "Budget", Value: lead.Budget},
		{Key: "Timeline", Value: lead.Timeline},
	} {
		if opt.Value != "" {
			rows = append(rows, opt)
		}
	}

	email := hermes.Email{
		Body: hermes.Body{
			Title:      fmt.Sprintf("New %s request from %s", lead.Kind, lead.Name),
			Dictionary: rows,
			Intros:     []string{lead.Message},
			Actions: []hermes.Action{{
				Instructions: "Open the lead in the dashboard:",
				Button: hermes.Button{
					Color: buttonColor,
					Text:  "View lead",
					Link:  t.link("/admin/leads/" + lead.ID),
				},
			}},
			Signature: "Regards",
		},
	}

	msg, err := t.render(i18n.EN, fmt.Sprintf("[%s] new %s: %s", t.siteName, lead.Kind, lead.Name), "lead-notification", email)
	if err != nil {
		return nil, err
	}

	msg.ReplyTo = &Address{Name: lead.Name, Email: lead.Email}
	return msg, nil
}

// LeadAcknowledgement thanks the visitor in their language
func (t *Templates) LeadAcknowledgement(lead LeadDetails) (*Message, error) {
	var (
		subject string
		email   hermes.Email
	)
	switch lead.Lang {
	case i18n.AR:
		subject = fmt.Sprintf("شكرًا لتواصلك مع %s", t.siteName)
		email = hermes.Email{Body: hermes.Body{
			Greeting:  "مرحبًا",
			Name:      lead.Name,
			Intros:    []string{"لقد استلمنا طلبك وسيتواصل معك أحد أعضاء فريقنا خلال يوم عمل واحد."},
			Outros:    []string{"إذا كانت لديك أي تفاصيل إضافية، يمكنك الرد مباشرة على هذه الرسالة."},
			Signature: "مع التحية",
		}}
	default:
		subject = fmt.Sprintf("Thanks for contacting %s", t.siteName)
		email = hermes.Email{Body: hermes.Body{
			Name:      lead.Name,
			Intros:    []string{"We received your request and someone from our team will get back to you within one business day."},
			Outros:    []string{"If you have more details to share, just reply to this email."},
			Signature: "Regards",
		}}
	}

	msg, err := t.render(lead.Lang, subject, "lead-ack", email)
	if err != nil {
		return nil, err
	}

	msg.To = []Address{{Name: lead.Name, Email: lead.Email}}
	return msg, nil
}

// OTP mails a one time login code
func (t *Templates) OTP(to Address, code string, ttl time.Duration) (*Message, error) {
	email := hermes.Email{Body: hermes.Body{
		Name: to.Name,
		Intros: []string{
			"Use the code below to finish signing in to the dashboard.",
			fmt.Sprintf("Your sign-in code: %s", code),
			fmt.Sprintf("The code expires in %d minutes.", int(ttl.Minutes())),
		},
		Outros:    []string{"If you did not try to sign in, change your password now."},
		Signature: "Regards",
	}}

	msg, err := t.render(i18n.EN, fmt.Sprintf("%s sign-in code", t.siteName), "otp", email)
	if err != nil {
		return nil, err
	}

	msg.To = []Address{to}
	return msg, nil
}

// CommentReply tells a commenter the team replied to them
func (t *Templates) CommentReply(to Address, postTitle, postSlug, reply string) (*Message, error) {
	email := hermes.Email{Body: hermes.Body{
		Name:   to.Name,
		Intros: []string{fmt.Sprintf("We replied to your comment on \"%s\":", postTitle), reply},
		Actions: []hermes.Action{{
			Instructions: "Read the conversation:",
			Button: hermes.Button{
				Color: buttonColor,
				Text:  "Open the post",
				Link:  t.link("/blog/" + postSlug),
			},
		}},
		Signature: "Regards",
	}}

	msg, err := t.render(i18n.EN, fmt.Sprintf("New reply on %s", postTitle), "comment-reply", email)
	if err != nil {
		return nil, err
	}

	msg.To = []Address{to}
	return msg, nil
}
