package mail

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/hjr265/postmark.go/postmark"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/log"
)

func TestValidAddress(t *testing.T) {
	email, err := ValidAddress(" Someone@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "someone@example.com", email)

	_, err = ValidAddress("not-an-email")
	require.Error(t, err)
}

func TestPostmarkSend(t *testing.T) {
	p, err := NewPostmark("key", Address{Name: "Agency", Email: "hello@agency.test"}, nil)
	require.NoError(t, err)

	var sent *postmark.Message
	p.send = func(m *postmark.Message) (string, error) {
		sent = m
		return "msg-1", nil
	}

	err = p.Send(context.Background(), &Message{
		To:      []Address{{Name: "A", Email: "a@example.com"}, {Email: "broken"}},
		Subject: "hi",
		HTML:    "<b>hi</b>",
	})
	require.NoError(t, err)
	require.Len(t, sent.To, 1)
	require.Equal(t, "a@example.com", sent.To[0].Address)
	require.Equal(t, "hello@agency.test", sent.From.Address)
	body, err := io.ReadAll(sent.HtmlBody)
	require.NoError(t, err)
	require.Equal(t, "<b>hi</b>", string(body))

	p.send = func(m *postmark.Message) (string, error) {
		return "", errors.New("422")
	}
	require.ErrorContains(t, p.Send(context.Background(), &Message{To: []Address{{Email: "a@example.com"}}}), "422")
	require.ErrorIs(t, p.Send(context.Background(), &Message{To: []Address{{Email: "bad"}}}), ErrNoRecipients)

	_, err = NewPostmark(" ", Address{}, nil)
	require.Error(t, err)
}

func TestSMTPMessage(t *testing.T) {
	s := NewSMTP("smtp.example.com", 587, "u", "p", Address{Name: "Agency", Email: "hello@agency.test"}, nil)
	m, err := s.message(&Message{
		To:      []Address{{Name: "A", Email: "a@example.com"}},
		ReplyTo: &Address{Email: "visitor@example.com"},
		Subject: "hi",
		HTML:    "<b>hi</b>",
		Text:    "hi",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"hi"}, m.GetHeader("Subject"))
	require.Equal(t, []string{"visitor@example.com"}, m.GetHeader("Reply-To"))
	require.Len(t, m.GetHeader("To"), 1)
}

func TestLogSender(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewLog(log.Logger, buf)
	require.NoError(t, l.Send(context.Background(), &Message{
		To:      []Address{{Email: "a@example.com"}},
		Subject: "subject",
		Text:    "body",
	}))
	require.Equal(t, "subject\nbody\n", buf.String())
}

func TestNewFromConfig(t *testing.T) {
	original := gconfig.Shared.GetString("settings.mail.provider")
	t.Cleanup(func() { gconfig.Shared.Set("settings.mail.provider", original) })

	gconfig.Shared.Set("settings.mail.provider", "log")
	s, err := NewFromConfig(nil)
	require.NoError(t, err)
	require.IsType(t, &Log{}, s)

	gconfig.Shared.Set("settings.mail.provider", "smtp")
	s, err = NewFromConfig(nil)
	require.NoError(t, err)
	require.IsType(t, &SMTP{}, s)

	gconfig.Shared.Set("settings.mail.provider", "pigeon")
	_, err = NewFromConfig(nil)
	require.Error(t, err)
}

func TestTemplates(t *testing.T) {
	tpl := NewTemplates("Agency", "https://agency.test/")
	lead := LeadDetails{
		ID:       "lead-1",
		Kind:     "quote",
		Name:     "Sara",
		Email:    "sara@example.com",
		Message:  "We need a new website",
		Services: []string{"web", "seo"},
		Lang:     i18n.AR,
	}

	msg, err := tpl.LeadNotification(lead)
	require.NoError(t, err)
	require.Contains(t, msg.Subject, "quote")
	require.Contains(t, msg.HTML, "https://agency.test/admin/leads/lead-1")
	require.Contains(t, msg.Text, "We need a new website")
	require.Equal(t, "sara@example.com", msg.ReplyTo.Email)

	msg, err = tpl.LeadAcknowledgement(lead)
	require.NoError(t, err)
	require.Contains(t, msg.Subject, "شكرًا")
	require.Equal(t, "sara@example.com", msg.To[0].Email)

	lead.Lang = i18n.EN
	msg, err = tpl.LeadAcknowledgement(lead)
	require.NoError(t, err)
	require.Contains(t, msg.Subject, "Thanks")

	msg, err = tpl.OTP(Address{Name: "Admin", Email: "admin@agency.test"}, "123456", 5*time.Minute)
	require.NoError(t, err)
	require.Contains(t, msg.Text, "Your sign-in code: 123456")
	require.Contains(t, msg.HTML, "Your sign-in code: 123456")
	require.Contains(t, msg.Text, "5 minutes")
	require.Equal(t, "admin@agency.test", msg.To[0].Email)

	msg, err = tpl.CommentReply(Address{Name: "Ali", Email: "ali@example.com"}, "Go tips", "go-tips", "Thanks for reading")
	require.NoError(t, err)
	require.Contains(t, msg.HTML, "https://agency.test/blog/go-tips")
}
