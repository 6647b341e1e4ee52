// Package mail sends transactional email through postmark or smtp.
package mail

import (
	"context"
	"html"
	"io"
	netmail "net/mail"
	"strings"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/goware/emailx"
	"github.com/hjr265/postmark.go/postmark"
	gomail "gopkg.in/gomail.v2"

	"github.com/Laisky/agency-site/library/log"
)

// Provider names accepted by `settings.mail.provider`
const (
	ProviderPostmark = "postmark"
	ProviderSMTP     = "smtp"
	ProviderLog      = "log"
)

// ErrNoRecipients message has no valid recipient
var ErrNoRecipients = errors.New("no valid recipients")

// Address of a sender or recipient
type Address struct {
	Name  string
	Email string
}

func (a Address) mailAddress() *netmail.Address {
	return &netmail.Address{Name: a.Name, Address: a.Email}
}

// Message is one email
type Message struct {
	To      []Address
	ReplyTo *Address
	Subject string
	HTML    string
	Text    string
	Tag     string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// ValidAddress normalizes email and checks its format
func ValidAddress(email string) (string, error) {
	email = emailx.Normalize(email)
	if err := emailx.ValidateFast(email); err != nil {
		return "", errors.Wrapf(err, "invalid email `%s`", email)
	}

	return email, nil
}

// recipients drops malformed addresses
func recipients(logger logSDK.Logger, to []Address) []Address {
	valid := make([]Address, 0, len(to))
	for _, a := range to {
		email, err := ValidAddress(a.Email)
		if err != nil {
			logger.Warn("skip recipient", zap.String("email", a.Email), zap.Error(err))
			continue
		}

		valid = append(valid, Address{Name: a.Name, Email: email})
	}

	return valid
}

// Postmark sends through the postmark API
type Postmark struct {
	from   Address
	logger logSDK.Logger
	send   func(*postmark.Message) (string, error)
}

// NewPostmark create postmark sender
func NewPostmark(apiKey string, from Address, logger logSDK.Logger) (*Postmark, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("postmark api key is empty")
	}
	if logger == nil {
		logger = log.Logger.Named("mail_postmark")
	}

	cli := &postmark.Client{
		ApiKey: apiKey,
		Secure: true,
	}

	return &Postmark{
		from:   from,
		logger: logger,
		send: func(m *postmark.Message) (string, error) {
			res, err := cli.Send(m)
			if err != nil {
				return "", err
			}
			return res.MessageID, nil
		},
	}, nil
}

func (p *Postmark) message(msg *Message) (*postmark.Message, error) {
	to := recipients(p.logger, msg.To)
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	pm := &postmark.Message{
		From:    p.from.mailAddress(),
		Subject: msg.Subject,
	}
	for _, a := range to {
		pm.To = append(pm.To, a.mailAddress())
	}

	body := msg.HTML
	if body == "" {
		body = "<pre>" + html.EscapeString(msg.Text) + "</pre>"
	}
	pm.HtmlBody = strings.NewReader(body)

	return pm, nil
}

// Send implements Sender
func (p *Postmark) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pm, err := p.message(msg)
	if err != nil {
		return err
	}

	id, err := p.send(pm)
	if err != nil {
		return errors.Wrapf(err, "postmark send `%s`", msg.Subject)
	}

	p.logger.Info("mail sent",
		zap.String("provider", ProviderPostmark),
		zap.String("message_id", id),
		zap.String("tag", msg.Tag))
	return nil
}

// SMTP sends through an smtp relay
type SMTP struct {
	from   Address
	logger logSDK.Logger
	dialer *gomail.Dialer
}

// NewSMTP create smtp sender
func NewSMTP(host string, port int, user, pwd string, from Address, logger logSDK.Logger) *SMTP {
	if logger == nil {
		logger = log.Logger.Named("mail_smtp")
	}

	return &SMTP{
		from:   from,
		logger: logger,
		dialer: gomail.NewDialer(host, port, user, pwd),
	}
}

func (s *SMTP) message(msg *Message) (*gomail.Message, error) {
	to := recipients(s.logger, msg.To)
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from.Email, s.from.Name)
	addrs := make([]string, 0, len(to))
	for _, a := range to {
		addrs = append(addrs, m.FormatAddress(a.Email, a.Name))
	}
	m.SetHeader("To", addrs...)
	if msg.ReplyTo != nil {
		m.SetAddressHeader("Reply-To", msg.ReplyTo.Email, msg.ReplyTo.Name)
	}
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	return m, nil
}

// Send implements Sender
func (s *SMTP) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.message(msg)
	if err != nil {
		return err
	}

	if err = s.dialer.DialAndSend(m); err != nil {
		return errors.Wrapf(err, "smtp send `%s`", msg.Subject)
	}

	s.logger.Info("mail sent", zap.String("provider", ProviderSMTP), zap.String("tag", msg.Tag))
	return nil
}

// Log only writes messages to the logger, for local runs
type Log struct {
	logger logSDK.Logger
	out    io.Writer
}

// NewLog create log sender, out may be nil
func NewLog(logger logSDK.Logger, out io.Writer) *Log {
	if logger == nil {
		logger = log.Logger.Named("mail_log")
	}

	return &Log{logger: logger, out: out}
}

// Send implements Sender
func (l *Log) Send(_ context.Context, msg *Message) error {
	to := recipients(l.logger, msg.To)
	if len(to) == 0 {
		return ErrNoRecipients
	}

	emails := make([]string, 0, len(to))
	for _, a := range to {
		emails = append(emails, a.Email)
	}

	l.logger.Info("mail discarded",
		zap.Strings("to", emails),
		zap.String("subject", msg.Subject),
		zap.String("tag", msg.Tag))
	if l.out != nil {
		if _, err := io.WriteString(l.out, msg.Subject+"\n"+msg.Text+"\n"); err != nil {
			return errors.Wrap(err, "write mail")
		}
	}

	return nil
}

// NewFromConfig build the sender named by `settings.mail.provider`
func NewFromConfig(logger logSDK.Logger) (Sender, error) {
	if logger == nil {
		logger = log.Logger.Named("mail")
	}

	from := FromConfig()
	switch provider := gconfig.Shared.GetString("settings.mail.provider"); provider {
	case ProviderPostmark:
		return NewPostmark(gconfig.Shared.GetString("settings.mail.postmark.api_key"), from, logger)
	case ProviderSMTP:
		port := gconfig.Shared.GetInt("settings.mail.smtp.port")
		if port == 0 {
			port = 587
		}
		return NewSMTP(
			gconfig.Shared.GetString("settings.mail.smtp.host"),
			port,
			gconfig.Shared.GetString("settings.mail.smtp.user"),
			gconfig.Shared.GetString("settings.mail.smtp.pwd"),
			from, logger,
		), nil
	case ProviderLog, "":
		return NewLog(logger, nil), nil
	default:
		return nil, errors.Errorf("unknown mail provider `%s`", provider)
	}
}

// FromConfig returns the configured sender address
func FromConfig() Address {
	return Address{
		Name:  gconfig.Shared.GetString("settings.mail.from_name"),
		Email: gconfig.Shared.GetString("settings.mail.from"),
	}
}

// AdminRecipients returns `settings.mail.admin_recipients`
func AdminRecipients() []Address {
	var to []Address
	for _, email := range gconfig.Shared.GetStringSlice("settings.mail.admin_recipients") {
		to = append(to, Address{Email: email})
	}

	return to
}
