// Package service stores contact and quote requests and notifies the team.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/leads/dto"
	"github.com/Laisky/agency-site/internal/web/leads/model"
	"github.com/Laisky/agency-site/library"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/db/redis"
	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/mail"
	"github.com/Laisky/agency-site/library/metrics"
)

// Catalog knows the services a quote may ask for
type Catalog interface {
	HasService(id string) bool
}

// Limiter allows at most limit events per key in window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Outbox hands new leads to downstream consumers such as a CRM sync
type Outbox interface {
	PushOutbox(ctx context.Context, key string, payload any) error
}

// Clock returns the current time
type Clock func() time.Time

// Leads service
type Leads struct {
	logger  logSDK.Logger
	db      docstore.Store
	catalog Catalog
	limiter Limiter
	perHour int
	outbox  Outbox
	mailer  mail.Sender
	tpl     *mail.Templates
	admins  []mail.Address
	feed    events.Feed
	clock   Clock
}

// Option configures Leads
type Option func(*Leads)

// WithLimiter limit submissions per client ip, perHour <= 0 uses the default
func WithLimiter(limiter Limiter, perHour int) Option {
	return func(s *Leads) {
		s.limiter = limiter
		if perHour > 0 {
			s.perHour = perHour
		}
	}
}

// WithOutbox push every stored lead to outbox
func WithOutbox(outbox Outbox) Option {
	return func(s *Leads) { s.outbox = outbox }
}

// WithMailer mail admins and acknowledge the visitor
func WithMailer(sender mail.Sender, tpl *mail.Templates, admins []mail.Address) Option {
	return func(s *Leads) {
		s.mailer = sender
		s.tpl = tpl
		s.admins = admins
	}
}

// WithFeed raise dashboard notifications
func WithFeed(feed events.Feed) Option {
	return func(s *Leads) { s.feed = feed }
}

// WithClock override time source
func WithClock(clock Clock) Option {
	return func(s *Leads) { s.clock = clock }
}

// PerHourFromConfig reads `settings.leads.rate_limit.per_hour`
func PerHourFromConfig() int {
	return gconfig.Shared.GetInt("settings.leads.rate_limit.per_hour")
}

// New create leads service
func New(logger logSDK.Logger, db docstore.Store, catalog Catalog, opts ...Option) *Leads {
	if logger == nil {
		logger = log.Logger.Named("leads_service")
	}

	s := &Leads{
		logger:  logger,
		db:      db,
		catalog: catalog,
		perHour: defaultPerHour,
		feed:    events.Nop{},
		clock:   gutils.Clock.GetUTCNow,
	}
	for _, f := range opts {
		f(s)
	}

	return s
}

// Submit validate and store a lead, then notify. Mail and outbox failures
// are logged, the stored lead is never rolled back for them.
func (s *Leads) Submit(ctx context.Context, kind model.Kind, in *dto.LeadInput, client dto.Client) (*model.Lead, error) {
	logger := webutil.RequestLogger(ctx, s.logger)
	if s.limiter != nil && client.IP != "" {
		ok, err := s.limiter.Allow(ctx, "leads/"+client.IP, s.perHour, time.Hour)
		if err != nil {
			// a broken limiter must not drop leads
			logger.Warn("lead rate limiter", zap.Error(err))
		} else if !ok {
			return nil, apperr.RateLimited("too many requests from `%s`", client.IP)
		}
	}

	lead, err := s.buildLead(kind, in, client)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	lead.ID = gutils.UUID7()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if err = s.db.Create(ctx, model.CollLeads, lead.ID, lead); err != nil {
		return nil, errors.Wrap(err, "create lead")
	}

	metrics.LeadsSubmitted.WithLabelValues(string(kind)).Inc()
	logger.Info("lead stored", zap.String("lead", lead.ID), zap.String("kind", string(kind)))

	s.sendMails(ctx, logger, lead)
	if s.outbox != nil {
		if err := s.outbox.PushOutbox(ctx, redis.KeyLeadOutbox, lead); err != nil {
			logger.Warn("push lead to outbox", zap.String("lead", lead.ID), zap.Error(err))
		}
	}

	s.feed.Notify(ctx, "lead",
		fmt.Sprintf("New %s request from %s", kind, lead.Name),
		library.Truncate(lead.Message, 140),
		"/admin/leads/"+lead.ID)
	s.feed.Record(ctx, events.Actor{Name: lead.Name}, "lead.create", "lead", lead.ID)
	return lead, nil
}

func (s *Leads) sendMails(ctx context.Context, logger logSDK.Logger, lead *model.Lead) {
	if s.mailer == nil || s.tpl == nil {
		return
	}

	details := mail.LeadDetails{
		ID:       lead.ID,
		Kind:     string(lead.Kind),
		Name:     lead.Name,
		Email:    lead.Email,
		Phone:    lead.Phone,
		Company:  lead.Company,
		Message:  lead.Message,
		Services: lead.Services,
		Budget:   lead.Budget,
		Timeline: lead.Timeline,
		Lang:     lead.Language,
	}

	var msgs []*mail.Message
	if len(s.admins) != 0 {
		msg, err := s.tpl.LeadNotification(details)
		if err != nil {
			logger.Error("render lead notification", zap.Error(err))
		} else {
			msg.To = s.admins
			msgs = append(msgs, msg)
		}
	}
	if msg, err := s.tpl.LeadAcknowledgement(details); err != nil {
		logger.Error("render lead acknowledgement", zap.Error(err))
	} else {
		msgs = append(msgs, msg)
	}

	for _, msg := range msgs {
		err := s.mailer.Send(ctx, msg)
		metrics.RecordMail(msg.Tag, err)
		if err != nil {
			logger.Error("send lead mail",
				zap.String("lead", lead.ID),
				zap.String("tag", msg.Tag),
				zap.Error(err))
		}
	}
}

// Receipt localized confirmation for the visitor
func Receipt(lead *model.Lead) *dto.Receipt {
	return &dto.Receipt{
		ID: lead.ID,
		Message: i18n.Pick(lead.Language,
			"Thanks, we received your request and will reply within one business day.",
			"شكرًا لك، لقد استلمنا طلبك وسنرد عليك خلال يوم عمل واحد."),
	}
}

// List leads newest first
func (s *Leads) List(ctx context.Context, cfg *dto.LeadCfg) (*dto.LeadList, error) {
	page, size, err := sanitizePagination(cfg.Page, cfg.Size)
	if err != nil {
		return nil, err
	}

	q := docstore.NewQuery(model.CollLeads)
	if cfg.Status != "" {
		if !cfg.Status.Valid() {
			return nil, apperr.Validation("unknown status `%s`", cfg.Status)
		}
		q = q.Where("status", docstore.OpEq, string(cfg.Status))
	}
	if cfg.Kind != "" {
		if !cfg.Kind.Valid() {
			return nil, apperr.Validation("unknown kind `%s`", cfg.Kind)
		}
		q = q.Where("kind", docstore.OpEq, string(cfg.Kind))
	}

	result := &dto.LeadList{Page: page, Size: size, Items: []*model.Lead{}}
	if result.Total, err = s.db.Count(ctx, q); err != nil {
		return nil, errors.Wrap(err, "count leads")
	}
	if err = s.db.Find(ctx, q.OrderBy("created_at", docstore.Desc).Page(page, size), &result.Items); err != nil {
		return nil, errors.Wrap(err, "find leads")
	}

	return result, nil
}

// Get load lead by id
func (s *Leads) Get(ctx context.Context, id string) (*model.Lead, error) {
	lead := new(model.Lead)
	if err := s.db.Get(ctx, model.CollLeads, id, lead); err != nil {
		return nil, errors.Wrapf(err, "get lead `%s`", id)
	}

	return lead, nil
}

// UpdateStatus move a lead in the pipeline, note replaces the stored note when given
func (s *Leads) UpdateStatus(ctx context.Context, actor events.Actor, id string, in *dto.StatusInput) (*model.Lead, error) {
	if !in.Status.Valid() {
		return nil, apperr.Validation("unknown status `%s`", in.Status)
	}
	note, err := cleanText(in.Note, maxMessageLen, "note", false)
	if err != nil {
		return nil, err
	}

	lead, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lead.Status = in.Status
	lead.UpdatedAt = s.clock()
	updates := []docstore.Update{
		docstore.Set("status", string(in.Status)),
		docstore.Set("updated_at", lead.UpdatedAt),
	}
	if note != "" {
		lead.Note = note
		updates = append(updates, docstore.Set("note", note))
	}
	if err = s.db.Update(ctx, model.CollLeads, id, updates...); err != nil {
		return nil, errors.Wrapf(err, "update lead `%s`", id)
	}

	s.feed.Record(ctx, actor, "lead."+string(in.Status), "lead", id)
	return lead, nil
}

// Delete remove a lead
func (s *Leads) Delete(ctx context.Context, actor events.Actor, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, model.CollLeads, id); err != nil {
		return errors.Wrapf(err, "delete lead `%s`", id)
	}

	s.feed.Record(ctx, actor, "lead.delete", "lead", id)
	return nil
}
