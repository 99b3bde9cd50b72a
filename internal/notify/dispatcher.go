package notify

import (
	"context"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/stats"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const previewLength = 100

// Publisher pushes created notifications to live connections.
type Publisher interface {
	Publish(n types.Notification)
}

type Dispatcher struct {
	log   *logrus.Logger
	db    database.JobBoardRepository
	pub   Publisher
	stats stats.StatsProvider
	text  *localizer
}

func NewDispatcher(logger *logrus.Logger, db database.JobBoardRepository, pub Publisher, su stats.StatsProvider) *Dispatcher {
	su.RegisterMetric(stats.NotificationsCreated)

	return &Dispatcher{
		log:   logger,
		db:    db,
		pub:   pub,
		stats: su,
		text:  newLocalizer(),
	}
}

// MessageReceived notifies the counterpart of the message owner. At most one
// unread chat notification exists per conversation and recipient.
func (d *Dispatcher) MessageReceived(ctx context.Context, conv types.Conversation, msg types.Message) error {
	recipient := msg.OwnerKind.Counterpart()
	if recipient == "" {
		return errors.Errorf("message owner kind %q has no counterpart", msg.OwnerKind)
	}

	sender, err := d.senderName(ctx, conv, msg)
	if err != nil {
		return err
	}

	n := d.build(types.CaseMessageReceived, recipient, conv.PartyId(recipient),
		keyMessageReceivedTitle, []any{sender})
	if msg.Kind == types.MessageFile {
		n.Body, n.BodyDe = d.text.render(keyFileReceivedBody, sender)
	} else {
		n.Body, n.BodyDe = d.text.render(keyMessageReceivedBody, preview(msg.Text))
	}
	n.SubjectId = conv.ExternalId
	n.SubjectType = types.SubjectChat
	n.ActorId = intPtr(msg.Owner)

	return d.notifyOne(ctx, n, true)
}

func (d *Dispatcher) senderName(ctx context.Context, conv types.Conversation, msg types.Message) (string, error) {
	switch {
	case msg.OwnerKind == types.AccountJobSeeker && conv.User != nil:
		return conv.User.DisplayName, nil
	case msg.OwnerKind == types.AccountCompany && conv.Company != nil:
		return conv.Company.DisplayName, nil
	}

	account, err := d.db.GetAccount(ctx, msg.OwnerKind, msg.Owner)
	if err != nil {
		return "", errors.Wrap(err, "resolve sender")
	}
	return account.DisplayName, nil
}

func (d *Dispatcher) ApplicationAccepted(ctx context.Context, e ApplicationAccepted) error {
	n := d.build(types.CaseApplicationAccepted, types.AccountJobSeeker, e.UserId,
		keyApplicationAcceptedTitle, nil)
	n.Body, n.BodyDe = d.text.render(keyApplicationAcceptedBody, e.CompanyName, e.JobTitle)
	n.SubjectId = strconv.Itoa(e.JobId)
	n.SubjectType = types.SubjectJob
	n.ActorId = intPtr(e.CompanyId)

	return d.notifyOne(ctx, n, false)
}

func (d *Dispatcher) ApplicantApplied(ctx context.Context, e ApplicantApplied) error {
	n := d.build(types.CaseApplicantApplied, types.AccountCompany, e.CompanyId,
		keyApplicantAppliedTitle, nil)
	n.Body, n.BodyDe = d.text.render(keyApplicantAppliedBody, e.ApplicantName, e.JobTitle)
	n.SubjectId = strconv.Itoa(e.UserId)
	n.SubjectType = types.SubjectUser
	n.ActorId = intPtr(e.UserId)

	return d.notifyOne(ctx, n, false)
}

func (d *Dispatcher) JobPosted(ctx context.Context, e JobPosted) error {
	n := d.build(types.CaseJobPosted, types.AccountCompany, e.CompanyId, keyJobPostedTitle, nil)
	n.Body, n.BodyDe = d.text.render(keyJobPostedBody, e.JobTitle)
	n.SubjectId = strconv.Itoa(e.JobId)
	n.SubjectType = types.SubjectJob

	return d.notifyOne(ctx, n, false)
}

// JobClosed notifies the company and every applicant whose setting is
// enabled. Applicant records are written as one batch.
func (d *Dispatcher) JobClosed(ctx context.Context, e JobClosed) error {
	var batch []database.NewNotification

	company, err := d.enabled(ctx, types.AccountCompany, e.CompanyId, types.CaseJobClosed)
	if err != nil {
		return err
	}
	if company {
		n := d.build(types.CaseJobClosed, types.AccountCompany, e.CompanyId, keyJobClosedTitle, nil)
		n.Body, n.BodyDe = d.text.render(keyJobClosedCompanyBody, e.JobTitle)
		n.SubjectId = strconv.Itoa(e.JobId)
		n.SubjectType = types.SubjectJob
		batch = append(batch, n)
	}

	if len(e.ApplicantIds) > 0 {
		ids, err := d.db.FilterEnabledRecipients(ctx, types.AccountJobSeeker, e.ApplicantIds, types.CaseJobClosed)
		if err != nil {
			return errors.Wrap(err, "filter job closed recipients")
		}

		for _, id := range ids {
			n := d.build(types.CaseJobClosed, types.AccountJobSeeker, id, keyJobClosedTitle, nil)
			n.Body, n.BodyDe = d.text.render(keyJobClosedApplicantBody, e.JobTitle)
			n.SubjectId = strconv.Itoa(e.JobId)
			n.SubjectType = types.SubjectJob
			n.ActorId = intPtr(e.CompanyId)
			batch = append(batch, n)
		}
	}

	if len(batch) == 0 {
		d.log.WithField("job_id", e.JobId).Debug("job closed: no enabled recipients")
		return nil
	}

	created, err := d.db.AppendNotifications(ctx, batch)
	if err != nil {
		return errors.Wrap(err, "append job closed notifications")
	}
	d.published(created...)

	return nil
}

func (d *Dispatcher) JobReported(ctx context.Context, e JobReported) error {
	n := d.build(types.CaseJobReported, types.AccountCompany, e.CompanyId, keyJobReportedTitle, nil)
	n.Body, n.BodyDe = d.text.render(keyJobReportedBody, e.JobTitle)
	n.SubjectId = strconv.Itoa(e.JobId)
	n.SubjectType = types.SubjectJob

	return d.notifyOne(ctx, n, false)
}

// UserReported tells a job seeker that a company reported them. Reports are
// always delivered.
func (d *Dispatcher) UserReported(ctx context.Context, e UserReported) error {
	n := d.build(types.CaseUserReported, types.AccountJobSeeker, e.UserId, keyUserReportedTitle, nil)
	n.Body, n.BodyDe = d.text.render(keyUserReportedBody, e.ReporterName)
	n.SubjectId = strconv.Itoa(e.CompanyId)
	n.SubjectType = types.SubjectCompany
	n.ActorId = intPtr(e.CompanyId)

	return d.notifyOne(ctx, n, false)
}

func (d *Dispatcher) CompanyReported(ctx context.Context, e CompanyReported) error {
	n := d.build(types.CaseCompanyReported, types.AccountCompany, e.CompanyId, keyCompanyReportedTitle, nil)
	n.Body, n.BodyDe = d.text.render(keyCompanyReportedBody, e.ReporterName)
	n.SubjectId = strconv.Itoa(e.UserId)
	n.SubjectType = types.SubjectUser
	n.ActorId = intPtr(e.UserId)

	return d.notifyOne(ctx, n, false)
}

func (d *Dispatcher) build(c types.NotificationCase, kind types.AccountKind, ownerId int, titleKey string, titleArgs []any) database.NewNotification {
	n := database.NewNotification{
		OwnerId:   ownerId,
		OwnerKind: kind,
		Case:      c,
		CreatedAt: time.Now().UTC(),
	}
	n.Title, n.TitleDe = d.text.render(titleKey, titleArgs...)
	return n
}

func (d *Dispatcher) enabled(ctx context.Context, kind types.AccountKind, id int, c types.NotificationCase) (bool, error) {
	if !c.Configurable() {
		return true, nil
	}

	settings, err := d.db.GetNotificationSettings(ctx, kind, id)
	if err != nil {
		return false, errors.Wrap(err, "load notification settings")
	}
	return settings.Enabled(c), nil
}

// notifyOne appends a single record when the owner has the case enabled.
func (d *Dispatcher) notifyOne(ctx context.Context, n database.NewNotification, suppress bool) error {
	logger := d.log.WithFields(logrus.Fields{
		"owner_id":   n.OwnerId,
		"owner_kind": n.OwnerKind,
		"case":       n.Case,
	})

	ok, err := d.enabled(ctx, n.OwnerKind, n.OwnerId, n.Case)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("notification disabled by recipient")
		return nil
	}

	record, created, err := d.db.AppendNotification(ctx, n, suppress)
	if err != nil {
		return errors.Wrap(err, "append notification")
	}
	if !created {
		logger.Debug("notification suppressed")
		return nil
	}

	d.published(record)
	return nil
}

func (d *Dispatcher) published(records ...types.Notification) {
	d.stats.Add(stats.NotificationsCreated, len(records))
	if d.pub == nil {
		return
	}
	for _, n := range records {
		d.pub.Publish(n)
	}
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	r := []rune(text)
	return string(r[:previewLength]) + "…"
}

func intPtr(v int) *int {
	return &v
}
