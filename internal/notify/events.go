package notify

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	EventApplicationAccepted = "application.accepted"
	EventApplicantApplied    = "applicant.applied"
	EventJobPosted           = "job.posted"
	EventJobClosed           = "job.closed"
	EventJobReported         = "job.reported"
	EventUserReported        = "user.reported"
	EventCompanyReported     = "company.reported"
)

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrInvalidEvent = errors.New("invalid event payload")
)

// Event is a domain event published by the rest of the job board.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ApplicationAccepted struct {
	UserId      int    `json:"user_id"`
	CompanyId   int    `json:"company_id"`
	CompanyName string `json:"company_name"`
	JobId       int    `json:"job_id"`
	JobTitle    string `json:"job_title"`
}

func (e ApplicationAccepted) validate() bool {
	return e.UserId > 0 && e.CompanyId > 0 && e.JobId > 0
}

type ApplicantApplied struct {
	CompanyId     int    `json:"company_id"`
	UserId        int    `json:"user_id"`
	ApplicantName string `json:"applicant_name"`
	JobId         int    `json:"job_id"`
	JobTitle      string `json:"job_title"`
}

func (e ApplicantApplied) validate() bool {
	return e.CompanyId > 0 && e.UserId > 0 && e.JobId > 0
}

type JobPosted struct {
	CompanyId int    `json:"company_id"`
	JobId     int    `json:"job_id"`
	JobTitle  string `json:"job_title"`
}

func (e JobPosted) validate() bool {
	return e.CompanyId > 0 && e.JobId > 0
}

type JobClosed struct {
	CompanyId    int    `json:"company_id"`
	JobId        int    `json:"job_id"`
	JobTitle     string `json:"job_title"`
	ApplicantIds []int  `json:"applicant_ids"`
}

func (e JobClosed) validate() bool {
	return e.CompanyId > 0 && e.JobId > 0
}

type JobReported struct {
	CompanyId int    `json:"company_id"`
	JobId     int    `json:"job_id"`
	JobTitle  string `json:"job_title"`
}

func (e JobReported) validate() bool {
	return e.CompanyId > 0 && e.JobId > 0
}

// UserReported is raised when a company reports a job seeker.
type UserReported struct {
	UserId       int    `json:"user_id"`
	CompanyId    int    `json:"company_id"`
	ReporterName string `json:"reporter_name"`
}

func (e UserReported) validate() bool {
	return e.UserId > 0 && e.CompanyId > 0
}

// CompanyReported is raised when a job seeker reports a company.
type CompanyReported struct {
	CompanyId    int    `json:"company_id"`
	UserId       int    `json:"user_id"`
	ReporterName string `json:"reporter_name"`
}

func (e CompanyReported) validate() bool {
	return e.CompanyId > 0 && e.UserId > 0
}

type validator interface {
	validate() bool
}

func decode[T validator](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(ErrInvalidEvent, err.Error())
	}
	if !v.validate() {
		return v, ErrInvalidEvent
	}
	return v, nil
}

// Handle decodes e and runs the matching dispatcher operation.
func (d *Dispatcher) Handle(ctx context.Context, e Event) error {
	switch e.Type {
	case EventApplicationAccepted:
		v, err := decode[ApplicationAccepted](e.Payload)
		if err != nil {
			return err
		}
		return d.ApplicationAccepted(ctx, v)
	case EventApplicantApplied:
		v, err := decode[ApplicantApplied](e.Payload)
		if err != nil {
			return err
		}
		return d.ApplicantApplied(ctx, v)
	case EventJobPosted:
		v, err := decode[JobPosted](e.Payload)
		if err != nil {
			return err
		}
		return d.JobPosted(ctx, v)
	case EventJobClosed:
		v, err := decode[JobClosed](e.Payload)
		if err != nil {
			return err
		}
		return d.JobClosed(ctx, v)
	case EventJobReported:
		v, err := decode[JobReported](e.Payload)
		if err != nil {
			return err
		}
		return d.JobReported(ctx, v)
	case EventUserReported:
		v, err := decode[UserReported](e.Payload)
		if err != nil {
			return err
		}
		return d.UserReported(ctx, v)
	case EventCompanyReported:
		v, err := decode[CompanyReported](e.Payload)
		if err != nil {
			return err
		}
		return d.CompanyReported(ctx, v)
	}

	return errors.Wrap(ErrUnknownEvent, e.Type)
}
