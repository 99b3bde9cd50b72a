package types

import "time"

// NotificationCase tags the domain event a notification represents.
type NotificationCase string

const (
	CaseMessageReceived     NotificationCase = "Message Received"
	CaseApplicationAccepted NotificationCase = "Application Accepted"
	CaseJobClosed           NotificationCase = "Job Closed"
	CaseUserReported        NotificationCase = "User Reported"
	CaseApplicantApplied    NotificationCase = "Applicant Applied"
	CaseCompanyReported     NotificationCase = "Company Reported"
	CaseJobReported         NotificationCase = "Job Reported"
	CaseJobPosted           NotificationCase = "Job Posted"
)

var caseVocabulary = map[AccountKind][]NotificationCase{
	AccountJobSeeker: {
		CaseMessageReceived,
		CaseApplicationAccepted,
		CaseJobClosed,
		CaseUserReported,
	},
	AccountCompany: {
		CaseMessageReceived,
		CaseApplicantApplied,
		CaseCompanyReported,
		CaseJobReported,
		CaseJobPosted,
		CaseJobClosed,
	},
}

func (c NotificationCase) ValidFor(kind AccountKind) bool {
	for _, v := range caseVocabulary[kind] {
		if v == c {
			return true
		}
	}
	return false
}

// Configurable reports whether recipients can opt out of the case.
// Reports against an account are always delivered.
func (c NotificationCase) Configurable() bool {
	return c != CaseUserReported && c != CaseCompanyReported
}

type SubjectType string

const (
	SubjectCompany SubjectType = "Company"
	SubjectChat    SubjectType = "Chat"
	SubjectUser    SubjectType = "User"
	SubjectJob     SubjectType = "Job"
)

// NotificationSettings holds per-case opt-outs. A missing case is enabled.
type NotificationSettings map[NotificationCase]bool

func (s NotificationSettings) Enabled(c NotificationCase) bool {
	if !c.Configurable() {
		return true
	}
	v, ok := s[c]
	return !ok || v
}

func DefaultSettings(kind AccountKind) NotificationSettings {
	s := make(NotificationSettings)
	for _, c := range caseVocabulary[kind] {
		if c.Configurable() {
			s[c] = true
		}
	}
	return s
}

type Notification struct {
	Id          int              `json:"id"`
	OwnerId     int              `json:"owner"`
	OwnerKind   AccountKind      `json:"owner_type"`
	Case        NotificationCase `json:"case"`
	Title       string           `json:"title"`
	TitleDe     string           `json:"title_de"`
	Body        string           `json:"body"`
	BodyDe      string           `json:"body_de"`
	SubjectId   string           `json:"subject,omitempty"`
	SubjectType SubjectType      `json:"subject_type,omitempty"`
	ActorId     *int             `json:"actor,omitempty"`
	HasBeenRead bool             `json:"has_been_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Count         int            `json:"count"`
	HasNextPage   bool           `json:"has_next_page"`
	NextCursor    *int           `json:"next_page_cursor,omitempty"`
	Unread        int            `json:"unread_notifications"`
}
