package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	keyMessageReceivedTitle     = "message_received.title"
	keyMessageReceivedBody      = "message_received.body"
	keyFileReceivedBody         = "file_received.body"
	keyApplicationAcceptedTitle = "application_accepted.title"
	keyApplicationAcceptedBody  = "application_accepted.body"
	keyApplicantAppliedTitle    = "applicant_applied.title"
	keyApplicantAppliedBody     = "applicant_applied.body"
	keyJobPostedTitle           = "job_posted.title"
	keyJobPostedBody            = "job_posted.body"
	keyJobClosedTitle           = "job_closed.title"
	keyJobClosedCompanyBody     = "job_closed.company_body"
	keyJobClosedApplicantBody   = "job_closed.applicant_body"
	keyJobReportedTitle         = "job_reported.title"
	keyJobReportedBody          = "job_reported.body"
	keyUserReportedTitle        = "user_reported.title"
	keyUserReportedBody         = "user_reported.body"
	keyCompanyReportedTitle     = "company_reported.title"
	keyCompanyReportedBody      = "company_reported.body"
)

var translations = map[string][2]string{
	keyMessageReceivedTitle:     {"New message from %s", "Neue Nachricht von %s"},
	keyMessageReceivedBody:      {"%s", "%s"},
	keyFileReceivedBody:         {"%s sent you a file", "%s hat Ihnen eine Datei gesendet"},
	keyApplicationAcceptedTitle: {"Application accepted", "Bewerbung angenommen"},
	keyApplicationAcceptedBody:  {"%s accepted your application for %s", "%s hat Ihre Bewerbung für %s angenommen"},
	keyApplicantAppliedTitle:    {"New applicant", "Neuer Bewerber"},
	keyApplicantAppliedBody:     {"%s applied for %s", "%s hat sich auf %s beworben"},
	keyJobPostedTitle:           {"Job posted", "Stelle veröffentlicht"},
	keyJobPostedBody:            {"Your job %s is now live", "Ihre Stelle %s ist jetzt online"},
	keyJobClosedTitle:           {"Job closed", "Stelle geschlossen"},
	keyJobClosedCompanyBody:     {"Your job %s has been closed", "Ihre Stelle %s wurde geschlossen"},
	keyJobClosedApplicantBody:   {"The job %s you applied for has been closed", "Die Stelle %s, auf die Sie sich beworben haben, wurde geschlossen"},
	keyJobReportedTitle:         {"Job reported", "Stelle gemeldet"},
	keyJobReportedBody:          {"Your job %s has been reported", "Ihre Stelle %s wurde gemeldet"},
	keyUserReportedTitle:        {"Profile reported", "Profil gemeldet"},
	keyUserReportedBody:         {"Your profile has been reported by %s", "Ihr Profil wurde von %s gemeldet"},
	keyCompanyReportedTitle:     {"Company reported", "Unternehmen gemeldet"},
	keyCompanyReportedBody:      {"Your company has been reported by %s", "Ihr Unternehmen wurde von %s gemeldet"},
}

type localizer struct {
	en *message.Printer
	de *message.Printer
}

func newLocalizer() *localizer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, t := range translations {
		b.SetString(language.English, key, t[0])
		b.SetString(language.German, key, t[1])
	}

	return &localizer{
		en: message.NewPrinter(language.English, message.Catalog(b)),
		de: message.NewPrinter(language.German, message.Catalog(b)),
	}
}

// render returns the English and German text for key.
func (l *localizer) render(key string, args ...any) (string, string) {
	return l.en.Sprintf(key, args...), l.de.Sprintf(key, args...)
}
