package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"time"
)

var ErrUnknownTemplate = errors.New("unknown email template")

const (
	KindAnnounce = "announce"
	KindReminder = "reminder"
	KindFollowup = "followup"
)

// MeetingView carries the values substituted into notification templates.
type MeetingView struct {
	FilmTitle string
	StartsAt  time.Time
	Location  *time.Location
	URL       string
}

func (v MeetingView) local() time.Time {
	if v.Location == nil {
		return v.StartsAt.UTC()
	}
	return v.StartsAt.In(v.Location)
}

func (v MeetingView) Date() string { return v.local().Format("Mon, 2 Jan 2006") }
func (v MeetingView) Time() string { return v.local().Format("15:04") }
func (v MeetingView) Zone() string { return v.local().Format("MST") }

const layout = `<!doctype html><html lang="en"><body style="font-family:Arial,sans-serif;">
{{block "content" .}}{{end}}
{{if .URL}}<p><a href="{{.URL}}" style="background:#000;color:#fff;padding:10px 14px;border-radius:12px;text-decoration:none;">{{block "cta" .}}Open meeting page{{end}}</a></p>{{end}}
</body></html>`

var templates = map[string]*template.Template{
	KindAnnounce: mustTemplate(KindAnnounce, `
{{define "content"}}<h2>🎬 The next film is set!</h2>
<p>{{.FilmTitle}}, {{.Date}} at {{.Time}} ({{.Zone}})</p>
<p>Reply to this e-mail with any questions.</p>{{end}}
{{define "cta"}}Meeting details and RSVP{{end}}`),

	KindReminder: mustTemplate(KindReminder, `
{{define "content"}}<h2>📅 Upcoming meeting reminder</h2>
<p>Remember to watch {{.FilmTitle}}! We meet on {{.Date}} at {{.Time}} ({{.Zone}}).</p>
<p>See you there,<br>The Film Club team</p>{{end}}`),

	KindFollowup: mustTemplate(KindFollowup, `
{{define "content"}}<h2>🙏 Thanks for joining!</h2>
<p>We hope you enjoyed talking about {{.FilmTitle}}. Tell us what you would like to watch next.</p>
<p>See you at the next meeting 🎬</p>{{end}}
{{define "cta"}}Vote for the next film{{end}}`),
}

var subjects = map[string]string{
	KindAnnounce: "📣 Next film: %s",
	KindReminder: "⏰ Meeting reminder: %s",
	KindFollowup: "🙏 Thanks for coming: %s",
}

func mustTemplate(name, body string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(layout)).Parse(body))
}

// Render returns the subject and HTML body for a notification kind.
func Render(kind string, v MeetingView) (subject, html string, err error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", "", fmt.Errorf("render %s email: %w", kind, err)
	}
	return fmt.Sprintf(subjects[kind], v.FilmTitle), buf.String(), nil
}

// HasInvite reports whether e-mails of this kind carry an ICS attachment.
func HasInvite(kind string) bool {
	return kind == KindAnnounce || kind == KindReminder
}
