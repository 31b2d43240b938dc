/*
PURPOSE:
  Email construction for assignment events. Plain-text body plus a
  minimal HTML alternative built from a shared template, so senders can
  offer both parts. Kept separate from the dispatcher so the copy can
  be reviewed in one place.
*/
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/salonhub/assist-engine/assign"
)

// =============================================================================
// EMAIL
// =============================================================================

// Email is a ready-to-send message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// EventEmailData feeds the event email template.
type EventEmailData struct {
	To       string
	Subject  string
	Greeting string
	Message  string
}

var eventHTMLTmpl = template.Must(template.New("event").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <p>Hi {{.Greeting}},</p>
  {{range .Paragraphs}}<p>{{.}}</p>
  {{end}}<p>— The salon scheduling system</p>
</body>
</html>`))

// BuildEventEmail renders the text and HTML bodies for an event message.
func BuildEventEmail(data EventEmailData) Email {
	greeting := data.Greeting
	if greeting == "" {
		greeting = "there"
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n%s\n\n— The salon scheduling system\n", greeting, data.Message)

	var html bytes.Buffer
	_ = eventHTMLTmpl.Execute(&html, struct {
		Greeting   string
		Paragraphs []string
	}{
		Greeting:   greeting,
		Paragraphs: strings.Split(data.Message, "\n\n"),
	})

	return Email{
		To:       data.To,
		Subject:  data.Subject,
		TextBody: text.String(),
		HTMLBody: html.String(),
	}
}

// =============================================================================
// DETAILS BLOCK
// =============================================================================

// Details renders the shared request summary appended to every message.
func Details(ev assign.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\n", ev.Request.ClientName)
	if ev.Service != nil {
		fmt.Fprintf(&b, "Service: %s (%d min)\n", ev.Service.Name, ev.Service.DurationMinutes)
	}
	fmt.Fprintf(&b, "Date: %s\n", ev.Request.Date.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Time: %s - %s", ev.Request.Start, ev.Request.End)
	if ev.Request.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", ev.Request.Notes)
	}
	return b.String()
}
