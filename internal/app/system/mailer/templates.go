// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// NoticeData is the content of an allocation notification.
type NoticeData struct {
	SiteName  string
	Recipient string
	Heading   string
	Lines     []string
	Feedback  string
	LinkURL   string
	LinkLabel string
}

// BuildNotice renders a notification with both text and HTML bodies.
func BuildNotice(data NoticeData) Email {
	return Email{
		Subject:  fmt.Sprintf("[%s] %s", data.SiteName, data.Heading),
		TextBody: buildNoticeText(data),
		HTMLBody: buildNoticeHTML(data),
	}
}

func buildNoticeText(data NoticeData) string {
	var b strings.Builder
	if data.Recipient != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", data.Recipient)
	}
	b.WriteString(data.Heading + "\n\n")
	for _, l := range data.Lines {
		b.WriteString(l + "\n")
	}
	if data.Feedback != "" {
		fmt.Fprintf(&b, "\nFeedback:\n%s\n", data.Feedback)
	}
	if data.LinkURL != "" {
		fmt.Fprintf(&b, "\n%s: %s\n", data.LinkLabel, data.LinkURL)
	}
	fmt.Fprintf(&b, "\n-- %s\n", data.SiteName)
	return b.String()
}

var noticeTmpl = template.Must(template.New("notice").Parse(noticeHTMLTemplate))

func buildNoticeHTML(data NoticeData) string {
	var buf bytes.Buffer
	_ = noticeTmpl.Execute(&buf, data)
	return buf.String()
}

const noticeHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Heading}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 32px 16px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 520px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 24px 32px; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 20px; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; color: #374151; font-size: 15px; line-height: 1.5;">
              {{if .Recipient}}<p style="margin: 0 0 16px;">Hello {{.Recipient}},</p>{{end}}
              <p style="margin: 0 0 16px; font-weight: 600;">{{.Heading}}</p>
              {{range .Lines}}<p style="margin: 0 0 8px;">{{.}}</p>{{end}}
              {{if .Feedback}}<blockquote style="margin: 16px 0; padding: 12px 16px; background: #f9fafb; border-left: 3px solid #4f46e5;">{{.Feedback}}</blockquote>{{end}}
              {{if .LinkURL}}<p style="margin: 24px 0 0;"><a href="{{.LinkURL}}" style="color: #4f46e5;">{{.LinkLabel}}</a></p>{{end}}
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
