package notifications

import (
	"bytes"
	"html/template"
	"time"

	"cms-backend/internal/inquiries"
)

const inquiryNotificationTemplate = `<!DOCTYPE html>
<html>
<body>
  <h3>New contact inquiry</h3>
  <p><strong>Name:</strong> {{.Name}}</p>
  <p><strong>Email:</strong> {{.Email}}</p>
  {{- if .Company}}
  <p><strong>Company:</strong> {{.Company}}</p>
  {{- end}}
  {{- if .Phone}}
  <p><strong>Phone:</strong> {{.Phone}}</p>
  {{- end}}
  {{- if .Service}}
  <p><strong>Service:</strong> {{.Service}}</p>
  {{- end}}
  <p><strong>Priority:</strong> {{.Priority}}</p>
  <p><strong>Received:</strong> {{.Received}}</p>
  <p><strong>ID:</strong> {{.ID}}</p>
  <p><strong>Message:</strong><br/>{{.Message}}</p>
</body>
</html>`

var inquiryNotificationTmpl = template.Must(template.New("inquiry_notification").Parse(inquiryNotificationTemplate))

type inquiryEmailData struct {
	inquiries.Inquiry
	Received string
}

func buildInquiryNotificationHTML(item inquiries.Inquiry) (string, error) {
	data := inquiryEmailData{
		Inquiry:  item,
		Received: item.CreatedAt.Format(time.RFC1123),
	}
	var buf bytes.Buffer
	if err := inquiryNotificationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
