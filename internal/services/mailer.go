package services

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/models"
)

// MailConfig is the SMTP account used for outgoing notices.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// sender is the part of *mail.Client the notifier needs.
type sender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
}

// MailNotifier renders notices as HTML and sends them over SMTP.
type MailNotifier struct {
	from   string
	client sender
	logger *zap.Logger
}

// NewMailNotifier builds an SMTP client. Port 465 uses implicit TLS, any other
// port requires STARTTLS.
func NewMailNotifier(cfg MailConfig, logger *zap.Logger) (*MailNotifier, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &MailNotifier{from: cfg.Username, client: client, logger: logger}, nil
}

var newRequestTmpl = template.Must(template.New("new_request").Parse(`<p>Dear Faculty,</p>
<p>A new consultation request has been submitted by student <strong>{{.StudentName}}</strong>.</p>
<h3>Request Details:</h3>
<ul>
<li><strong>Topic:</strong> {{.Topic}}</li>
<li><strong>Student Email:</strong> {{.Meta.StudentEmail}}</li>
<li><strong>Department:</strong> {{.Meta.StudentDepartment}}</li>
<li><strong>Batch/Year:</strong> {{.Meta.StudentBatchNo}}</li>
</ul>
{{if .Meta.StudentMessage}}<p><strong>Student's Optional Message:</strong> {{.Meta.StudentMessage}}</p>{{else}}<p>No optional message was included with this request.</p>{{end}}
<p>Please log into your Faculty Dashboard to review and set the final schedule (Date, Time, and Room).</p>
<p>Thank you.</p>`))

var statusTmpl = template.Must(template.New("status").Funcs(template.FuncMap{
	"when": func(t *time.Time) string { return t.Format("Mon, 02 Jan 2006 15:04 MST") },
}).Parse(`<p>Dear Student,</p>
{{- if eq .Status "approved"}}
<p>Your consultation request with <strong>{{.FacultyName}}</strong> has been <strong>APPROVED</strong> and officially scheduled!</p>
<p><strong>Final Schedule Details</strong></p>
{{if .Meta.FinalDateTime}}<p><strong>Date/Time:</strong> {{when .Meta.FinalDateTime}}</p>{{end}}
<p><strong>Location/Room:</strong> {{.Meta.RoomNumber}}</p>
<p>Please ensure you arrive on time. Thank you.</p>
{{- else if eq .Status "rejected"}}
<p>Your consultation request with <strong>{{.FacultyName}}</strong> has been <strong>REJECTED</strong>.</p>
<p>If you still require a consultation, please submit a new request via the portal.</p>
{{- else if eq .Status "cancelled"}}
<p>Your consultation request with <strong>{{.FacultyName}}</strong> has been <strong>CANCELLED</strong>.</p>
{{- else if eq .Status "reschedule"}}
<p>Your request with <strong>{{.FacultyName}}</strong> has been marked for <strong>RESCHEDULE</strong>.</p>
{{if .Meta.ProposedDateTime}}<p><strong>Suggested Date/Time:</strong> {{when .Meta.ProposedDateTime}}</p>{{end}}
{{if .Meta.ProposedRoomNumber}}<p><strong>Suggested Room:</strong> {{.Meta.ProposedRoomNumber}}</p>{{end}}
<p>Please submit a new request with a different preferred date/time via the portal.</p>
{{- end}}`))

// statusSubject returns "" for statuses that have no student notice.
func statusSubject(status models.BookingStatus, facultyName string) string {
	switch status {
	case models.BookingStatusApproved:
		return fmt.Sprintf("Your Consultation with %s is CONFIRMED", facultyName)
	case models.BookingStatusRejected:
		return fmt.Sprintf("Your Consultation with %s was Rejected", facultyName)
	case models.BookingStatusCancelled:
		return fmt.Sprintf("Your Consultation with %s was Cancelled", facultyName)
	case models.BookingStatusReschedule:
		return fmt.Sprintf("Consultation with %s Requires Reschedule", facultyName)
	}
	return ""
}

func (n *MailNotifier) NotifyNewRequest(ctx context.Context, facultyEmail, studentName, topic string, meta NewRequestMeta) error {
	subject := fmt.Sprintf("[Consultation Portal] New Booking Request from %s", studentName)
	data := struct {
		StudentName string
		Topic       string
		Meta        NewRequestMeta
	}{studentName, topic, meta}
	if err := n.send(ctx, facultyEmail, subject, newRequestTmpl, data); err != nil {
		return err
	}
	n.logger.Info("Email sent to faculty", zap.String("to", facultyEmail))
	return nil
}

func (n *MailNotifier) NotifyStatusChange(ctx context.Context, studentEmail string, status models.BookingStatus, facultyName string, meta StatusMeta) error {
	subject := statusSubject(status, facultyName)
	if subject == "" {
		return nil
	}
	data := struct {
		Status      models.BookingStatus
		FacultyName string
		Meta        StatusMeta
	}{status, facultyName, meta}
	if err := n.send(ctx, studentEmail, subject, statusTmpl, data); err != nil {
		return err
	}
	n.logger.Info("Email sent to student",
		zap.String("to", studentEmail),
		zap.String("status", string(status)),
	)
	return nil
}

func (n *MailNotifier) send(ctx context.Context, to, subject string, tmpl *template.Template, data any) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	if err := msg.SetBodyHTMLTemplate(tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}
