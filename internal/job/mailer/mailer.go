// Package mailer distributes stored operations by mail: it resolves mail
// recipients through the address book filter chain and sends one message
// per operation over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/dispatchworks/alarmhub/internal/addressing"
	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
)

// Alias is the registry alias of this job.
const Alias = "mailer"

// defaultSMTPPort is used when the port is not configured.
const defaultSMTPPort = 25

// sendFunc matches smtp.SendMail and is swapped in tests.
type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Job sends alarm mails to filtered address book recipients.
type Job struct {
	cfg  config.Mailer
	book *addressing.Service
	send sendFunc
}

// New creates a mailer job.
func New(cfg config.Mailer, book *addressing.Service) *Job {
	return &Job{
		cfg:  cfg,
		book: book,
		send: smtp.SendMail,
	}
}

// Register adds the job to the registry.
func Register(r *registry.Registry[job.Job], cfg config.Mailer, book *addressing.Service) error {
	return r.Register(registry.Registration[job.Job]{
		Alias:       Alias,
		Description: "mails stored operations to filtered address book recipients",
		New: func() (job.Job, error) {
			return New(cfg, book), nil
		},
	})
}

// IsAsync implements job.Job. SMTP delivery never blocks the pipeline.
func (j *Job) IsAsync() bool { return true }

// Phases implements job.Job.
func (j *Job) Phases() []job.Phase {
	return []job.Phase{job.PhaseAfterOperationStored}
}

// Initialize implements job.Job.
func (j *Job) Initialize(_ context.Context) error {
	if j.cfg.Host == "" || j.cfg.From == "" {
		return errors.New("smtp host and from address must be configured")
	}

	return nil
}

// Execute sends one mail covering all accepted recipients.
func (j *Job) Execute(ctx context.Context, _ *job.Context, op *operation.Operation) error {
	recipients := addressing.CustomObjectsFiltered[addressing.MailAddress](j.book, addressing.TypeMail, op)
	if len(recipients) == 0 {
		logger.Debug(ctx, "No mail recipients for operation")

		return nil
	}

	to, cc, bcc := splitRecipients(recipients)

	message := j.buildMessage(op, to, cc)

	envelope := make([]string, 0, len(recipients))
	envelope = append(envelope, to...)
	envelope = append(envelope, cc...)
	envelope = append(envelope, bcc...)

	var auth smtp.Auth
	if j.cfg.Username != "" {
		auth = smtp.PlainAuth("", j.cfg.Username, j.cfg.Password, j.cfg.Host)
	}

	port := j.cfg.Port
	if port <= 0 {
		port = defaultSMTPPort
	}

	addr := net.JoinHostPort(j.cfg.Host, strconv.Itoa(port))
	if err := j.send(addr, auth, j.cfg.From, envelope, message); err != nil {
		return fmt.Errorf("send alarm mail: %w", err)
	}

	logger.InfoKV(ctx, "Alarm mail sent", "recipients", len(envelope))

	return nil
}

// Dispose implements job.Job.
func (j *Job) Dispose() error {
	return nil
}

// splitRecipients sorts addresses into their receipt classes. Bcc addresses
// only appear in the envelope, never in headers.
func splitRecipients(recipients []addressing.Recipient[addressing.MailAddress]) (to, cc, bcc []string) {
	for _, recipient := range recipients {
		switch recipient.Data.Receipt {
		case addressing.ReceiptCC:
			cc = append(cc, recipient.Data.Address)
		case addressing.ReceiptBCC:
			bcc = append(bcc, recipient.Data.Address)
		default:
			to = append(to, recipient.Data.Address)
		}
	}

	return to, cc, bcc
}

func (j *Job) buildMessage(op *operation.Operation, to, cc []string) []byte {
	subject := strings.TrimSpace(j.cfg.SubjectPrefix + " " + op.String())

	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", j.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))

	if len(cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(cc, ", "))
	}

	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(BodyText(op))

	return []byte(b.String())
}

// BodyText renders the plain text alarm summary shared by the notification
// jobs.
func BodyText(op *operation.Operation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Operation: %s\r\n", op.Number)
	fmt.Fprintf(&b, "Alarm time: %s\r\n", op.AlarmAt.Format("2006-01-02 15:04:05"))

	if keyword := op.Keywords.String(); keyword != "" {
		fmt.Fprintf(&b, "Keyword: %s\r\n", keyword)
	}

	if location := op.Einsatzort.String(); location != "" {
		fmt.Fprintf(&b, "Location: %s\r\n", location)
	}

	if op.Comment != "" {
		fmt.Fprintf(&b, "Comment: %s\r\n", op.Comment)
	}

	if len(op.Loops) > 0 {
		fmt.Fprintf(&b, "Loops: %s\r\n", op.Loops.String())
	}

	if len(op.Resources) > 0 {
		fmt.Fprintf(&b, "Resources: %s\r\n", strings.Join(op.Resources, ", "))
	}

	return b.String()
}
