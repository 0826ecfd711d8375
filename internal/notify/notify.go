// Package notify implements the H component: a Notifier interface plus an
// SMTP implementation. Delivery failures are logged, never returned to the
// scheduler, matching spec.md §4.H and the teacher's logging idiom
// (cmd/distri/distri.go: log.Printf at the point a non-fatal problem is
// observed, rather than propagating it up a call chain that has nothing
// useful to do with it).
package notify

import (
	"fmt"
	"log"
	"strings"

	"gopkg.in/mail.v2"

	"github.com/distr1/backupd/internal/model"
)

// Notifier delivers a RunReport to whatever channel it wraps. Implementations
// must not block indefinitely; the scheduler calls Notify synchronously
// after every run.
type Notifier interface {
	Notify(report model.RunReport)
}

// TLSMode selects how the SMTP connection is secured.
type TLSMode int

const (
	// ImplicitTLS dials directly over TLS (commonly port 465).
	ImplicitTLS TLSMode = iota
	// StartTLS dials plaintext and upgrades via STARTTLS (commonly port 587).
	StartTLS
)

// SMTPConfig parametrizes the SMTP notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Mode     TLSMode
}

// SMTPNotifier delivers run reports as plain-text email.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier returns a Notifier backed by cfg.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// Notify composes a human-readable message from report and delivers it.
// Delivery failures are logged and swallowed (spec.md §4.H).
func (n *SMTPNotifier) Notify(report model.RunReport) {
	msg := mail.NewMessage()
	msg.SetHeader("From", n.cfg.From)
	msg.SetHeader("To", n.cfg.To...)
	msg.SetHeader("Subject", subjectFor(report))
	msg.SetBody("text/plain", bodyFor(report))

	d := mail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	d.SSL = n.cfg.Mode == ImplicitTLS

	if err := d.DialAndSend(msg); err != nil {
		log.Printf("notify: delivering report failed: %v", err)
	}
}

func subjectFor(report model.RunReport) string {
	switch {
	case report.Failed():
		return "backupd: run failed"
	case report.Partial():
		return "backupd: run completed with warnings"
	default:
		return "backupd: run succeeded"
	}
}

func bodyFor(report model.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "started:  %s\n", report.StartedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "finished: %s\n", report.FinishedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "bytes written:   %d\n", report.BytesWritten)
	fmt.Fprintf(&b, "entries written: %d\n", report.EntriesWritten)
	if report.FatalError != nil {
		fmt.Fprintf(&b, "fatal error: %v\n", report.FatalError)
	}
	if len(report.NonFatalErrors) > 0 {
		fmt.Fprintf(&b, "non-fatal errors (%d):\n", len(report.NonFatalErrors))
		for _, e := range report.NonFatalErrors {
			fmt.Fprintf(&b, "  - %v\n", e)
		}
	}
	if len(report.DeletedArtifacts) > 0 {
		fmt.Fprintf(&b, "retention deleted (%d):\n", len(report.DeletedArtifacts))
		for _, name := range report.DeletedArtifacts {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	}
	return b.String()
}
