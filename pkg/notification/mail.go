package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	log "github.com/sirupsen/logrus"
)

const defaultSubject = "Calibration result"

// Mail handles email notifications
type Mail struct {
	auth              smtp.Auth
	smtpServerPort    int
	smtpServerAddress string
	to                string
	from              string
	send              func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// MailParams contains all parameters needed to initialize a Mail instance
type MailParams struct {
	SMTPServerPort    int    `mapstructure:"port"`
	SMTPServerAddress string `mapstructure:"address"`
	To                string `mapstructure:"to"`
	From              string `mapstructure:"from"`
	Password          string `mapstructure:"password"`
}

// NewMail creates a new Mail instance with the provided parameters
func NewMail(params MailParams) Mail {
	return Mail{
		from:              params.From,
		to:                params.To,
		smtpServerPort:    params.SMTPServerPort,
		smtpServerAddress: params.SMTPServerAddress,
		auth: smtp.PlainAuth(
			"",
			params.From,
			params.Password,
			params.SMTPServerAddress,
		),
		send: smtp.SendMail,
	}
}

// Notify sends text as an email. A first line starting with "Subject:" is
// used as the subject.
func (m Mail) Notify(text string) {
	serverAddress := fmt.Sprintf("%s:%d", m.smtpServerAddress, m.smtpServerPort)

	err := m.send(
		serverAddress,
		m.auth,
		m.from,
		[]string{m.to},
		m.message(text),
	)
	if err != nil {
		log.WithError(err).Error("notification/mail: failed to send email")
	}
}

func (m Mail) message(text string) []byte {
	subject, text, found := splitSubject(text)
	if !found {
		subject = defaultSubject
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "To: <%s>\r\n", m.to)
	fmt.Fprintf(&sb, "From: \"Calibrator\" <%s>\r\n", m.from)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	sb.WriteString(strings.ReplaceAll(text, "\n", "\r\n"))

	return []byte(sb.String())
}

// splitSubject separates a leading "Subject:" line from the body
func splitSubject(text string) (subject, body string, found bool) {
	first, rest, ok := strings.Cut(text, "\n")
	if !strings.HasPrefix(first, "Subject:") {
		return "", text, false
	}
	if !ok {
		rest = ""
	}
	return strings.TrimSpace(strings.TrimPrefix(first, "Subject:")), rest, true
}

// OnError sends an error notification
func (m Mail) OnError(err error) {
	m.Notify(fmt.Sprintf("Subject: Calibration error\n%s", formatError(err)))
}
