package emailsvc

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

var smtpSendMail = sendMail // mockable

type smtpService struct {
	addr       string
	host       string
	auth       smtp.Auth
	timeout    time.Duration
	subjPrefix string
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config) *smtpService {
	svc := &smtpService{
		addr:       net.JoinHostPort(conf.Email.SMTPHost, strconv.Itoa(conf.Email.SMTPPort)),
		host:       conf.Email.SMTPHost,
		timeout:    conf.Email.SMTPTimeout,
		subjPrefix: "[" + conf.AppName + "] ",
	}
	if conf.Email.SMTPUser != "" {
		svc.auth = smtp.PlainAuth("", conf.Email.SMTPUser, conf.Email.SMTPPassword, conf.Email.SMTPHost)
	}
	return svc
}

func (svc *smtpService) Name() string { return "smtp" }

// Send returns the Message-ID header it generated.
func (svc *smtpService) Send(ctx context.Context, msg *core.EmailMessage) (string, error) {
	if err := checkMessage(msg); err != nil {
		return "", err
	}
	messageID := "<" + uuid.New().String() + "@" + svc.host + ">"
	body, err := compose(msg, svc.subjPrefix, messageID, core.NowFunc())
	if err != nil {
		return "", err
	}
	if err = smtpSendMail(ctx, svc.addr, svc.timeout, svc.auth, msg.From.Address, msg.Recipients(), []byte(body)); err != nil {
		return "", errors.Wrap(err, "sending email over smtp")
	}
	return messageID, nil
}

// sendMail is smtp.SendMail with a dial timeout; the same timeout bounds the whole session.
func sendMail(ctx context.Context, addr string, timeout time.Duration, a smtp.Auth, from string, to []string, msg []byte) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "dialing")
	}
	if timeout > 0 {
		if err = conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			conn.Close()
			return errors.Wrap(err, "setting deadline")
		}
	}
	host, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "reading greeting")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err = c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return errors.Wrap(err, "starting tls")
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err = c.Auth(a); err != nil {
				return errors.Wrap(err, "authenticating")
			}
		}
	}
	if err = c.Mail(from); err != nil {
		return errors.Wrap(err, "MAIL FROM")
	}
	for _, rcpt := range to {
		if err = c.Rcpt(rcpt); err != nil {
			return errors.Wrapf(err, "RCPT TO %s", rcpt)
		}
	}
	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "DATA")
	}
	if _, err = w.Write(msg); err != nil {
		return errors.Wrap(err, "writing message")
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "closing message")
	}
	return c.Quit()
}
