package emailsvc

import (
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

// compose renders msg as a multipart/alternative MIME message.
func compose(msg *core.EmailMessage, subjPrefix, messageID string, date time.Time) (string, error) {
	body := new(strings.Builder)

	// Write mail header
	_, _ = fmt.Fprintf(body, "From: %s\r\n", msg.From.String())
	if msg.ReplyTo != "" {
		_, _ = fmt.Fprintf(body, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Message-ID: %s\r\n", messageID)
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", date.Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", core.JoinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "Cc: %s\r\n", core.JoinAddresses(msg.Cc))
	}

	altW := multipart.NewWriter(body)
	_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return "", errors.Wrap(err, "creating text/plain part")
	}
	_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.HTMLContent != "" {
		w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
		if err != nil {
			return "", errors.Wrap(err, "creating text/html part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	if err = altW.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart writer")
	}
	return body.String(), nil
}

func checkMessage(msg *core.EmailMessage) error {
	if !msg.HasRecipients() {
		return errors.New("email has no recipients")
	}
	if !msg.HasContent() {
		return errors.New("email has no content")
	}
	return nil
}
