// Package smssvc holds the SMS transports of the outbox.
package smssvc

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

const requestTimeout = 15 * time.Second

func newClient() *rest.Client {
	return &rest.Client{HTTPClient: &http.Client{Timeout: requestTimeout}}
}

// New returns the transport selected by sms.provider.
func New(std *log.Logger, conf *core.Config) (core.SMSService, error) {
	switch conf.SMS.Provider {
	case "", "console":
		return NewConsoleService(std), nil
	case "generic":
		if conf.SMS.GenericBaseURL == "" {
			return nil, errors.New("sms.genericBaseURL is required by the generic provider")
		}
		return NewGenericService(conf), nil
	case "twilio":
		if conf.SMS.TwilioAccountSID == "" || conf.SMS.TwilioAuthToken == "" {
			return nil, errors.New("sms.twilioAccountSID and sms.twilioAuthToken are required by the twilio provider")
		}
		return NewTwilioService(conf), nil
	}
	return nil, errors.Errorf("unknown sms provider %q", conf.SMS.Provider)
}

// checkResponse fails on any non 2xx status.
func checkResponse(res *rest.Response) error {
	if res.StatusCode/100 != 2 {
		return errors.Errorf("HTTP %d: %s", res.StatusCode, core.Truncate(res.Body, 300))
	}
	return nil
}

func isJSON(res *rest.Response) bool {
	for k, v := range res.Headers {
		if strings.EqualFold(k, "Content-Type") && len(v) > 0 {
			return strings.HasPrefix(v[0], "application/json")
		}
	}
	return false
}

func decode(res *rest.Response, v interface{}) error {
	return errors.Wrap(json.Unmarshal([]byte(res.Body), v), "decoding response")
}

type ConsoleService struct {
	std  *log.Logger
	mu   sync.Mutex
	sent []core.SMSMessage
}

var _ core.SMSService = (*ConsoleService)(nil)

// NewConsoleService prints text messages to std; a nil std only records them.
func NewConsoleService(std *log.Logger) *ConsoleService {
	return &ConsoleService{std: std}
}

func (svc *ConsoleService) Name() string { return "console" }

func (svc *ConsoleService) Send(_ context.Context, msg core.SMSMessage) (string, error) {
	if msg.To == "" {
		return "", errors.New("sms has no recipient")
	}
	svc.mu.Lock()
	svc.sent = append(svc.sent, msg)
	svc.mu.Unlock()

	if svc.std != nil {
		svc.std.Printf("SMS from %s to %s:\n%s\n", msg.SenderID, msg.To, msg.Body)
	}
	return uuid.New().String(), nil
}

// Sent returns a copy of the messages sent so far.
func (svc *ConsoleService) Sent() []core.SMSMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.SMSMessage(nil), svc.sent...)
}
