package emailsvc

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

type ConsoleService struct {
	subjPrefix    string
	disableOutput bool
	std           *log.Logger

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*ConsoleService)(nil)

// NewConsoleService prints every email to std instead of sending it.
func NewConsoleService(std *log.Logger, conf *core.Config) *ConsoleService {
	return &ConsoleService{std: std, subjPrefix: "[" + conf.AppName + "] "}
}

// NewConsoleServiceMock only records the emails, for tests.
func NewConsoleServiceMock(conf *core.Config) *ConsoleService {
	return &ConsoleService{subjPrefix: "[" + conf.AppName + "] ", disableOutput: true}
}

func (svc *ConsoleService) Name() string { return "console" }

func (svc *ConsoleService) Send(ctx context.Context, msg *core.EmailMessage) (string, error) {
	if err := checkMessage(msg); err != nil {
		return "", err
	}
	ref := uuid.New().String()
	body, err := compose(msg, svc.subjPrefix, "<"+ref+"@console>", core.NowFunc())
	if err != nil {
		return "", err
	}

	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()

	if !svc.disableOutput && svc.std != nil {
		svc.std.Println(body)
	}
	return ref, nil
}

// Sent returns a copy of the emails sent so far.
func (svc *ConsoleService) Sent() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}
