package comms

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// Channels
const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Statuses
const (
	StatusQueued  Status = "queued"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

const maxErrorLen = 1000

var (
	Channels = []Channel{ChannelSMS, ChannelEmail}

	// errors
	ErrTemplateNotFound = errors.New("message template not found")
	ErrEntryNotFound    = errors.New("outbox entry not found")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrNoTransport      = errors.New("no transport configured")
)

type (
	Channel string
	Status  string

	// Context is the data a template is rendered against.
	Context map[string]interface{}
)

func ParseChannel(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.Valid() {
		return "", errors.Wrapf(ErrUnknownChannel, "%q", s)
	}
	return ch, nil
}

func (ch Channel) Valid() bool {
	return ch == ChannelSMS || ch == ChannelEmail
}

type Template struct {
	ID        int       `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Kind      Channel   `json:"kind" db:"kind"`
	Subject   string    `json:"subject_template" db:"subject_template"`
	BodyText  string    `json:"body_text_template" db:"body_text_template"`
	BodyHTML  string    `json:"body_html_template" db:"body_html_template"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// Entry is one outbound message, SMS or email.
// Status moves queued|failed -> sending -> sent|failed.
type Entry struct {
	ID            int       `json:"id"`
	Channel       Channel   `json:"channel"`
	To            string    `json:"to"`
	TemplateID    int       `json:"template_id"`
	TemplateSlug  string    `json:"template"`
	Context       Context   `json:"context"`
	Status        Status    `json:"status"`
	Attempts      int       `json:"attempts"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	NextAttemptAt null.Time `json:"next_attempt_at"`
	ClaimedAt     null.Time `json:"-"`
	Provider      string    `json:"provider"`
	ProviderRef   string    `json:"provider_ref"`
	LastError     string    `json:"last_error"`
	SentAt        null.Time `json:"sent_at"`
	SenderID      string    `json:"sender_id,omitempty"`  // sms
	FromEmail     string    `json:"from_email,omitempty"` // email
	ReplyTo       string    `json:"reply_to,omitempty"`   // email
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// LogRecord is the append-only audit row written for every delivery attempt.
type LogRecord struct {
	ID           int       `json:"id" boil:"id"`
	When         time.Time `json:"when" boil:"occurred_at"`
	Channel      Channel   `json:"channel" boil:"channel"`
	Recipient    string    `json:"recipient" boil:"recipient"`
	TemplateSlug string    `json:"template_slug" boil:"template_slug"`
	Status       Status    `json:"status" boil:"status"`
	Detail       string    `json:"detail" boil:"detail"`
}

// Backoff is the delay before retrying an entry that failed `attempts` times: min(32, 2^(attempts-1)) minutes.
func Backoff(attempts int) time.Duration {
	exp := attempts - 1
	if exp < 0 {
		exp = 0
	}
	if exp > 5 {
		exp = 5
	}
	return time.Duration(1<<uint(exp)) * time.Minute
}
