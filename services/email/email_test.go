package emailsvc

import (
	"context"
	"net"
	"net/mail"
	"net/smtp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

func testMessage() *core.EmailMessage {
	return &core.EmailMessage{
		From:        mail.Address{Name: "School", Address: "noreply@school.test"},
		ReplyTo:     "office@school.test",
		To:          []mail.Address{{Address: "parent@example.com"}},
		Subject:     "Dues",
		TextContent: "You owe 2000.00",
		HTMLContent: "<p>You owe 2000.00</p>",
	}
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()

	tests := []struct {
		backend string
		apiKey  string
		name    string
		wantErr bool
	}{
		{backend: "console", name: "console"},
		{backend: "smtp", name: "smtp"},
		{backend: "sendgrid", apiKey: "key", name: "sendgrid"},
		{backend: "sendgrid", wantErr: true},
		{backend: "pigeon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			conf.Email.Backend = tt.backend
			conf.Email.SendgridApiKey = tt.apiKey

			svc, err := New(nil, conf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, svc.Name())
		})
	}
}

func TestConsoleService_Send(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig())

	ref, err := svc.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	if assert.Len(t, svc.Sent(), 1) {
		assert.Equal(t, "Dues", svc.Sent()[0].Subject)
	}

	_, err = svc.Send(context.Background(), &core.EmailMessage{Subject: "nobody"})
	assert.Error(t, err)
	assert.Len(t, svc.Sent(), 1)
}

func TestCompose(t *testing.T) {
	body, err := compose(testMessage(), "[School] ", "<id@test>", core.NowFunc())
	require.NoError(t, err)

	assert.Contains(t, body, "Subject: [School] Dues\r\n")
	assert.Contains(t, body, "Reply-To: office@school.test\r\n")
	assert.Contains(t, body, "Message-ID: <id@test>\r\n")
	assert.Contains(t, body, "multipart/alternative; boundary=")
	assert.Contains(t, body, "You owe 2000.00")
	assert.Contains(t, body, "<p>You owe 2000.00</p>")
}

func TestSMTPService_Send(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Email.SMTPHost = "mail.school.test"
	conf.Email.SMTPPort = 2525
	svc := NewSMTPService(conf)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotTimeout time.Duration
	smtpSendMail = func(_ context.Context, addr string, timeout time.Duration, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTimeout, gotFrom, gotTo = addr, timeout, from, to
		return nil
	}
	defer func() { smtpSendMail = sendMail }()

	ref, err := svc.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Contains(t, ref, "@mail.school.test>")
	assert.Equal(t, "mail.school.test:2525", gotAddr)
	assert.Equal(t, "noreply@school.test", gotFrom)
	assert.Equal(t, []string{"parent@example.com"}, gotTo)
	assert.Equal(t, time.Second, gotTimeout)
}

func Test_sendMail_timeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// accepts but never greets
	done := make(chan struct{})
	defer close(done)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		<-done
		conn.Close()
	}()

	start := time.Now()
	err = sendMail(context.Background(), ln.Addr().String(), 100*time.Millisecond, nil, "noreply@school.test", []string{"parent@example.com"}, []byte("hi"))
	require.Error(t, err)
	assert.Less(t, int64(time.Since(start)), int64(5*time.Second))
	var netErr net.Error
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.True(t, netErr.Timeout())
}

func TestSendgridService_Send(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Email.SendgridApiKey = "key"
	svc := NewSendgridService(conf)
	defer func() { sendgridAPI = sendgrid.API }()

	tests := []struct {
		name    string
		res     *rest.Response
		wantRef string
		wantErr bool
	}{
		{
			name:    "accepted",
			res:     &rest.Response{StatusCode: 202, Headers: map[string][]string{"X-Message-Id": {"sg-123"}}},
			wantRef: "sg-123",
		},
		{
			name:    "rejected",
			res:     &rest.Response{StatusCode: 400, Body: `{"errors":[{"message":"bad from"}]}`},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq rest.Request
			sendgridAPI = func(req rest.Request) (*rest.Response, error) {
				gotReq = req
				return tt.res, nil
			}

			ref, err := svc.Send(context.Background(), testMessage())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRef, ref)
			assert.Equal(t, rest.Post, gotReq.Method)
			assert.Contains(t, string(gotReq.Body), "parent@example.com")
			assert.Contains(t, string(gotReq.Body), "office@school.test")
		})
	}
}
