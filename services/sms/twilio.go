package smssvc

import (
	"context"
	"encoding/base64"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

var twilioHost = "https://api.twilio.com"

type twilioService struct {
	accountSID string
	authToken  string
	fromNumber string
	client     *rest.Client
}

var _ core.SMSService = (*twilioService)(nil)

func NewTwilioService(conf *core.Config) *twilioService {
	return &twilioService{
		accountSID: conf.SMS.TwilioAccountSID,
		authToken:  conf.SMS.TwilioAuthToken,
		fromNumber: conf.SMS.TwilioFromNumber,
		client:     newClient(),
	}
}

func (svc *twilioService) Name() string { return "twilio" }

// Send returns the message sid. The configured from number wins over the entry sender id.
func (svc *twilioService) Send(ctx context.Context, msg core.SMSMessage) (string, error) {
	from := svc.fromNumber
	if from == "" {
		from = msg.SenderID
	}
	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", from)
	form.Set("Body", msg.Body)

	auth := base64.StdEncoding.EncodeToString([]byte(svc.accountSID + ":" + svc.authToken))
	res, err := svc.client.Send(rest.Request{
		Method:  rest.Post,
		BaseURL: twilioHost + "/2010-04-01/Accounts/" + url.PathEscape(svc.accountSID) + "/Messages.json",
		Headers: map[string]string{
			"Authorization": "Basic " + auth,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return "", errors.Wrap(err, "calling twilio")
	}
	if err = checkResponse(res); err != nil {
		return "", err
	}

	var data struct {
		SID string `json:"sid"`
	}
	if err = decode(res, &data); err != nil {
		return "", err
	}
	return data.SID, nil
}
