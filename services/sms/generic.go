package smssvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

// genericService posts JSON to a plain HTTP gateway.
type genericService struct {
	baseURL string
	apiKey  string
	client  *rest.Client
}

var _ core.SMSService = (*genericService)(nil)

func NewGenericService(conf *core.Config) *genericService {
	return &genericService{
		baseURL: conf.SMS.GenericBaseURL,
		apiKey:  conf.SMS.GenericApiKey,
		client:  newClient(),
	}
}

func (svc *genericService) Name() string { return "generic" }

// Send returns the message_id (or id) the gateway answered with, or "".
func (svc *genericService) Send(ctx context.Context, msg core.SMSMessage) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"to":      msg.To,
		"sender":  msg.SenderID,
		"message": msg.Body,
		"api_key": svc.apiKey,
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding payload")
	}

	res, err := svc.client.Send(rest.Request{
		Method:  rest.Post,
		BaseURL: svc.baseURL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	})
	if err != nil {
		return "", errors.Wrap(err, "calling sms gateway")
	}
	if err = checkResponse(res); err != nil {
		return "", err
	}
	if !isJSON(res) {
		return "", nil
	}

	var data map[string]interface{}
	if err = decode(res, &data); err != nil {
		return "", err
	}
	for _, k := range []string{"message_id", "id"} {
		if v, ok := data[k]; ok && v != nil && v != "" {
			return fmt.Sprint(v), nil
		}
	}
	return "", nil
}
