// Package paymentsvc holds the online payment gateways.
package paymentsvc

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
)

type snapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type midtransGateway struct {
	serverKey string
	client    snapClient
}

var _ payment.Gateway = (*midtransGateway)(nil) // interface compliance check

// NewMidtransGateway returns nil when no server key is configured.
func NewMidtransGateway(conf *core.Config) payment.Gateway {
	if conf.Midtrans.ServerKey == "" {
		return nil
	}
	env := midtrans.Sandbox
	if conf.Midtrans.Production {
		env = midtrans.Production
	}
	var c snap.Client
	c.New(conf.Midtrans.ServerKey, env)
	return &midtransGateway{serverKey: conf.Midtrans.ServerKey, client: &c}
}

func (gw *midtransGateway) Name() string { return "midtrans" }

func (gw *midtransGateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (payment.Checkout, error) {
	// IDR has no minor unit
	gross := req.Amount.Ceil().IntPart()
	if gross <= 0 {
		return payment.Checkout{}, errors.Errorf("invalid checkout amount %s", req.Amount)
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: core.Truncate(req.CustomerName, 255),
			Email: req.Email,
			Phone: req.Phone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    req.OrderID,
			Price: gross,
			Qty:   1,
			Name:  core.Truncate(req.ItemName, 50),
		}},
	}

	resp, mErr := gw.client.CreateTransaction(snapReq)
	if mErr != nil {
		return payment.Checkout{}, errors.Wrap(mErr, "creating snap transaction")
	}
	return payment.Checkout{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// Signature is SHA512(order_id + status_code + gross_amount + server_key), hex encoded.
func Signature(n payment.Notification, serverKey string) string {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func (gw *midtransGateway) VerifySignature(n payment.Notification) bool {
	got := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	if got == "" {
		return false
	}
	want := Signature(n, gw.serverKey)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// IsPaid: settlement, or capture accepted by the fraud detection.
func (gw *midtransGateway) IsPaid(n payment.Notification) bool {
	switch strings.ToLower(n.TransactionStatus) {
	case "settlement":
		return true
	case "capture":
		fraud := strings.ToLower(n.FraudStatus)
		return fraud == "" || fraud == "accept"
	}
	return false
}
