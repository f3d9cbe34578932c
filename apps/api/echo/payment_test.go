package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
	paymentsvc "github.com/Syed-Nuhad/school-web-sub000/services/payment"
	"github.com/Syed-Nuhad/school-web-sub000/tests"
)

const serverKey = "SB-Mid-server-test"

// fakeGateway signs like midtrans and counts checkouts.
type fakeGateway struct {
	checkouts []payment.CheckoutRequest
}

func (gw *fakeGateway) Name() string { return "midtrans" }

func (gw *fakeGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (payment.Checkout, error) {
	gw.checkouts = append(gw.checkouts, req)
	return payment.Checkout{OrderID: req.OrderID, Amount: req.Amount, Token: "tok", RedirectURL: "https://pay.test/" + req.OrderID}, nil
}

func (gw *fakeGateway) VerifySignature(n payment.Notification) bool {
	return n.SignatureKey == paymentsvc.Signature(n, serverKey)
}

func (gw *fakeGateway) IsPaid(n payment.Notification) bool {
	return n.TransactionStatus == "settlement"
}

func notification(t *testing.T, n payment.Notification, sign bool) string {
	if sign {
		n.SignatureKey = paymentsvc.Signature(n, serverKey)
	}
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return string(data)
}

func Test_studentApi_checkout(t *testing.T) {
	gw := new(fakeGateway)
	server, app := setup(t, gw)
	st := testutil.CreateStudent(t, app, "Amina", "amina@test.cd", "", 100)

	req, rec := newRequest(http.MethodPost, "/v1/students/"+strconv.Itoa(st.ID)+"/checkout", "")
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	if assert.Len(t, gw.checkouts, 1) {
		co := gw.checkouts[0]
		assert.Equal(t, "200", co.Amount.String())
		id, err := payment.ParseOrderID(co.OrderID)
		require.NoError(t, err)
		assert.Equal(t, st.ID, id)
	}
}

func Test_paymentApi_midtransNotification(t *testing.T) {
	server, app := setup(t, new(fakeGateway))
	st := testutil.CreateStudent(t, app, "Amina", "amina@test.cd", "", 100)
	path := "/v1/payments/midtrans/notification"
	orderID := payment.NewOrderID(st.ID)

	paid := payment.Notification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       "150.00",
		TransactionID:     "txn-1",
		TransactionStatus: "settlement",
	}
	pending := paid
	pending.TransactionStatus = "pending"
	pending.StatusCode = "201"
	badAmount := paid
	badAmount.GrossAmount = "lol"

	tests := []httpTest{
		{name: "malformed payload", method: http.MethodPost, path: path, body: `{"order_id":`, wantCode: http.StatusBadRequest},
		{name: "missing fields", method: http.MethodPost, path: path, body: `{}`, wantCode: http.StatusBadRequest},
		{name: "bad signature", method: http.MethodPost, path: path, body: notification(t, paid, false), wantCode: http.StatusUnauthorized},
		{name: "bad amount", method: http.MethodPost, path: path, body: notification(t, badAmount, true), wantCode: http.StatusBadRequest},
		{name: "pending is ignored", method: http.MethodPost, path: path, body: notification(t, pending, true), wantCode: http.StatusOK, wantData: `{"status":"ignored"}`},
		{name: "settlement", method: http.MethodPost, path: path, body: notification(t, paid, true), wantCode: http.StatusOK, wantData: `{"status":"processed"}`},
		{name: "replayed settlement", method: http.MethodPost, path: path, body: notification(t, paid, true), wantCode: http.StatusOK, wantData: `{"status":"processed"}`},
	}
	runHTTPTests(t, server, tests)

	dues, err := app.Svcs.Billing.Summarize(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", dues.TotalDue.String())
}
