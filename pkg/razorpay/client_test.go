package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
)

type fakeOrders struct {
	body map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (f *fakeOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.body = data
	return f.resp, f.err
}

var testConfig = config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "shh", Currency: "inr"}

func newTestClient(t *testing.T, orders orderCreator) *Client {
	t.Helper()
	client, err := NewClient(testConfig, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.orders = orders
	return client
}

// widgetSignature mirrors what the checkout widget hands back after payment.
func widgetSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateOrderSendsAmountInPaise(t *testing.T) {
	orders := &fakeOrders{resp: map[string]interface{}{"id": "order_abc", "status": "created"}}
	client := newTestClient(t, orders)

	id, err := client.CreateOrder(context.Background(), 12550, "rcpt-1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if id != "order_abc" {
		t.Fatalf("unexpected id %q", id)
	}
	if orders.body["amount"] != int64(12550) || orders.body["currency"] != "INR" || orders.body["receipt"] != "rcpt-1" {
		t.Fatalf("unexpected body %+v", orders.body)
	}
	if orders.body["payment_capture"] != 1 {
		t.Fatalf("expected auto capture, got %+v", orders.body["payment_capture"])
	}
}

func TestCreateOrderFailures(t *testing.T) {
	cases := map[string]*fakeOrders{
		"sdk error":  {err: errors.New("BAD_REQUEST_ERROR")},
		"missing id": {resp: map[string]interface{}{"status": "created"}},
	}
	for name, orders := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestClient(t, orders).CreateOrder(context.Background(), 100, "")
			if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
				t.Fatalf("expected dependency error, got %v", err)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	orders := &fakeOrders{resp: map[string]interface{}{"id": "order_x"}}
	if _, err := newTestClient(t, orders).CreateOrder(ctx, 100, ""); err == nil {
		t.Fatal("expected canceled context to fail")
	}
	if orders.body != nil {
		t.Fatal("sdk should not be called after cancellation")
	}
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	_, err := newTestClient(t, &fakeOrders{}).CreateOrder(context.Background(), 0, "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	client := newTestClient(t, &fakeOrders{})
	sig := widgetSignature("shh", "order_abc", "pay_123")

	if !client.VerifySignature("order_abc", "pay_123", sig) {
		t.Fatal("expected signature to verify")
	}
	if client.VerifySignature("order_abc", "pay_999", sig) {
		t.Fatal("expected mismatched payment id to fail")
	}
	if client.VerifySignature("order_other", "pay_123", sig) {
		t.Fatal("expected mismatched order id to fail")
	}
	if client.VerifySignature("order_abc", "pay_123", "") {
		t.Fatal("expected empty signature to fail")
	}
}

func TestToMinorUnits(t *testing.T) {
	if got := ToMinorUnits(decimal.RequireFromString("125.505")); got != 12550 {
		t.Fatalf("expected 12550, got %d", got)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	cases := map[string]config.RazorpayConfig{
		"missing key id":     {KeySecret: "x"},
		"missing secret":     {KeyID: "rzp_test_1"},
		"unknown mode":       {KeyID: "rzp_test_1", KeySecret: "x", Mode: "sandbox"},
		"live key test mode": {KeyID: "rzp_live_1", KeySecret: "x", Mode: "test"},
		"test key live mode": {KeyID: "rzp_test_1", KeySecret: "x", Mode: "LIVE"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewClient(cfg, nil); err == nil {
				t.Fatal("expected config error")
			}
		})
	}

	client, err := NewClient(config.RazorpayConfig{KeyID: "rzp_live_1", KeySecret: "x", Mode: " Live "}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Mode() != liveMode || client.Currency() != defaultCurrency {
		t.Fatalf("unexpected mode %q currency %q", client.Mode(), client.Currency())
	}
}
