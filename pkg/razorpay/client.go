package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
)

const (
	testMode = "test"
	liveMode = "live"

	defaultCurrency = "INR"
	paisePerRupee   = 100
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
	errInvalidMode       = fmt.Errorf("razorpay mode must be %q or %q", testMode, liveMode)
)

// orderCreator is the slice of the SDK's order resource the client uses.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client wraps the Razorpay SDK: remote orders are created through its order
// resource and checkout signatures are checked with its utils package.
type Client struct {
	orders    orderCreator
	keySecret string
	currency  string
	mode      string
}

func NewClient(cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	mode, err := normalizeMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	secret := strings.TrimSpace(cfg.KeySecret)
	if secret == "" {
		return nil, errKeySecretRequired
	}
	if err := validateKeyID(mode, keyID); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	api := rzp.NewClient(keyID, secret)
	if logg != nil {
		logg.Info(logg.WithField(context.Background(), "mode", mode), "razorpay.ready")
	}
	return &Client{orders: api.Order, keySecret: secret, currency: currency, mode: mode}, nil
}

func (c *Client) Mode() string {
	if c == nil {
		return ""
	}
	return c.mode
}

func (c *Client) Currency() string {
	if c == nil {
		return defaultCurrency
	}
	return c.currency
}

// ToMinorUnits converts rupees to paise, truncating sub-paise fractions.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(paisePerRupee)).IntPart()
}

// CreateOrder registers an auto-captured remote order and returns its id.
// The SDK has no context support, so ctx is only checked before the call.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, receipt string) (string, error) {
	if c == nil || c.orders == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	if amountMinor <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if err := ctx.Err(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create remote order")
	}

	body := map[string]interface{}{
		"amount":          amountMinor,
		"currency":        c.currency,
		"payment_capture": 1,
	}
	if receipt != "" {
		body["receipt"] = receipt
	}
	resp, err := c.orders.Create(body, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create remote order")
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "remote order response carries no id")
	}
	return id, nil
}

func (c *Client) VerifySignature(remoteOrderID, paymentID, signature string) bool {
	if c == nil {
		return false
	}
	return VerifyPaymentSignature(c.keySecret, remoteOrderID, paymentID, signature)
}

// VerifyPaymentSignature checks the signature the checkout widget returns for
// remoteOrderID and paymentID under secret.
func VerifyPaymentSignature(secret, remoteOrderID, paymentID, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || remoteOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   remoteOrderID,
		"razorpay_payment_id": paymentID,
	}, signature, secret)
}

func normalizeMode(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	if mode == "" {
		return testMode, nil
	}
	if mode != testMode && mode != liveMode {
		return "", errInvalidMode
	}
	return mode, nil
}

func validateKeyID(mode, keyID string) error {
	if prefix := "rzp_" + mode + "_"; !strings.HasPrefix(keyID, prefix) {
		return fmt.Errorf("razorpay %s mode requires a key id starting with %s", mode, prefix)
	}
	return nil
}
