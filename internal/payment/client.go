// Package payment creates provider invoices for orders and reconciles the
// provider's asynchronous webhook confirmations. The provider's response
// shapes have drifted across API revisions, so parsing accepts every known
// encoding and treats anything else as a hard error instead of guessing.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	commonerrors "github.com/northwear/storefront/common/errors"
)

// Client talks to the crypto payment provider's invoice API.
type Client struct {
	baseURL    string
	apiKey     string
	shopID     string
	appURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a provider client. timeout bounds every call so a
// stalled provider never holds up a checkout indefinitely.
func NewClient(baseURL, apiKey, shopID, appURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		shopID:     shopID,
		appURL:     appURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("payment-client"),
	}
}

type invoiceRequest struct {
	ShopID     string `json:"shop_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	OrderID    string `json:"order_id"`
	Email      string `json:"email"`
	WebhookURL string `json:"webhook_url"`
	SuccessURL string `json:"success_url"`
	FailURL    string `json:"fail_url"`
}

// CreateInvoice asks the provider for a hosted payment page and returns
// its URL. Transport failures, non-2xx responses, and unrecognized
// response shapes all surface as *commonerrors.ProviderError.
func (c *Client) CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, email string) (string, error) {
	payload := invoiceRequest{
		ShopID:     c.shopID,
		Amount:     amount.StringFixed(2),
		Currency:   "USD",
		OrderID:    orderID,
		Email:      email,
		WebhookURL: c.appURL + "/api/payment/webhook",
		SuccessURL: c.appURL + "/success?orderId=" + orderID,
		FailURL:    c.appURL + "/checkout",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoice/create", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &commonerrors.ProviderError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &commonerrors.ProviderError{StatusCode: resp.StatusCode, Detail: "failed to read response body"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("invoice creation rejected",
			zap.String("order_id", orderID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return "", &commonerrors.ProviderError{StatusCode: resp.StatusCode, Detail: string(respBody)}
	}

	url, err := parseInvoiceURL(respBody)
	if err != nil {
		c.logger.Error("unrecognized invoice response",
			zap.String("order_id", orderID),
			zap.ByteString("body", respBody))
		return "", err
	}
	return url, nil
}

// invoiceResponse covers the known encodings of "here is the payment URL"
// across provider API revisions.
type invoiceResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	PayURL string `json:"pay_url"`
	Result struct {
		Link string `json:"link"`
	} `json:"result"`
}

func parseInvoiceURL(body []byte) (string, error) {
	var resp invoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &commonerrors.ProviderError{Detail: "undecodable invoice response"}
	}
	switch {
	case resp.Data.URL != "":
		return resp.Data.URL, nil
	case resp.PayURL != "":
		return resp.PayURL, nil
	case resp.Result.Link != "":
		return resp.Result.Link, nil
	default:
		return "", &commonerrors.ProviderError{Detail: "invoice response carried no payment URL"}
	}
}
