package payment

import (
	"encoding/json"
	"strings"

	commonerrors "github.com/northwear/storefront/common/errors"
)

// WebhookEvent is the normalized form of a provider callback.
type WebhookEvent struct {
	OrderID string
	Status  string
	Paid    bool
}

// flexString tolerates the provider sending ids as either JSON strings
// or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// webhookPayload covers the known field spellings across provider API
// revisions. Exactly one of the status fields and one of the id fields is
// expected to be present.
type webhookPayload struct {
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	InvoiceStatus string     `json:"invoice_status"`
	OrderID       flexString `json:"order_id"`
	InvoiceID     flexString `json:"invoice_id"`
}

var paidStatuses = map[string]bool{
	"paid":       true,
	"success":    true,
	"successful": true,
}

// ParseWebhook normalizes a raw webhook payload. An unrecognized shape is
// a *commonerrors.WebhookAnomalyError, never a silent success.
func ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &commonerrors.WebhookAnomalyError{Reason: "undecodable payload"}
	}

	status := payload.Status
	if status == "" {
		status = payload.PaymentStatus
	}
	if status == "" {
		status = payload.InvoiceStatus
	}
	if status == "" {
		return nil, &commonerrors.WebhookAnomalyError{Reason: "payload carried no status field"}
	}

	orderID := string(payload.OrderID)
	if orderID == "" {
		orderID = string(payload.InvoiceID)
	}

	event := &WebhookEvent{
		OrderID: orderID,
		Status:  strings.ToLower(status),
		Paid:    paidStatuses[strings.ToLower(status)],
	}
	if event.Paid && event.OrderID == "" {
		return nil, &commonerrors.WebhookAnomalyError{Reason: "paid event carried no order id"}
	}
	return event, nil
}
