package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SizeOrder is the canonical display order for clothing sizes.
var SizeOrder = []string{"S", "M", "L", "XL"}

// SizeStock maps a size to its available quantity. Stored as JSONB.
type SizeStock map[string]int

// Value implements driver.Valuer for JSONB persistence.
func (s SizeStock) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *SizeStock) Scan(value interface{}) error {
	if value == nil {
		*s = SizeStock{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported stock column type %T", value)
	}
	return json.Unmarshal(data, s)
}

// MarshalJSON emits sizes in canonical order (S, M, L, XL) followed by any
// non-standard sizes sorted alphabetically, so clients render a stable list.
func (s SizeStock) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	keys := make([]string, 0, len(s))
	seen := make(map[string]bool, len(s))
	for _, size := range SizeOrder {
		if _, ok := s[size]; ok {
			keys = append(keys, size)
			seen[size] = true
		}
	}
	rest := make([]string, 0)
	for size := range s {
		if !seen[size] {
			rest = append(rest, size)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", s[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Images holds the product photo references shown in cart and catalog.
type Images struct {
	Front string `json:"front" gorm:"column:front_image"`
	Back  string `json:"back" gorm:"column:back_image"`
}

// Product is a catalog item with per-size stock counters.
type Product struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"not null" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2)" validate:"required"`
	Type        string          `json:"type,omitempty"`
	Category    string          `json:"category,omitempty"`
	Stock       SizeStock       `json:"stock" gorm:"type:jsonb"`
	Images      Images          `json:"images" gorm:"embedded"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CartLine is one (product, size) entry in a session's cart.
// Lines are unique on (ProductID, Size); Quantity is always >= 1.
type CartLine struct {
	ProductID uint            `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Images    Images          `json:"images"`
}

// Order statuses. Transitions move forward only, except to cancelled.
const (
	OrderStatusProcessing = "processing"
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

var orderStatusRank = map[string]int{
	OrderStatusProcessing: 0,
	OrderStatusPending:    1,
	OrderStatusPaid:       2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// CanTransitionOrderStatus reports whether an order may move from one
// status to another. Cancellation is allowed from any non-terminal state.
func CanTransitionOrderStatus(from, to string) bool {
	if from == to {
		return false
	}
	if to == OrderStatusCancelled {
		return from != OrderStatusDelivered && from != OrderStatusCancelled
	}
	fromRank, ok := orderStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := orderStatusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Order is the durable record created from a cart snapshot. Items are
// copied at creation time and never reflect later cart changes.
type Order struct {
	ID            uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID     string          `json:"-" gorm:"index;not null"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2)"`
	Status        string          `json:"status" gorm:"not null;default:processing" validate:"oneof=processing pending paid shipped delivered cancelled"`
	Items         []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	DeliveryType  string          `json:"delivery_type" validate:"required"`
	FullName      string          `json:"full_name" validate:"required"`
	Email         string          `json:"email" validate:"required,email"`
	Phone         string          `json:"phone" validate:"required"`
	City          string          `json:"city"`
	Address       string          `json:"address"`
	Comment       string          `json:"comment,omitempty"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem is one immutable line of an order snapshot.
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	OrderID   uuid.UUID       `json:"-" gorm:"type:uuid;index;not null"`
	ProductID uint            `json:"productId"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"`
}

// PaymentInvoice links an order to a provider-hosted payment page.
type PaymentInvoice struct {
	ID             uint            `json:"-" gorm:"primaryKey"`
	OrderID        uuid.UUID       `json:"order_id" gorm:"type:uuid;index;not null"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(12,2)"`
	ProviderURL    string          `json:"provider_url"`
	ProviderStatus string          `json:"provider_status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// WebhookRecord is the raw audit trail of every provider callback, written
// before any interpretation of the payload is attempted.
type WebhookRecord struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	RawPayload string    `json:"raw_payload" gorm:"type:text"`
	OrderID    string    `json:"order_id" gorm:"index"`
	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"received_at" gorm:"autoCreateTime"`
}
