package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TempOrder holds a cart snapshot while an online payment is in flight.
// It is promoted to an Order when the provider confirms payment.
type TempOrder struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	CheckoutID   string          `json:"checkout_id" db:"checkout_id"`
	OrderDetails json.RawMessage `json:"order_details" db:"order_details"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Details decodes the stored snapshot
func (t *TempOrder) Details() (*OrderInput, error) {
	var in OrderInput
	if err := json.Unmarshal(t.OrderDetails, &in); err != nil {
		return nil, err
	}
	return &in, nil
}
