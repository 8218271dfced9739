// Package wire defines the JSON frames exchanged on the order sync websocket.
package wire

import (
	"encoding/json"
	"fmt"

	"tabify/internal/domain"
)

type Type string

const (
	TypeRegisterRole        Type = "registerRole"
	TypeReconnectOrder      Type = "reconnectOrder"
	TypeNewOrder            Type = "newOrder"
	TypeUpdatePaymentStatus Type = "updatePaymentStatus"
	TypeUpdateOrderStatus   Type = "updateOrderStatus"
	TypeOrderUpdate         Type = "orderUpdate"
	TypeError               Type = "error"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleShop     Role = "shop"
)

// Envelope is a single frame on the socket.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RegisterRole struct {
	Role      Role   `json:"role"`
	SessionID string `json:"sessionId,omitempty"`
}

type ReconnectOrder struct {
	OrderID string `json:"orderId"`
}

type PaymentUpdate struct {
	OrderID       string               `json:"orderId"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
}

type StatusUpdate struct {
	OrderID string             `json:"orderId"`
	Status  domain.OrderStatus `json:"status"`
}

type Error struct {
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
}

// New wraps payload into an envelope of type t.
func New(t Type, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: t}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("decode %s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}
