// Package schedule holds the domain model exchanged between the connector
// and command services: the ingress request, the canonical log event and the
// persisted row.
package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Bus addresses. Components register under these names and senders address
// them by name only.
const (
	AddressRequest  = "schedule.request"
	AddressProduce  = "schedule.produce"
	AddressReceived = "schedule.received"
)

// HeaderRequestID is the record header carrying the request id into the log.
const HeaderRequestID = "request-id"

// ReplyOK is the body of a successful bus reply.
const ReplyOK = "ok"

var validate = validator.New()

// Customer identifies who the schedule belongs to. DocumentNumber doubles as
// the log partition key.
type Customer struct {
	DocumentNumber string `json:"documentNumber" validate:"required"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email,omitempty"`
}

// Request is the ingress boundary payload. RequestID is generated at ingress
// when the client did not supply one.
type Request struct {
	RequestID   string    `json:"requestId,omitempty"`
	DateTime    time.Time `json:"dateTime" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Customer    Customer  `json:"customer"`
}

// EnsureRequestID assigns a fresh id when the request arrived without one.
func (r *Request) EnsureRequestID() {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
}

// Validate checks the business rules: mandatory fields present and the
// instant in the future at acceptance time.
func (r *Request) Validate(now time.Time) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid schedule request: %w", err)
	}
	if !r.DateTime.After(now) {
		return fmt.Errorf("dateTime must be in the future, got %s", r.DateTime.Format(time.RFC3339))
	}
	return nil
}

// Event is the canonical log payload: the request projected without its id,
// which travels in the record header instead.
type Event struct {
	DateTime    time.Time `json:"dateTime"`
	Description string    `json:"description"`
	Customer    Customer  `json:"customer"`
}

// NewEvent projects an accepted request to its canonical form.
func NewEvent(r Request) Event {
	return Event{
		DateTime:    r.DateTime,
		Description: r.Description,
		Customer:    r.Customer,
	}
}

// Key returns the log partition key. Equal keys land in the same partition
// and therefore preserve order.
func (e Event) Key() string {
	return e.Customer.DocumentNumber
}

// Encode renders the canonical UTF-8 JSON record value.
func (e Event) Encode() ([]byte, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule event: %w", err)
	}
	return value, nil
}

// DecodeEvent parses a record value back into an event.
func DecodeEvent(value []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode schedule event: %w", err)
	}
	return e, nil
}

// Row is the store projection of an event, one row per accepted event.
type Row struct {
	DateTime       time.Time
	Description    string
	DocumentNumber string
	Customer       string
	Phone          string
	Email          string
}

// NewRow flattens an event into its store shape.
func NewRow(e Event) Row {
	return Row{
		DateTime:       e.DateTime,
		Description:    e.Description,
		DocumentNumber: e.Customer.DocumentNumber,
		Customer:       e.Customer.Name,
		Phone:          e.Customer.Phone,
		Email:          e.Customer.Email,
	}
}
