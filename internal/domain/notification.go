package domain

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Channel names a delivery medium as it appears in a request's destinations.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Kind is the tagged variant of a notification request.
type Kind string

const (
	KindOTP       Kind = "otp"
	KindAlert     Kind = "alert"
	KindMarketing Kind = "marketing"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindOTP, KindAlert, KindMarketing:
		return true
	}
	return false
}

// NotificationRequest is the wire payload published by upstream producers.
// Destinations are dispatched in order; duplicates are dispatched again.
type NotificationRequest struct {
	UserID       int64    `json:"user_id"`
	Email        *string  `json:"email,omitempty"`
	PhoneNumber  *string  `json:"phone_number,omitempty"`
	Destinations []string `json:"destinations"`
	Kind         Kind     `json:"kind"`
	Message      *string  `json:"message,omitempty"`
}

// wireRequest mirrors NotificationRequest with pointer fields so that an
// absent required field can be told apart from its zero value.
type wireRequest struct {
	UserID       *int64   `json:"user_id" validate:"required"`
	Email        *string  `json:"email"`
	PhoneNumber  *string  `json:"phone_number"`
	Destinations []string `json:"destinations" validate:"required"`
	Kind         *Kind    `json:"kind" validate:"required"`
	Message      *string  `json:"message"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// wireKeys are the only object keys DecodeRequest reads. Keys match exactly:
// "USER_ID" is an unknown field, not user_id.
var wireKeys = []string{"user_id", "email", "phone_number", "destinations", "kind", "message"}

// DecodeRequest parses a raw queue payload. Unknown fields are ignored.
// It fails on malformed JSON, type mismatches, missing user_id, destinations
// or kind, and on an unrecognised kind.
func DecodeRequest(body []byte) (*NotificationRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	// encoding/json folds case when matching struct fields, so keep only
	// the exact keys before decoding into the wire struct.
	exact := make(map[string]json.RawMessage, len(wireKeys))
	for _, k := range wireKeys {
		if v, ok := raw[k]; ok {
			exact[k] = v
		}
	}
	filtered, err := json.Marshal(exact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var w wireRequest
	if err := json.Unmarshal(filtered, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := validate.Struct(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !w.Kind.IsValid() {
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownKind, *w.Kind)
	}

	return &NotificationRequest{
		UserID:       *w.UserID,
		Email:        w.Email,
		PhoneNumber:  w.PhoneNumber,
		Destinations: w.Destinations,
		Kind:         *w.Kind,
		Message:      w.Message,
	}, nil
}
