package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/notification-worker/internal/domain"
)

func TestDecodeRequest(t *testing.T) {
	t.Run("otp request", func(t *testing.T) {
		req, err := domain.DecodeRequest([]byte(`{"user_id":42,"kind":"otp","destinations":["email"],"email":"a@b.com"}`))
		require.NoError(t, err)
		assert.Equal(t, int64(42), req.UserID)
		assert.Equal(t, domain.KindOTP, req.Kind)
		assert.Equal(t, []string{"email"}, req.Destinations)
		require.NotNil(t, req.Email)
		assert.Equal(t, "a@b.com", *req.Email)
		assert.Nil(t, req.PhoneNumber)
		assert.Nil(t, req.Message)
	})

	t.Run("alert with every field", func(t *testing.T) {
		req, err := domain.DecodeRequest([]byte(`{"user_id":7,"kind":"alert","message":"Booking confirmed",
			"destinations":["email","whatsapp"],"email":"x@y.com","phone_number":"+1555"}`))
		require.NoError(t, err)
		assert.Equal(t, domain.KindAlert, req.Kind)
		require.NotNil(t, req.Message)
		assert.Equal(t, "Booking confirmed", *req.Message)
		require.NotNil(t, req.PhoneNumber)
		assert.Equal(t, "+1555", *req.PhoneNumber)
	})

	t.Run("zero user id and empty destinations are valid", func(t *testing.T) {
		req, err := domain.DecodeRequest([]byte(`{"user_id":0,"kind":"marketing","destinations":[]}`))
		require.NoError(t, err)
		assert.Equal(t, int64(0), req.UserID)
		assert.Empty(t, req.Destinations)
	})

	t.Run("null optionals and unknown fields", func(t *testing.T) {
		req, err := domain.DecodeRequest([]byte(`{"user_id":1,"kind":"alert","destinations":["sms"],"email":null,"message":null,"extra":true}`))
		require.NoError(t, err)
		assert.Nil(t, req.Email)
		assert.Nil(t, req.Message)
	})

	t.Run("keys match exactly", func(t *testing.T) {
		req, err := domain.DecodeRequest([]byte(`{"user_id":3,"USER_ID":9,"kind":"alert","destinations":["email"],"Email":"wrong@x.com"}`))
		require.NoError(t, err)
		assert.Equal(t, int64(3), req.UserID)
		assert.Nil(t, req.Email)
	})

	failures := []struct {
		name string
		body string
		want error
	}{
		{"not json", `not json at all`, domain.ErrMalformedPayload},
		{"missing user id", `{"kind":"otp","destinations":[]}`, domain.ErrMalformedPayload},
		{"missing destinations", `{"user_id":1,"kind":"otp"}`, domain.ErrMalformedPayload},
		{"null destinations", `{"user_id":1,"kind":"otp","destinations":null}`, domain.ErrMalformedPayload},
		{"missing kind", `{"user_id":1,"destinations":[]}`, domain.ErrMalformedPayload},
		{"string user id", `{"user_id":"1","kind":"otp","destinations":[]}`, domain.ErrMalformedPayload},
		{"fractional user id", `{"user_id":1.5,"kind":"otp","destinations":[]}`, domain.ErrMalformedPayload},
		{"unknown kind", `{"user_id":1,"kind":"Otp","destinations":[]}`, domain.ErrUnknownKind},
		{"destinations not strings", `{"user_id":1,"kind":"otp","destinations":[1]}`, domain.ErrMalformedPayload},
		{"upper-case keys", `{"USER_ID":1,"Kind":"otp","DESTINATIONS":["email"],"EMAIL":"a@b.com"}`, domain.ErrMalformedPayload},
		{"json null", `null`, domain.ErrMalformedPayload},
		{"json array", `[]`, domain.ErrMalformedPayload},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.DecodeRequest([]byte(tc.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		kind domain.OutcomeKind
		want domain.Action
	}{
		{domain.OutcomeArchived, domain.ActionAck},
		{domain.OutcomeDecoded, domain.ActionAck},
		{domain.OutcomeDispatched, domain.ActionAck},
		{domain.OutcomeFailed, domain.ActionDeadLetter},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, domain.Decide(domain.Outcome{Kind: tc.kind}))
		})
	}
}

func TestDecide_DispatchWithSendFailuresIsAcked(t *testing.T) {
	o := domain.Outcome{
		Kind: domain.OutcomeDispatched,
		Report: domain.Report{Results: []domain.DestinationResult{
			{Channel: "email", Status: domain.SendFailed, Error: "boom"},
			{Channel: "whatsapp", Status: domain.SendSent},
		}},
	}
	assert.Equal(t, domain.ActionAck, domain.Decide(o))
	assert.Equal(t, 1, o.Report.Count(domain.SendFailed))
	assert.Equal(t, 1, o.Report.Count(domain.SendSent))
}
