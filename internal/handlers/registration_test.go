package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatepass/internal/handlers/testutil"
	"github.com/charlesng35/gatepass/internal/models"
	"github.com/charlesng35/gatepass/internal/services"
	"github.com/charlesng35/gatepass/internal/ticket"
)

func TestRegistrationHandler_Submit(t *testing.T) {
	env := testutil.NewEnv(t)

	result := env.Register("Alice Doe", "  Alice@Example.com ")
	require.True(t, result.Success)
	require.NotEmpty(t, result.AttendeeID)
	require.Equal(t, "Form submitted successfully! Check your email for the QR code.", result.Message)
	require.WithinDuration(t, env.Now.Add(services.DefaultCodeTTL), result.ExpiresAt, 0)

	attendee, err := env.Attendees.FindByCode(t.Context(), result.Code)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", attendee.Email)
	require.Equal(t, result.AttendeeID, attendee.ID)
	require.False(t, attendee.Used)
	require.Equal(t, result.Code, ticket.ExtractCode(string(attendee.CodePayload)))

	env.Dispatcher.Wait()
	messages := env.Outbox.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, []string{"alice@example.com"}, messages[0].To)
	require.Contains(t, messages[0].Body, result.Code)
	require.Len(t, messages[0].Inline, 1)
}

func TestRegistrationHandler_DuplicateEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("Alice", "alice@example.com")

	w := env.Request(http.MethodPost, "/api/submit", map[string]string{
		"name":  "Alice Again",
		"email": "ALICE@example.com",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "REGISTRATION_DUPLICATE", resp.Error.Code)
	require.Equal(t, "This email has already been registered. Each email can only register once.", resp.Error.Message)

	var count int64
	require.NoError(t, env.DB.Model(&models.Attendee{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestRegistrationHandler_Validation(t *testing.T) {
	env := testutil.NewEnv(t)

	cases := []map[string]string{
		{"name": "", "email": "a@example.com"},
		{"name": "   ", "email": "a@example.com"},
		{"name": "Alice", "email": ""},
		{"name": "Alice", "email": "not-an-email"},
		{"name": "Alice", "email": "a@example.com", "phone": strings.Repeat("9", 41)},
	}
	for _, payload := range cases {
		w := env.Request(http.MethodPost, "/api/submit", payload, "")
		require.Equal(t, http.StatusBadRequest, w.Code, payload)
		resp := testutil.DecodeResponse(t, w)
		require.Equal(t, "BAD_REQUEST", resp.Error.Code)
	}

	req, err := http.NewRequest(http.MethodPost, "/api/submit", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := env.Do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandler_StoresPhone(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/submit", map[string]string{
		"name":  "Bob",
		"email": "bob@example.com",
		"phone": " +44 20 7946 0958 ",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	attendee, err := env.Attendees.FindByEmail(t.Context(), "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, attendee.Phone)
	require.Equal(t, "+44 20 7946 0958", *attendee.Phone)
}
