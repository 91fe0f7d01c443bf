package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gatepass/internal/api"
	"github.com/charlesng35/gatepass/internal/app"
	iauth "github.com/charlesng35/gatepass/internal/auth"
	"github.com/charlesng35/gatepass/internal/cache"
	sharedtestutil "github.com/charlesng35/gatepass/internal/database/testutil"
	"github.com/charlesng35/gatepass/internal/middleware"
	"github.com/charlesng35/gatepass/internal/realtime"
	"github.com/charlesng35/gatepass/internal/services"
	"github.com/charlesng35/gatepass/internal/ticket"
	"github.com/charlesng35/gatepass/pkg/mail"
	"github.com/charlesng35/gatepass/pkg/response"
)

const (
	OperatorUsername = "gate"
	OperatorPassword = "Gate-Passw0rd!"
)

// Outbox captures messages handed to the mailer.
type Outbox struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

// Send implements mail.Mailer.
func (o *Outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return o.err
}

// FailWith makes subsequent sends return err after capturing the message.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Messages returns a copy of the captured messages.
func (o *Outbox) Messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.messages...)
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	Config     *app.Config
	Attendees  *services.AttendeeStore
	Dispatcher *services.DispatchService
	Hub        *realtime.Hub
	Outbox     *Outbox
	Now        time.Time
}

// EnvOption customises the configuration before the router is built.
type EnvOption func(*app.Config)

// WithCSRF enables the CSRF middleware.
func WithCSRF() EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.CSRF.Enabled = true
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
// The registration and redemption clocks are pinned to Env.Now.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Requests: 1000, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT:      app.JWTSettings{Secret: "test-suite-super-secret-key-32-bytes!!", Issuer: "test-suite", TTL: time.Hour},
			Operator: app.OperatorSettings{Username: OperatorUsername, Password: OperatorPassword},
		},
		Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}},
		Realtime:   app.RealtimeConfig{Enabled: true},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	revoked := cache.NewDatabaseStore(db)
	operators, err := iauth.NewOperatorService(cfg.Auth.OperatorConfig(), jwtSvc, revoked)
	require.NoError(t, err)

	attendees, err := services.NewAttendeeStore(db)
	require.NoError(t, err)

	outbox := &Outbox{}
	dispatcher, err := services.NewDispatchService(outbox, services.WithDispatchTimeout(time.Second))
	require.NoError(t, err)
	t.Cleanup(dispatcher.Wait)

	now := time.Now().UTC().Truncate(time.Second)
	clock := func() time.Time { return now }
	hub := realtime.NewHub()
	renderer := ticket.NewRenderer(ticket.WithSize(128))

	registration, err := services.NewRegistrationService(attendees, renderer,
		services.WithRegistrationClock(clock),
		services.WithDispatcher(dispatcher),
		services.WithRegistrationBroadcaster(hub),
	)
	require.NoError(t, err)

	scans, err := services.NewScanLogService(db)
	require.NoError(t, err)

	redemption, err := services.NewRedemptionService(attendees,
		services.WithRedemptionClock(clock),
		services.WithScanRecorder(scans),
		services.WithRedemptionBroadcaster(hub),
	)
	require.NoError(t, err)

	router, err := api.NewRouter(cfg, api.Dependencies{
		DB:           db,
		Operators:    operators,
		Attendees:    attendees,
		Registration: registration,
		Redemption:   redemption,
		Scans:        scans,
		Renderer:     renderer,
		Dispatcher:   dispatcher,
		Hub:          hub,
		RateStore:    middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:          t,
		DB:         db,
		Router:     router,
		Config:     cfg,
		Attendees:  attendees,
		Dispatcher: dispatcher,
		Hub:        hub,
		Outbox:     outbox,
		Now:        now,
	}
}

// LoginResult mirrors the login response payload.
type LoginResult struct {
	Message     string    `json:"message"`
	Username    string    `json:"username"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login authenticates the operator and returns the issued token.
func (e *Env) Login() LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"username": OperatorUsername,
		"password": OperatorPassword,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	return result
}

// RegistrationResult mirrors the registration response payload.
type RegistrationResult struct {
	Success    bool      `json:"success"`
	AttendeeID string    `json:"attendee_id"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expires_at"`
	Message    string    `json:"message"`
}

// Register submits the public registration form and expects success.
func (e *Env) Register(name, email string) RegistrationResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/submit", map[string]string{"name": name, "email": email}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var result RegistrationResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.Code)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Do executes a prepared request against the router.
func (e *Env) Do(req *http.Request) *httptest.ResponseRecorder {
	e.T.Helper()
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
