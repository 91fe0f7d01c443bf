package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/middleware"
	"github.com/charlesng35/gatepass/internal/realtime"
	appErrors "github.com/charlesng35/gatepass/pkg/errors"
	"github.com/charlesng35/gatepass/pkg/response"
)

// LiveHandler upgrades authenticated operator connections into the live event feed.
type LiveHandler struct {
	hub            *realtime.Hub
	authn          middleware.TokenAuthenticator
	allowedStreams map[string]struct{}
}

// NewLiveHandler constructs a live handler restricted to the given streams,
// defaulting to every stream the server publishes.
func NewLiveHandler(hub *realtime.Hub, authn middleware.TokenAuthenticator, streams ...string) (*LiveHandler, error) {
	if hub == nil {
		return nil, errors.New("live handler: hub is required")
	}
	if authn == nil {
		return nil, errors.New("live handler: authenticator is required")
	}
	if len(streams) == 0 {
		streams = realtime.DefaultStreams()
	}

	allowed := make(map[string]struct{}, len(streams))
	for _, stream := range streams {
		if stream = normalizeStream(stream); stream != "" {
			allowed[stream] = struct{}{}
		}
	}

	return &LiveHandler{hub: hub, authn: authn, allowedStreams: allowed}, nil
}

// GET /api/live
//
// Browsers cannot set headers on websocket upgrades, so the token may also
// arrive as the token query parameter.
func (h *LiveHandler) Stream(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = middleware.ExtractToken(c)
	}
	if token == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	claims, err := h.authn.Authenticate(requestContext(c), token)
	if err != nil || strings.TrimSpace(claims.Operator) == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	streams := gatherStreams(c)
	if len(streams) == 0 {
		streams = realtime.DefaultStreams()
	}
	for _, stream := range streams {
		if _, ok := h.allowedStreams[stream]; !ok {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
	}

	h.hub.Serve(claims.Operator, streams, h.allowedStreams, c.Writer, c.Request)
}

func gatherStreams(c *gin.Context) []string {
	var streams []string

	for _, queryStream := range c.QueryArray("stream") {
		if normalized := normalizeStream(queryStream); normalized != "" {
			streams = append(streams, normalized)
		}
	}

	if raw := c.Query("streams"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if normalized := normalizeStream(part); normalized != "" {
				streams = append(streams, normalized)
			}
		}
	}

	return uniqueStreams(streams)
}

func normalizeStream(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func uniqueStreams(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
