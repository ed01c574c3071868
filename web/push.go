package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/envdash/uda/measurement"
)

// The JSON envelope Cloud Pub/Sub pushes to the endpoint.
// See https://cloud.google.com/pubsub/docs/push.
type pushRequest struct {
	Message struct {
		Attributes map[string]string
		Data       []byte
		ID         string `json:"message_id"`
	}
	Subscription string
}

// pushHandler ingests readings pushed by Pub/Sub. The message data is a
// JSON-encoded measurement.Measurement.
type pushHandler struct {
	Config PushConfig
	Server *Server
}

// Overridden in tests.
var validateIDToken = idtoken.Validate

func (h pushHandler) authenticate(ctx context.Context, r *http.Request) error {
	if token, ok := r.URL.Query()["token"]; !ok || len(token) != 1 || token[0] != h.Config.Token {
		return errors.New("bad token")
	}

	if h.Config.Audience == "" {
		return nil
	}

	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 {
		return errors.New("missing Authorization header")
	}

	payload, err := validateIDToken(ctx, parts[1], h.Config.Audience)
	if err != nil {
		return fmt.Errorf("invalid JWT: %w", err)
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.New("wrong issuer")
	}

	return nil
}

// shouldIgnore reports whether the device ID contains any of the ignored
// substrings. Empty strings match nothing.
func (h pushHandler) shouldIgnore(deviceID string) bool {
	for _, s := range h.Config.IgnoredDevices {
		if s != "" && strings.Contains(deviceID, s) {
			return true
		}
	}
	return false
}

func (h pushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.authenticate(ctx, r); err != nil {
		h.Server.errorf(r, "authentication failed", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := &pushRequest{}
	if err := json.NewDecoder(r.Body).Decode(msg); err != nil {
		h.Server.errorf(r, "could not decode body", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("could not decode body: %v", err))
		return
	}

	// Pub/Sub only stops retrying on a 200, so bad payloads are acknowledged
	// after being logged.
	var m measurement.Measurement
	if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
		h.Server.errorf(r, "could not decode measurement", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.shouldIgnore(m.DeviceID) {
		h.Server.logger().Info("ignoring measurement", "device", m.DeviceID, "measurement", m.String())
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.Server.Poller == nil {
		writeError(w, http.StatusServiceUnavailable, "not ingesting")
		return
	}

	if err := h.Server.Poller.Ingest(ctx, m); err != nil {
		h.Server.errorf(r, "ingest failed", err)
	}

	w.WriteHeader(http.StatusOK)
}
