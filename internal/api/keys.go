package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/farescout/farescout/internal/auth/apikey"
	"github.com/farescout/farescout/pkg/logger"
)

// KeyHandler serves the API key administration endpoints. It is only wired
// when authentication is enabled.
type KeyHandler struct {
	validator *apikey.Validator
	handler   *Handler
}

func NewKeyHandler(validator *apikey.Validator, h *Handler) *KeyHandler {
	return &KeyHandler{validator: validator, handler: h}
}

// CreateKey issues a new API key and returns the raw key (shown once).
func (k *KeyHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
		ExpiresIn string `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		k.handler.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		k.handler.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = 100
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			k.handler.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := time.Now().UTC().Add(d)
		expiresAt = &t
	}

	key, err := k.validator.CreateKey(ctx, req.Name, req.RateLimit, expiresAt)
	if err != nil {
		log.Error("api key creation failed", "name", req.Name, "error", err)
		k.handler.writeError(w, http.StatusInternalServerError, "failed to create api key")
		return
	}

	k.handler.writeJSON(w, http.StatusCreated, map[string]string{
		"api_key": key,
		"name":    req.Name,
		"message": "store this key securely, it cannot be retrieved again",
	})
}

// ListKeys returns all active API keys (without hashes).
func (k *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := k.validator.ListKeys(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("api key listing failed", "error", err)
		k.handler.writeError(w, http.StatusInternalServerError, "failed to list api keys")
		return
	}
	k.handler.writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}
