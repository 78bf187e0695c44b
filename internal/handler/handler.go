package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Dan9191/wallet-service/internal/config"
	"github.com/Dan9191/wallet-service/internal/flow"
	"github.com/Dan9191/wallet-service/internal/repository"
	"github.com/Dan9191/wallet-service/internal/service"
	"github.com/Dan9191/wallet-service/internal/states"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	svc    *service.Service
	flows  *flow.Manager
	states *states.Table
	cfg    *config.Config
	log    *logrus.Logger
}

func NewHandler(svc *service.Service, flows *flow.Manager, table *states.Table, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, flows: flows, states: table, cfg: cfg, log: log}
}

type loginRequest struct {
	Password string `json:"password"`
}

type setAmountRequest struct {
	EntityID string           `json:"entity_id"`
	Value    *decimal.Decimal `json:"value"`
}

type setStateRequest struct {
	State      string                 `json:"state"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Login exchanges the admin password for a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.cfg.AdminPasswordHash == "" {
		http.Error(w, "Login disabled", http.StatusServiceUnavailable)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.AdminPasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.log.Errorf("Failed to generate token: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartFlow opens a wallet wizard
func (h *Handler) StartFlow(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.flows.Start())
}

// ConfigureFlow submits the current step of a wizard
func (h *Handler) ConfigureFlow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	res, err := h.flows.Configure(r.Context(), mux.Vars(r)["flow_id"], body)
	if err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			http.Error(w, "Flow not found", http.StatusNotFound)
			return
		}
		h.log.Warnf("Flow step failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ListEntries returns the wallet entries
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Entries())
}

// DeleteEntry removes a wallet entry and its sensors
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveEntry(r.Context(), mux.Vars(r)["entry_id"])
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return
		}
		h.log.Errorf("Failed to remove entry: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSensors returns every wallet sensor
func (h *Handler) ListSensors(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Sensors())
}

// GetSensor returns one wallet sensor
func (h *Handler) GetSensor(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Sensor(mux.Vars(r)["entity_id"])
	if err != nil {
		http.Error(w, "Sensor not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

// SetAmount is the set_amount action
func (h *Handler) SetAmount(w http.ResponseWriter, r *http.Request) {
	var req setAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.EntityID == "" {
		http.Error(w, "entity_id is required", http.StatusBadRequest)
		return
	}
	if req.Value == nil {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.SetAmount(r.Context(), req.EntityID, *req.Value); err != nil {
		if errors.Is(err, service.ErrSensorNotFound) {
			http.Error(w, "Sensor not found", http.StatusNotFound)
			return
		}
		h.log.Errorf("Failed to set amount: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetState returns the published state of any entity
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.states.Get(mux.Vars(r)["entity_id"])
	if !ok {
		http.Error(w, "Entity not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

// SetState lets external trackers publish a state
func (h *Handler) SetState(w http.ResponseWriter, r *http.Request) {
	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	entityID := mux.Vars(r)["entity_id"]
	if _, err := h.svc.Sensor(entityID); err == nil {
		http.Error(w, "Wallet sensors cannot be written", http.StatusConflict)
		return
	}
	h.writeJSON(w, http.StatusOK, h.states.Set(entityID, req.State, req.Attributes))
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}
