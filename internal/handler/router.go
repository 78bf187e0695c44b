package handler

import (
	"github.com/Dan9191/wallet-service/internal/config"
	"github.com/Dan9191/wallet-service/internal/middleware"
	"github.com/gorilla/mux"
)

// NewRouter wires the public and protected routes
func NewRouter(h *Handler, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))
	api.HandleFunc("/flows", h.StartFlow).Methods("POST")
	api.HandleFunc("/flows/{flow_id}", h.ConfigureFlow).Methods("POST")
	api.HandleFunc("/entries", h.ListEntries).Methods("GET")
	api.HandleFunc("/entries/{entry_id}", h.DeleteEntry).Methods("DELETE")
	api.HandleFunc("/sensors", h.ListSensors).Methods("GET")
	api.HandleFunc("/sensors/{entity_id}", h.GetSensor).Methods("GET")
	api.HandleFunc("/services/wallet/set_amount", h.SetAmount).Methods("POST")
	api.HandleFunc("/states/{entity_id}", h.GetState).Methods("GET")
	api.HandleFunc("/states/{entity_id}", h.SetState).Methods("POST")
	return r
}
