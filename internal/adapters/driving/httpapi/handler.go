// Package httpapi exposes the user service over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"user-record-service/internal/core/domain"
	"user-record-service/internal/core/ports/driving"
)

// Handler serves the user and attribute endpoints
type Handler struct {
	users      driving.UserService
	attributes driving.AttributeQueryService
	backend    string
	sugar      *zap.SugaredLogger
}

// NewHandler creates a Handler. backend is reported by the health endpoint.
func NewHandler(users driving.UserService, attributes driving.AttributeQueryService, backend string, logger *zap.Logger) *Handler {
	return &Handler{
		users:      users,
		attributes: attributes,
		backend:    backend,
		sugar:      logger.Sugar(),
	}
}

// NewRouter wires the endpoints and middleware. Metrics are registered on
// reg and served from gatherer.
func NewRouter(h *Handler, reg prometheus.Registerer, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()

	// User endpoints. OPTIONS requests match a route so that corsMiddleware
	// can answer preflights.
	router.HandleFunc("/users", h.createUserHandler).Methods("POST", "OPTIONS")
	router.HandleFunc("/users/username/{username}", h.getUserByUsernameHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/users/id/{id}", h.getUserByIDHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/users/id/{id}", h.updateUserHandler).Methods("POST")
	router.HandleFunc("/users/id/{id}", h.deleteUserHandler).Methods("DELETE")

	// Attribute lookups
	router.HandleFunc("/attributes", h.findAttributesHandler).Methods("GET", "OPTIONS")

	router.HandleFunc("/health", h.healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Apply middleware
	router.Use(corsMiddleware)
	router.Use(loggingMiddleware(h.sugar))
	router.Use(newMetrics(reg).middleware)

	return router
}

// createUserHandler creates a user from the request body
func (h *Handler) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Name, req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) getUserByUsernameHandler(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	user, err := h.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) getUserByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// updateUserHandler replaces the fields of the user named by the path id
func (h *Handler) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}

	user := &domain.User{
		ID:       mux.Vars(r)["id"],
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
	}
	updated, err := h.users.UpdateUser(r.Context(), user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// deleteUserHandler answers 200 whether or not the user existed
func (h *Handler) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.users.DeleteUserByID(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// findAttributesHandler looks up raw attributes by ?name= and/or ?value=
func (h *Handler) findAttributesHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var query domain.AttributeQuery
	if params.Has("name") {
		name := params.Get("name")
		query.Name = &name
	}
	if params.Has("value") {
		value := params.Get("value")
		query.Value = &value
	}

	attrs, err := h.attributes.FindAttributes(r.Context(), query)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := map[string]interface{}{
		"attributes": attrs,
		"count":      len(attrs),
	}
	writeJSON(w, http.StatusOK, response)
}

// healthHandler provides a health check endpoint
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "user-record-service",
		"store":   h.backend,
	}
	writeJSON(w, http.StatusOK, response)
}

// writeError maps domain errors to a status code and a UserError body
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		status int
		body   domain.UserError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		body = domain.UserError{StatusString: "Not Found", ErrorMessage: "Cannot find any matching user"}
	case errors.Is(err, domain.ErrDuplicateRecord):
		status = http.StatusBadRequest
		body = domain.UserError{StatusString: "Unable to complete", ErrorMessage: "User data provided must be unique"}
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		body = domain.UserError{StatusString: "Bad Request", ErrorMessage: "Invalid request format"}
	default:
		h.sugar.Errorw("request failed", "err", err)
		status = http.StatusInternalServerError
		body = domain.UserError{StatusString: "Internal Server Error", ErrorMessage: "Unable to process request"}
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
