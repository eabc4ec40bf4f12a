package rest

import (
	"net/http"

	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/gorilla/mux"
)

// Handler builds the routed handler with recovery and access logging applied
// to every request, matched or not.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.Instrument)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// users
	api.HandleFunc("/users/register", s.handleRegister).Methods(http.MethodPost)
	api.Handle("/users", s.adminOnly(s.handleCreateUser)).Methods(http.MethodPost)
	api.Handle("/users", s.adminOnly(s.handleListUsers)).Methods(http.MethodGet)
	api.Handle("/users/{id}", s.adminOnly(s.handleGetUser)).Methods(http.MethodGet)

	// auth
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.Handle("/auth/logout", s.authed(s.handleLogout)).Methods(http.MethodPost)
	api.Handle("/auth/profile", s.authed(s.handleProfile)).Methods(http.MethodGet)
	api.Handle("/auth/profile", s.authed(s.handleUpdateProfile)).Methods(http.MethodPut)
	api.Handle("/auth/change-password", s.authed(s.handleChangePassword)).Methods(http.MethodPut)

	// bugs
	api.Handle("/bugs/upload", s.authed(s.handleUpload)).Methods(http.MethodPost)
	api.Handle("/bugs", s.authed(s.handleCreateBug)).Methods(http.MethodPost)
	api.Handle("/bugs", s.authed(s.handleListBugs)).Methods(http.MethodGet)
	api.Handle("/bugs/{id}", s.authed(s.handleGetBug)).Methods(http.MethodGet)
	api.Handle("/bugs/{id}", s.authed(s.handleEditBug)).Methods(http.MethodPatch)
	api.Handle("/bugs/{id}/status",
		s.Authenticate(RequireRole(models.RoleAdmin, models.RoleDeveloper)(http.HandlerFunc(s.handleUpdateStatus))),
	).Methods(http.MethodPatch)

	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadsDir))),
	).Methods(http.MethodGet, http.MethodHead)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)

	return s.AccessLog(s.Recovery(r))
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.Authenticate(h)
}

func (s *Server) adminOnly(h http.HandlerFunc) http.Handler {
	return s.Authenticate(RequireRole(models.RoleAdmin)(h))
}
