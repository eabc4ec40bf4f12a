package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bughunt/internal/common"
	"github.com/dmitrijs2005/bughunt/internal/server/metrics"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/dmitrijs2005/bughunt/internal/server/services"
	"github.com/gorilla/mux"
)

const apiVersion = "1.0.0"

var endpoints = map[string]map[string]string{
	"auth": {
		"POST /api/auth/login":          "log in",
		"POST /api/auth/logout":         "log out",
		"GET /api/auth/profile":         "current user's profile",
		"PUT /api/auth/profile":         "update profile",
		"PUT /api/auth/change-password": "change password",
	},
	"users": {
		"POST /api/users/register": "public registration",
		"POST /api/users":          "create user (admin)",
		"GET /api/users":           "list users (admin)",
		"GET /api/users/{id}":      "get user by id (admin)",
	},
	"bugs": {
		"POST /api/bugs":              "create bug",
		"GET /api/bugs":               "list bugs with screenshots",
		"GET /api/bugs/{id}":          "get bug",
		"PATCH /api/bugs/{id}":        "edit bug (creator or admin)",
		"PATCH /api/bugs/{id}/status": "update bug status (admin or developer)",
		"POST /api/bugs/upload":       "upload screenshot",
	},
	"system": {
		"GET /health":  "database health check",
		"GET /metrics": "prometheus metrics",
	},
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "BugHunt Backend API", map[string]any{
		"version":   apiVersion,
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn(r.Context(), "health check failed", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, Envelope{
			Success: false,
			Message: "database unavailable",
			Data:    map[string]string{"status": "down"},
		})
		return
	}
	writeSuccess(w, http.StatusOK, "ok", map[string]string{"status": "up"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, "route not found")
}

// users

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (req registerRequest) input() services.RegisterInput {
	return services.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Register(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "user registered successfully", user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.CreateUser(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "user created successfully", user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "users retrieved successfully", list)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "user retrieved successfully", user)
}

// auth

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.users.Login(r.Context(), req.Email, req.Password)
	s.metrics.LoginAttemptsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "login successful", res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "logout successful", nil)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "profile retrieved successfully", map[string]any{
		"user": IdentityFrom(r.Context()),
	})
}

type profileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := IdentityFrom(r.Context())
	user, err := s.users.UpdateProfile(r.Context(), caller.ID, models.ProfilePatch{Name: req.Name, Email: req.Email})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "profile updated successfully", user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := IdentityFrom(r.Context())
	if err := s.users.ChangePassword(r.Context(), caller.ID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "password updated successfully", nil)
}

// bugs

type bugRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Server) handleCreateBug(w http.ResponseWriter, r *http.Request) {
	var req bugRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := IdentityFrom(r.Context())
	bug, err := s.bugs.Create(r.Context(), deref(req.Title), deref(req.Description), caller.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.BugsCreatedTotal.Inc()
	writeSuccess(w, http.StatusCreated, "bug created successfully", bug)
}

func (s *Server) handleListBugs(w http.ResponseWriter, r *http.Request) {
	list, err := s.bugs.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "bugs retrieved successfully", list)
}

func (s *Server) handleGetBug(w http.ResponseWriter, r *http.Request) {
	bug, err := s.bugs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "bug retrieved successfully", bug)
}

func (s *Server) handleEditBug(w http.ResponseWriter, r *http.Request) {
	var req bugRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := IdentityFrom(r.Context())
	bug, err := s.bugs.Edit(r.Context(), mux.Vars(r)["id"],
		models.BugPatch{Title: req.Title, Description: req.Description}, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "bug updated successfully", bug)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	bug, err := s.bugs.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "bug status updated successfully", bug)
}

// multipartOverhead is the room left for form fields and part headers on
// top of the file size limit.
const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, fmt.Errorf("%w: file too large, maximum %dMB", common.ErrPayloadTooLarge, s.maxUpload>>20))
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: invalid multipart body", common.ErrValidation))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var up *services.Upload
	file, header, err := r.FormFile("screenshot")
	if err == nil {
		defer file.Close()
		up = &services.Upload{
			File:        file,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
		}
	}

	shot, err := s.screenshots.Attach(r.Context(), r.FormValue("bug_id"), up)
	s.metrics.ScreenshotUploadsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "screenshot uploaded successfully", shot)
}
