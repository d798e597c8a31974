package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	"github.com/fleetdesk/loginverify/pkg/challenge"
	"github.com/fleetdesk/loginverify/pkg/verifyapi"
)

// Handle serves the login verification HTTP API.
type Handle struct {
	service   *challenge.Service
	directory challenge.Directory
	jwtAuth   *jwtauth.JWTAuth
}

func NewHandle(service *challenge.Service, directory challenge.Directory, jwtAuth *jwtauth.JWTAuth) *Handle {
	return &Handle{
		service:   service,
		directory: directory,
		jwtAuth:   jwtAuth,
	}
}

// Routes returns the router for the verification API. Auth endpoints are
// public; profile and telemetry endpoints require a bearer token.
func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/login", h.Login)
	r.Post("/auth/verify", h.Verify)
	r.Post("/auth/resend", h.Resend)
	r.Post("/telemetry/events", h.ReportEvent)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.jwtAuth))
		r.Use(jwtauth.Authenticator(h.jwtAuth))

		r.Get("/users/{userID}", h.GetUser)
		r.Get("/roles/{roleID}", h.GetRole)
		r.Get("/permissions/{permissionID}", h.GetPermissions)
		r.Post("/telemetry/location", h.ReportLocation)
	})

	return r
}

// Login handles POST /auth/login. It issues the first verification challenge
// for the email.
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	var req verifyapi.ResendRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Invalid request body"})
		return
	}
	if req.Email == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Email is required"})
		return
	}

	result, err := h.service.Issue(r.Context(), req.Email, req.Lat, req.Lng)
	if err != nil {
		h.renderIssueError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, issueResponse(result))
}

// Verify handles POST /auth/verify.
func (h *Handle) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyapi.VerifyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Invalid request body"})
		return
	}
	if req.Email == "" || req.Code == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Email and code are required"})
		return
	}

	result, err := h.service.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		status := http.StatusBadRequest
		message := "Verification failed"

		switch {
		case errors.Is(err, challenge.ErrChallengeNotFound), errors.Is(err, challenge.ErrUnknownUser):
			status = http.StatusUnauthorized
			message = "Login attempt not found"
		case errors.Is(err, challenge.ErrCodeExpired):
			message = "Verification code has expired"
		case errors.Is(err, challenge.ErrCodeInvalid):
			message = "Verification code is invalid"
		case errors.Is(err, challenge.ErrTooManyAttempts):
			message = "Too many invalid attempts. Request a new code"
		default:
			slog.Error("Failed to verify code", "email", req.Email, "err", err)
			status = http.StatusInternalServerError
			message = "An error occurred while verifying the code"
		}

		render.Status(r, status)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, verifyapi.VerifyResponse{
		Access:  result.Access,
		Refresh: result.Refresh,
		UserID:  result.User.ID,
		User:    result.User,
	})
}

// Resend handles POST /auth/resend.
func (h *Handle) Resend(w http.ResponseWriter, r *http.Request) {
	var req verifyapi.ResendRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Invalid request body"})
		return
	}
	if req.Email == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Email is required"})
		return
	}

	result, err := h.service.Resend(r.Context(), req.Email)
	if err != nil {
		h.renderIssueError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, issueResponse(result))
}

func (h *Handle) renderIssueError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	body := verifyapi.ErrorResponse{Message: "Request failed"}

	switch {
	case errors.Is(err, challenge.ErrUnknownUser), errors.Is(err, challenge.ErrChallengeNotFound):
		status = http.StatusUnauthorized
		body.Message = "Login attempt not found"
	case errors.Is(err, challenge.ErrResendCooldown):
		body.Message = "Please wait before requesting another code"
	case errors.Is(err, challenge.ErrEmailDelivery):
		status = http.StatusServiceUnavailable
		body.Error = verifyapi.ErrorCodeEmailFailed
		body.Message = "Verification email could not be sent"
	default:
		slog.Error("Failed to issue challenge", "err", err)
		status = http.StatusInternalServerError
		body.Message = "An error occurred while sending the code"
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

func issueResponse(result *challenge.IssueResult) verifyapi.ResendResponse {
	resp := verifyapi.ResendResponse{
		Message:               result.Message,
		VerificationExpiresAt: &result.VerificationExpiresAt,
		ResendAvailableAt:     &result.ResendAvailableAt,
		Lat:                   result.Lat,
		Lng:                   result.Lng,
	}
	sessions := result.ActiveSessionsCount
	resp.ActiveSessionsCount = &sessions
	if result.DebugCode != "" {
		resp.Debug = &verifyapi.DebugInfo{VerificationCode: result.DebugCode}
	}
	return resp
}

// GetUser handles GET /users/{userID}.
func (h *Handle) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	user, err := h.directory.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load user", "userID", userID, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "An error occurred"})
		return
	}
	if user == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "User not found"})
		return
	}
	render.JSON(w, r, user)
}

// GetRole handles GET /roles/{roleID}.
func (h *Handle) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	role, err := h.directory.GetRole(r.Context(), roleID)
	if err != nil {
		slog.Error("Failed to load role", "roleID", roleID, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "An error occurred"})
		return
	}
	if role == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Role not found"})
		return
	}
	render.JSON(w, r, role)
}

// GetPermissions handles GET /permissions/{permissionID}.
func (h *Handle) GetPermissions(w http.ResponseWriter, r *http.Request) {
	permissionID := chi.URLParam(r, "permissionID")
	perms, err := h.directory.GetPermissions(r.Context(), permissionID)
	if err != nil {
		slog.Error("Failed to load permissions", "permissionID", permissionID, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "An error occurred"})
		return
	}
	if perms == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Permissions not found"})
		return
	}
	render.JSON(w, r, perms)
}

// ReportLocation handles POST /telemetry/location. The report is accepted
// and logged; failures on the client side are fire-and-forget.
func (h *Handle) ReportLocation(w http.ResponseWriter, r *http.Request) {
	var report verifyapi.TelemetryReport
	if err := render.DecodeJSON(r.Body, &report); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Invalid request body"})
		return
	}

	slog.Info("Login location reported",
		"user", report.User,
		"lat", report.Latitude,
		"lng", report.Longitude,
		"deviceInfo", report.DeviceInfo,
		"pageStatus", report.PageStatus)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "accepted"})
}

// ReportEvent handles POST /telemetry/events.
func (h *Handle) ReportEvent(w http.ResponseWriter, r *http.Request) {
	var event map[string]interface{}
	if err := render.DecodeJSON(r.Body, &event); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyapi.ErrorResponse{Message: "Invalid request body"})
		return
	}

	slog.Info("Client event reported", "event", event)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "accepted"})
}
