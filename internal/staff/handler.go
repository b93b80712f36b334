package staff

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cms-backend/internal/auth"
	"cms-backend/internal/httpx"
	"cms-backend/internal/middleware"
	"cms-backend/internal/transport"
	"cms-backend/internal/validation"
)

const refreshCookiePath = "/api/v1/admin"

type Handler struct {
	service      *Service
	tokens       *auth.Manager
	val          *validation.Validator
	log          *slog.Logger
	cookieSecure bool
	debug        bool
}

func NewHandler(service *Service, tokens *auth.Manager, val *validation.Validator, log *slog.Logger, cookieSecure, debug bool) *Handler {
	return &Handler{
		service:      service,
		tokens:       tokens,
		val:          val,
		log:          log,
		cookieSecure: cookieSecure,
		debug:        debug,
	}
}

type sessionResponse struct {
	User User `json:"user"`
	Session
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin login: validation error")
		transport.WriteError(w, http.StatusUnprocessableEntity, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, session, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.writeAuthError(w, log, "admin login", err, slog.String("username", req.Username))
		return
	}

	h.setCookies(w, session)
	log.Info("admin login: ok", slog.String("staff_id", user.ID))
	transport.WriteData(w, http.StatusOK, sessionResponse{User: user, Session: session})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	token := ""
	if cookie, err := r.Cookie(auth.RefreshCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := httpx.DecodeJSON(r.Body, &body); err == nil {
			token = body.RefreshToken
		}
	}
	if token == "" {
		log.Warn("admin refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, session, err := h.service.Refresh(ctx, token)
	if err != nil {
		h.writeAuthError(w, log, "admin refresh", err)
		return
	}

	h.setCookies(w, session)
	log.Info("admin refresh: ok", slog.String("staff_id", user.ID))
	transport.WriteData(w, http.StatusOK, sessionResponse{User: user, Session: session})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	h.clearCookies(w)
	log.Info("admin logout: ok")
	transport.WriteMessage(w, http.StatusOK, "signed out", nil)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)
	current, _ := middleware.StaffFromContext(r.Context())
	if current.ID == "" {
		// Shared admin key: there is no staff record behind the request.
		transport.WriteData(w, http.StatusOK, map[string]string{"role": current.Role})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.Me(ctx, current.ID)
	if err != nil {
		transport.WriteServiceError(w, log, "admin me", err, h.debug)
		return
	}
	transport.WriteData(w, http.StatusOK, user)
}

func (h *Handler) writeAuthError(w http.ResponseWriter, log *slog.Logger, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		log.Warn(op + ": not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
	case errors.Is(err, ErrInvalidCredentials):
		log.Warn(op+": invalid credentials", attrs...)
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.Is(err, ErrInvalidToken):
		log.Warn(op + ": invalid refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
	default:
		transport.WriteServiceError(w, log, op, err, h.debug)
	}
}

func (h *Handler) setCookies(w http.ResponseWriter, session Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookie,
		Value:    session.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.tokens.AccessTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookie,
		Value:    session.RefreshToken,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.tokens.RefreshTTL.Seconds()),
	})
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	expire := time.Now().Add(-1 * time.Hour)
	for _, c := range []struct{ name, path string }{
		{auth.AccessCookie, "/"},
		{auth.RefreshCookie, refreshCookiePath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			HttpOnly: true,
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
			Expires:  expire,
			MaxAge:   -1,
		})
	}
}
