package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"huddle/cmd/identity"
	"huddle/cmd/internal/auth/session"
	"huddle/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	pool    *pgxpool.Pool
	metrics *Metrics

	sessions *session.Service

	access  RequestValidator
	refresh RequestValidator
}

// NewHandler constructs an auth Handler. pool may be nil (memory mode:
// audit rows are skipped); metrics may be nil (counters are skipped).
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, pool *pgxpool.Pool, metrics *Metrics) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}

	return &Handler{
		log:      log,
		cfg:      cfg,
		pool:     pool,
		metrics:  metrics,
		sessions: sessions,
		access:   AccessValidator{Sessions: sessions, CookieName: cfg.AccessCookieName},
		refresh:  RefreshValidator{Sessions: sessions, CookieName: cfg.RefreshCookieName},
	}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh-token", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/logout-all", h.handleLogoutAll)
	mux.HandleFunc("/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email, username and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	u, pair, err := h.sessions.Register(ctx, now, email, username, req.Password)
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "conflict", "email already registered")
		case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "invalid_password", err.Error())
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditRegister(ctx, u.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	if h.metrics != nil {
		h.metrics.Registered.Inc()
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Tokens:  tokensPayload{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	u, pair, err := h.sessions.Login(ctx, now, email, req.Password)
	if err != nil {
		var locked session.AccountLockedError
		switch {
		case errors.As(err, &locked):
			h.auditLoginLocked(ctx, ip, ua, email, locked.RetryAfter)
			h.countLogin("locked")
			if h.metrics != nil {
				h.metrics.Lockouts.Inc()
			}
			writeLocked(w, locked.RetryAfter, locked.Error())
		case errors.Is(err, session.ErrInvalidCredentials):
			h.auditLoginFailed(ctx, nil, ip, ua, email, "invalid_credentials")
			h.countLogin("invalid")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		default:
			h.log.Error("auth.login.fail", "err", err)
			h.countLogin("error")
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditLoginSuccess(ctx, u.ID, ip, ua)
	h.countLogin("success")

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Tokens:  tokensPayload{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	ident, err := h.refresh.Validate(r, now)
	if err != nil {
		h.writeRefreshError(w, r, err, ip, ua)
		return
	}

	presented := tokenFromRequest(r, h.cfg.RefreshCookieName)
	pair, err := h.sessions.Refresh(ctx, now, ident, presented)
	if err != nil {
		h.writeRefreshError(w, r, err, ip, ua)
		return
	}

	h.auditRefreshSuccess(ctx, ident.UserID, ip, ua)
	h.countRefresh("success")

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken})
}

func (h *Handler) writeRefreshError(w http.ResponseWriter, r *http.Request, err error, ip net.IP, ua string) {
	switch {
	case errors.Is(err, session.ErrReplayDetected):
		h.auditRefreshReuse(r.Context(), ip, ua)
		h.countRefresh("replay")
		if h.metrics != nil {
			h.metrics.ReplayHits.Inc()
		}
		h.clearSessionCookies(w)
		writeError(w, http.StatusUnauthorized, session.ReplayCode, "refresh token reuse detected")
	case errors.Is(err, session.ErrTokenRevoked):
		h.countRefresh("invalid")
		writeError(w, http.StatusUnauthorized, "token_revoked", "token has been revoked")
	case errors.Is(err, session.ErrTokenExpired):
		h.countRefresh("invalid")
		writeError(w, http.StatusUnauthorized, "token_expired", "token expired")
	case errors.Is(err, session.ErrInvalidToken):
		h.countRefresh("invalid")
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or missing token")
	default:
		h.log.Error("auth.refresh.fail", "err", err)
		h.countRefresh("error")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ident, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.sessions.Logout(ctx, ident); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogout(ctx, ident.UserID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ident, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.sessions.RevokeAll(ctx, ident); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogoutAll(ctx, ident.UserID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	if h.metrics != nil {
		h.metrics.Revocations.Inc()
	}
	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ident, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	u, err := h.sessions.GetUser(r.Context(), ident)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.Identity, bool) {
	ident, err := h.access.Validate(r, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenRevoked):
			writeError(w, http.StatusUnauthorized, "token_revoked", "token has been revoked")
		case errors.Is(err, session.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "token_expired", "token expired")
		default:
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing token")
		}
		return session.Identity{}, false
	}
	return ident, true
}

func (h *Handler) countLogin(result string) {
	if h.metrics != nil {
		h.metrics.Logins.WithLabelValues(result).Inc()
	}
}

func (h *Handler) countRefresh(result string) {
	if h.metrics != nil {
		h.metrics.Refreshes.WithLabelValues(result).Inc()
	}
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
