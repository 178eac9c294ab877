package authapi

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"
)

func (h *Handler) auditRegister(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.register", &userID, ip, ua, nil)
}

func (h *Handler) auditLoginFailed(ctx context.Context, userID *string, ip net.IP, ua, email, reason string) {
	h.insertAudit(ctx, "auth.login.failed", userID, ip, ua, map[string]any{
		"email":  email,
		"reason": reason,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.login.success", &userID, ip, ua, nil)
}

func (h *Handler) auditLoginLocked(ctx context.Context, ip net.IP, ua, email string, retryAfter time.Duration) {
	h.insertAudit(ctx, "auth.login.locked", nil, ip, ua, map[string]any{
		"email":         email,
		"retry_after_s": int64(retryAfter.Seconds()),
	})
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.success", &userID, ip, ua, nil)
}

func (h *Handler) auditRefreshReuse(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.reuse_detected", nil, ip, ua, nil)
}

func (h *Handler) auditLogout(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout", &userID, ip, ua, nil)
}

func (h *Handler) auditLogoutAll(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout_all", &userID, ip, ua, nil)
}

// insertAudit writes a best-effort audit row. Memory-mode deployments have
// no pool and skip silently; a failed insert is logged but never surfaces to
// the request.
func (h *Handler) insertAudit(ctx context.Context, action string, userID *string, ip net.IP, ua string, meta map[string]any) {
	if h == nil || h.pool == nil {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	var ipVal any
	if ip != nil {
		ipVal = ip.String()
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO huddle.audit_log (
			user_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, userID, action, ipVal, trimOrNil(ua), metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
