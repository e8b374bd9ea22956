package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"ms-payment-gateway/internal/auth"
	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/square"
)

// AntiForgeryHeader carries the per-identity token on state-changing admin
// requests.
const AntiForgeryHeader = "X-Anti-Forgery-Token"

// SquareProber is the connectivity test slice of the Square client.
type SquareProber interface {
	TestConnection(ctx context.Context) square.ProbeResult
}

type Handler struct {
	prober      SquareProber
	antiForgery *auth.AntiForgery
	adminRole   string
	log         *logger.Logger
}

func NewHandler(prober SquareProber, antiForgery *auth.AntiForgery, adminRole string, log *logger.Logger) *Handler {
	return &Handler{
		prober:      prober,
		antiForgery: antiForgery,
		adminRole:   adminRole,
		log:         log,
	}
}

// GetAntiForgeryToken mints the caller's token for subsequent state-changing
// requests.
func (h *Handler) GetAntiForgeryToken(c *gin.Context) {
	ctx := c.Request.Context()
	if !auth.HasRole(ctx, h.adminRole) {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "Insufficient privileges"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": h.antiForgery.TokenFor(auth.UserID(ctx))})
}

// TestConnection probes the Square API with the stored credentials. Both the
// privilege check and the anti-forgery check run before anything leaves the
// process.
func (h *Handler) TestConnection(c *gin.Context) {
	ctx := c.Request.Context()

	if !auth.HasRole(ctx, h.adminRole) {
		h.log.LogSecurity("PROBE_DENIED", "connection test refused for user "+auth.UserID(ctx))
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "Insufficient privileges"})
		return
	}

	if err := h.antiForgery.Verify(auth.UserID(ctx), c.GetHeader(AntiForgeryHeader)); err != nil {
		h.log.LogSecurity("PROBE_DENIED", "connection test with invalid anti-forgery token for user "+auth.UserID(ctx))
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "Invalid anti-forgery token"})
		return
	}

	result := h.prober.TestConnection(ctx)
	c.JSON(http.StatusOK, gin.H{
		"success": result.OK,
		"message": result.Message,
	})
}

// TestConnectionChi is the chi-compatible version of TestConnection.
func (h *Handler) TestConnectionChi(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")

	if !auth.HasRole(ctx, h.adminRole) {
		h.log.LogSecurity("PROBE_DENIED", "connection test refused for user "+auth.UserID(ctx))
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "Insufficient privileges"})
		return
	}

	if err := h.antiForgery.Verify(auth.UserID(ctx), r.Header.Get(AntiForgeryHeader)); err != nil {
		h.log.LogSecurity("PROBE_DENIED", "connection test with invalid anti-forgery token for user "+auth.UserID(ctx))
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "Invalid anti-forgery token"})
		return
	}

	result := h.prober.TestConnection(ctx)
	json.NewEncoder(w).Encode(map[string]any{
		"success": result.OK,
		"message": result.Message,
	})
}

// GinAuth adapts the OIDC verifying middleware for gin routers.
func GinAuth(issuer string) gin.HandlerFunc {
	mw := auth.Middleware(issuer)
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}
