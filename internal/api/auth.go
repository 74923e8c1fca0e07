package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chain-assassin/coordinator/internal/coordinator"
)

// ──────────────────────────────────────────────────────────────────
// Signed-header player authentication
//
// Every player-facing endpoint is scoped to a single game (:id in the
// path). The caller proves control of a wallet address by signing
// "chain-assassin:{timestamp}" and presenting the result as
// X-Address / X-Signature / X-Message. Generalizes the teacher's static
// bearer-token AuthMiddleware to per-request signature recovery instead of
// a shared secret.
// ──────────────────────────────────────────────────────────────────

const ctxAddressKey = "chainassassin.address"

// SignatureAuthMiddleware validates the signed-header triple (the signer of
// X-Message must be X-Address, with a fresh timestamp) and stores the
// address in the gin context. The game id from the path is parsed but is
// not part of the signed message and is not checked against the signer.
func SignatureAuthMiddleware(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
			c.Abort()
			return
		}

		address := c.GetHeader("X-Address")
		signature := c.GetHeader("X-Signature")
		message := c.GetHeader("X-Message")
		if address == "" || signature == "" || message == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing X-Address/X-Signature/X-Message headers",
			})
			c.Abort()
			return
		}

		if !coord.AuthenticateREST(gameID, address, signature, message) {
			c.JSON(http.StatusForbidden, gin.H{"error": "signature verification failed"})
			c.Abort()
			return
		}

		c.Set(ctxAddressKey, address)
		c.Next()
	}
}

func addressFromContext(c *gin.Context) string {
	v, _ := c.Get(ctxAddressKey)
	addr, _ := v.(string)
	return addr
}

// ──────────────────────────────────────────────────────────────────
// Admin bearer token authentication
//
// Operator-console-only endpoints (auto-start sweep, recovery status,
// outbox visibility) keep the teacher's static bearer token shape — these
// are operated by the coordinator's own operator tooling, not players, so
// signature recovery doesn't apply.
// ──────────────────────────────────────────────────────────────────

// AdminAuthMiddleware returns a Gin middleware that validates bearer
// tokens against ADMIN_AUTH_TOKEN. If the token is unset, all requests are
// allowed (dev mode).
func AdminAuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("ADMIN_AUTH_TOKEN")

	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[SECURITY WARNING] ADMIN_AUTH_TOKEN is not set in release mode. " +
			"All admin endpoints are publicly accessible. " +
			"Set ADMIN_AUTH_TOKEN in your environment to enforce authentication.")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <ADMIN_AUTH_TOKEN>",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
