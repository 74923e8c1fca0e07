// Package api is the coordinator's HTTP/WebSocket surface (spec §6): the
// REST endpoints players and the operator console call, the WebSocket
// upgrade endpoint, and the ambient CORS/rate-limit/auth middleware.
// Grounded on the teacher's internal/api/routes.go: a single APIHandler
// struct built once at startup, a public route group and a protected group
// behind middleware, CORS read from ALLOWED_ORIGINS.
package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chain-assassin/coordinator/internal/chainadapter"
	"github.com/chain-assassin/coordinator/internal/coordinator"
	"github.com/chain-assassin/coordinator/internal/metrics"
	"github.com/chain-assassin/coordinator/internal/realtime"
	"github.com/chain-assassin/coordinator/internal/store"
)

// APIHandler wires every dependency a handler method needs, injected once
// at construction instead of reached for via globals.
type APIHandler struct {
	coord    *coordinator.Coordinator
	st       store.Store
	hub      *realtime.Hub
	adapter  *chainadapter.Adapter
	promReg  *prometheus.Registry
}

// SetupRouter builds the gin engine: CORS, public health/metrics/websocket
// endpoints, and the signed-auth + rate-limited player/admin API.
func SetupRouter(coord *coordinator.Coordinator, st store.Store, hub *realtime.Hub, adapter *chainadapter.Adapter, promReg *prometheus.Registry) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Address, X-Signature, X-Message, Authorization, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &APIHandler{coord: coord, st: st, hub: hub, adapter: adapter, promReg: promReg}

	r.GET("/health", h.handleHealth)
	if promReg != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(promReg)))
	}

	pub := r.Group("/api")
	{
		pub.GET("/games/:id/status", h.handleGameStatus)
		pub.GET("/games/:id/ws", h.handleWebSocket)
	}

	auth := r.Group("/api/games/:id")
	auth.Use(SignatureAuthMiddleware(coord))
	auth.Use(NewRateLimiter(30, 10).Middleware())
	{
		auth.POST("/checkin", h.handleCheckin)
		auth.POST("/location", h.handleLocation)
		auth.POST("/kill", h.handleKill)
		auth.POST("/heartbeat", h.handleHeartbeat)
	}

	admin := r.Group("/api/admin")
	admin.Use(AdminAuthMiddleware())
	{
		admin.POST("/check-auto-start", h.handleCheckAutoStart)
		admin.GET("/games/:id/recovery-status", h.handleRecoveryStatus)
		admin.GET("/games/:id/operator-tx", h.handleOperatorTxOutbox)
	}

	return r
}

func gameIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return 0, false
	}
	return id, true
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *APIHandler) handleGameStatus(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	status, err := h.coord.GetGameStatus(c.Request.Context(), gameID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *APIHandler) handleWebSocket(c *gin.Context) {
	h.hub.Serve(c, h.coord, h.coord)
}

func (h *APIHandler) handleCheckAutoStart(c *gin.Context) {
	if err := h.coord.CheckAutoStart(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "checked"})
}

func (h *APIHandler) handleRecoveryStatus(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	cursor, err := h.st.GetSyncCursor(c.Request.Context())
	resp := gin.H{"gameId": gameID}
	if err == nil {
		resp["syncCursor"] = gin.H{"blockHeight": cursor.BlockHeight, "blockHash": cursor.BlockHash.String()}
	}
	g, err := h.st.GetGame(c.Request.Context(), gameID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	resp["phase"] = g.Phase
	resp["subPhase"] = g.SubPhase
	c.JSON(http.StatusOK, resp)
}

func (h *APIHandler) handleOperatorTxOutbox(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	txs, err := h.st.ListOperatorTxByGame(c.Request.Context(), gameID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, len(txs))
	for i, tx := range txs {
		entry := gin.H{
			"id":          tx.ID,
			"action":      tx.Action,
			"status":      tx.Status,
			"submittedAt": tx.SubmittedAt,
			"error":       tx.Error,
		}
		if tx.TxHash != nil {
			entry["txHash"] = tx.TxHash.String()
		}
		out[i] = entry
	}
	c.JSON(http.StatusOK, gin.H{"gameId": gameID, "outbox": out})
}
