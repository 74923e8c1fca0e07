package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// checkinRequest/locationRequest/killRequest/heartbeatRequest mirror the
// mobile client payloads named in spec §6.

type checkinRequest struct {
	Lat                float64  `json:"lat"`
	Lng                float64  `json:"lng"`
	QRPayload          string   `json:"qrPayload"`
	BluetoothID        string   `json:"bluetoothId"`
	BLENearbyAddresses []string `json:"bleNearbyAddresses"`
}

func (h *APIHandler) handleCheckin(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	verdict, err := h.coord.SubmitCheckin(c.Request.Context(), gameID, addressFromContext(c), req.Lat, req.Lng, req.QRPayload, req.BluetoothID, req.BLENearbyAddresses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !verdict.Valid {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": verdict.ErrorKind})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type locationRequest struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *APIHandler) handleLocation(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if err := h.coord.SubmitLocation(c.Request.Context(), gameID, addressFromContext(c), req.Lat, req.Lng, ts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type killRequest struct {
	QRPayload          string   `json:"qrPayload"`
	HunterLat          float64  `json:"hunterLat"`
	HunterLng          float64  `json:"hunterLng"`
	BLENearbyAddresses []string `json:"bleNearbyAddresses"`
}

func (h *APIHandler) handleKill(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	var req killRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	verdict, err := h.coord.SubmitKill(c.Request.Context(), gameID, addressFromContext(c), req.QRPayload, req.HunterLat, req.HunterLng, req.BLENearbyAddresses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !verdict.Valid {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": verdict.ErrorKind})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type heartbeatRequest struct {
	QRPayload          string   `json:"qrPayload"`
	Lat                float64  `json:"lat"`
	Lng                float64  `json:"lng"`
	BLENearbyAddresses []string `json:"bleNearbyAddresses"`
}

func (h *APIHandler) handleHeartbeat(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	verdict, err := h.coord.SubmitHeartbeat(c.Request.Context(), gameID, addressFromContext(c), req.QRPayload, req.Lat, req.Lng, req.BLENearbyAddresses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !verdict.Valid {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": verdict.ErrorKind})
		return
	}
	resp := gin.H{"success": true}
	if verdict.ScannedAddress != "" {
		if p, err := h.st.GetPlayer(c.Request.Context(), gameID, verdict.ScannedAddress); err == nil {
			resp["scannedPlayerNumber"] = p.PlayerNumber
		}
	}
	c.JSON(http.StatusOK, resp)
}
