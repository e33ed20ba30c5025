// Package handlers exposes the check-in engine to the kiosk UI over HTTP.
// Rendering lives entirely in the UI; this layer only maps engine results
// and typed failure reasons onto status codes and JSON envelopes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wristband.events/wristband/core/engine"
	"wristband.events/wristband/core/fault"
	"wristband.events/wristband/core/scan"
	"wristband.events/wristband/notify"
	"wristband.events/wristband/web/common"
	"wristband.events/wristband/web/middlewares"
)

type Handler struct {
	Engine *engine.Engine
	Slack  *notify.Slack
}

// Routes wires the station API onto r. Everything except the health probe
// requires a station bearer token.
func (h *Handler) Routes(r *gin.Engine, jwtSecret []byte) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	api.Use(middlewares.Authentication(jwtSecret))
	{
		api.GET("/guests", h.ListGuests)
		api.GET("/guests/:id", h.GetGuest)

		api.POST("/checkins", h.AddCheckIn)
		api.GET("/checkins/pending", h.PendingCheckIns)

		api.POST("/scan", h.Scan)
		api.POST("/scan/cancel", h.CancelScan)

		api.POST("/tags", h.RegisterTag)
		api.GET("/tags/info", h.ReadTagInfo)
		api.DELETE("/tags", h.EraseTag)

		api.GET("/status", h.Status)
		api.POST("/refresh", h.Refresh)

		api.POST("/admin/reset-local", h.ResetLocal)
		api.POST("/admin/clear-remote", h.ClearRemote)
	}
}

// fail maps an engine error onto a status code, keeping the typed reason in
// the body.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, scan.ErrReaderBusy):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, fault.ErrNoTag):
		status = http.StatusRequestTimeout
	case errors.Is(err, fault.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, fault.ErrUnreachable):
		status = http.StatusBadGateway
	}

	c.JSON(status, common.NewFaultResponse(err))
}
