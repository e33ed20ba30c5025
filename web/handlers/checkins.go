package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wristband.events/wristband/core/fault"
	"wristband.events/wristband/core/scan"
	"wristband.events/wristband/web/common"
)

// CheckInRequest is the manual-entry path: the operator picked a guest from
// the list instead of scanning a wristband.
type CheckInRequest struct {
	GuestID   int    `json:"guestId" binding:"required"`
	Station   string `json:"station" binding:"required"`
	Timestamp string `json:"timestamp"`
	GuestName string `json:"guestName"`
}

func (h *Handler) AddCheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	if req.Timestamp == "" {
		req.Timestamp = time.Now().Format(scan.TimestampLayout)
	}

	if req.GuestName == "" {
		if guest, err := h.Engine.Snapshot.FindByID(req.GuestID); err == nil {
			req.GuestName = guest.FullName()
		}
	}

	if !h.Engine.Queue.AddCheckIn(req.GuestID, req.Station, req.Timestamp, req.GuestName) {
		fail(c, fmt.Errorf("%w: guest %d already checked in at %s", fault.ErrDuplicate, req.GuestID, req.Station))
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"guestId":   req.GuestID,
		"station":   req.Station,
		"timestamp": req.Timestamp,
	}))
}

// PendingCheckIns exposes the queue's pending list for the status screen.
func (h *Handler) PendingCheckIns(c *gin.Context) {
	pending := h.Engine.Queue.Pending()
	c.JSON(http.StatusOK, common.NewSearchResponse(pending, int64(len(pending))))
}

// Scan runs one full tag-to-check-in pipeline pass.
type ScanRequest struct {
	Station string `json:"station" binding:"required"`
}

func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	result, err := h.Engine.Scanner.CheckIn(c.Request.Context(), req.Station)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(result))
}

// CancelScan aborts the in-flight blocking read, if any. Always succeeds:
// cancelling nothing is not an error.
func (h *Handler) CancelScan(c *gin.Context) {
	h.Engine.Scanner.Cancel()
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"cancelled": true}))
}

// Refresh forces a full snapshot refresh and reconciliation.
func (h *Handler) Refresh(c *gin.Context) {
	guests, err := h.Engine.Refresh(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"guests": len(guests)}))
}
