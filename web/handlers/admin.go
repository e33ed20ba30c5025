package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wristband.events/wristband/core/queue"
	"wristband.events/wristband/utils"
	"wristband.events/wristband/web/common"
)

// StatusResponse is the station health view for the status screen.
type StatusResponse struct {
	Pending          int                  `json:"pending"`
	PendingByStation map[string]int       `json:"pendingByStation,omitempty"`
	LocalGuests      int                  `json:"localGuests"`
	RegisteredTags   int                  `json:"registeredTags"`
	ReaderHeldBy     string               `json:"readerHeldBy,omitempty"`
	SnapshotAge      common.LocalDateTime `json:"snapshotRefreshedAt"`
}

func (h *Handler) Status(c *gin.Context) {
	pending := h.Engine.Queue.Pending()

	byStation := map[string]int{}
	for station, items := range utils.GroupBy(pending, func(p queue.PendingCheckIn) string { return p.Station }) {
		byStation[station] = len(items)
	}

	resp := StatusResponse{
		Pending:          len(pending),
		PendingByStation: byStation,
		LocalGuests:      len(h.Engine.Queue.GetAllLocalCheckIns()),
		RegisteredTags:   h.Engine.Registry.Len(),
		ReaderHeldBy:     h.Engine.Arbiter.Holder(),
		SnapshotAge:      common.LocalDateTime{Time: h.Engine.Snapshot.RefreshedAt()},
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(resp))
}

// ResetRequest guards the irreversible admin operations behind an explicit
// confirmation flag.
type ResetRequest struct {
	Confirm bool `json:"confirm" binding:"required"`
}

// ResetLocal wipes the local queue and cache. The remote ledger is
// untouched.
func (h *Handler) ResetLocal(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	h.Engine.Queue.ClearAllLocalData()

	if err := h.Slack.LocalDataCleared(); err != nil {
		zap.L().Warn("Failed to send reset notification", zap.Error(err))
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"cleared": true}))
}

// ClearRemote blanks every check-in cell in the remote ledger, then refreshes
// so the local snapshot agrees.
func (h *Handler) ClearRemote(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	if err := h.Engine.Ledger.ClearAllCheckInData(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}

	if _, err := h.Engine.Refresh(c.Request.Context()); err != nil {
		zap.L().Warn("Refresh after remote clear failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"cleared": true}))
}
