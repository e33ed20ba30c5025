package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wristband.events/wristband/web/common"
)

// RegisterTagRequest binds the next presented tag to a guest. A rewrite of a
// tag bound to someone else must be explicitly confirmed.
type RegisterTagRequest struct {
	GuestID        int  `json:"guestId" binding:"required"`
	ConfirmRewrite bool `json:"confirmRewrite"`
}

func (h *Handler) RegisterTag(c *gin.Context) {
	var req RegisterTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err)))
		return
	}

	tagID, err := h.Engine.Scanner.RegisterTag(c.Request.Context(), req.GuestID, req.ConfirmRewrite)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"tagId":   tagID,
		"guestId": req.GuestID,
	}))
}

func (h *Handler) ReadTagInfo(c *gin.Context) {
	info, err := h.Engine.Scanner.ReadTagInfo(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(info))
}

func (h *Handler) EraseTag(c *gin.Context) {
	tagID, priorGuest, err := h.Engine.Scanner.EraseTag(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"tagId":      tagID,
		"priorGuest": priorGuest,
	}))
}
