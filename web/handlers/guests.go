package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wristband.events/wristband/core/fault"
	v1 "wristband.events/wristband/guestsheet/v1"
	"wristband.events/wristband/utils"
	"wristband.events/wristband/web/common"
)

// GuestView is a guest row merged with this station's local pending
// check-ins, so the UI shows a check-in immediately even before it syncs.
type GuestView struct {
	v1.GuestDTO
	LocalCheckIns map[string]string `json:"localCheckIns,omitempty"`
}

func (h *Handler) view(g v1.GuestDTO) GuestView {
	return GuestView{
		GuestDTO:      g,
		LocalCheckIns: h.Engine.Queue.GetLocalCheckIns(g.OriginalID),
	}
}

// ListGuests serves the cached snapshot. It never touches the network: an
// offline station still gets its guest list.
func (h *Handler) ListGuests(c *gin.Context) {
	guests, err := h.Engine.Snapshot.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse(err.Error()))
		return
	}

	views := utils.Map(guests, h.view)
	c.JSON(http.StatusOK, common.NewSearchResponse(views, int64(len(views))))
}

// GetGuest serves one guest, preferring the snapshot and falling back to the
// ledger.
func (h *Handler) GetGuest(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Invalid id"))
		return
	}

	guest, err := h.Engine.Snapshot.FindByID(id)
	if errors.Is(err, fault.ErrNotFound) {
		guest, err = h.Engine.Ledger.FindGuestByID(c.Request.Context(), id)
	}
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(h.view(*guest)))
}
