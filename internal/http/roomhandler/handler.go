package roomhandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"turnroomgo/internal/services/game"
)

// Handler exposes a read-mostly REST view over the live rooms; the game
// itself is driven over websockets.
type Handler struct {
	svc game.IGameService
}

func New(svc game.IGameService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/:id", h.info)
	r.POST("/rooms/:id/start", h.start)
}

// @Summary		Get room details
// @Description	Returns the live state of a single room.
// @Tags			Rooms
// @Param			id	path		string	true	"Room ID"	default(room123)
// @Success		200	{object}	game.RoomDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id} [get]
func (h *Handler) info(c *gin.Context) {
	dto, err := h.svc.GetRoom(c, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary		List rooms
// @Description	Lists the rooms currently held in memory, optionally filtered by status.
// @Tags			Rooms
// @Param			status	query		string	false	"Status filter"	Enums(idle,running,ended)
// @Success		200		{array}		game.RoomDTO
// @Failure		400		{object}	ErrorResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	var q ListRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.svc.ListRooms(c, q.Status))
}

// @Summary		Start a room's game
// @Description	Starts the game explicitly; a no-op when it is already running.
// @Tags			Rooms
// @Param			id	path	string	true	"Room ID"	default(room123)
// @Success		202
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id}/start [post]
func (h *Handler) start(ginCtx *gin.Context) {
	roomID := ginCtx.Param("id")

	if _, err := h.svc.GetRoom(ginCtx.Request.Context(), roomID); err != nil {
		ginCtx.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
		return
	}
	h.svc.Start(ginCtx.Request.Context(), roomID)
	ginCtx.Status(http.StatusAccepted)
}
