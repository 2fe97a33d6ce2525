package ussd

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct{ session *Session }

func RegisterRoutes(r gin.IRoutes, s *Session) {
	h := &Handler{session: s}
	r.POST("/ussd", h.Callback)
}

// POST /ussd: form-encoded or JSON, replies text/plain
func (h *Handler) Callback(c *gin.Context) {
	var req Request
	if err := c.ShouldBind(&req); err != nil {
		c.String(http.StatusBadRequest, cont(msgInvalidInput))
		return
	}
	c.String(http.StatusOK, h.session.Respond(c.Request.Context(), req))
}
