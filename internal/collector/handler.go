package collector

import (
	"net/http"
	"strconv"

	"github.com/WilliamAziza/Sign-In-App/internal/models"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/signins", h.SubmitBatch)
	r.GET("/signins", h.ListSignIns)
}

// POST /api/signins: body is the kiosk's raw queue array
func (h *Handler) SubmitBatch(c *gin.Context) {
	var batch []models.AttendanceRecord
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, newErrDTO(ErrInvalid("body must be a JSON array of sign-in records")))
		return
	}

	ack, err := h.svc.Accept(c.Request.Context(), batch)
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.JSON(http.StatusOK, ack)
}

// GET /api/signins?limit=
func (h *Handler) ListSignIns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, newErrDTO(ErrInvalid("limit must be a positive integer")))
			return
		}
		limit = n
	}

	rows, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "count": len(rows)})
}
