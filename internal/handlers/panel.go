package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MushhX/RavixPteroX/internal/models"
	"github.com/MushhX/RavixPteroX/internal/service"
)

func (h HandlerSet) PanelListServers(c *gin.Context) {
	servers, err := h.panel.ListServers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_error"})
		return
	}

	c.Data(http.StatusOK, "application/json", servers)
}

type powerRequest struct {
	Signal string `json:"signal" binding:"required"`
}

func (h HandlerSet) PanelPower(c *gin.Context) {
	var req powerRequest
	if err := c.ShouldBindJSON(&req); err != nil || !service.ValidPowerSignal(req.Signal) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	serverID := c.Param("id")
	if err := h.panel.Power(c.Request.Context(), serverID, req.Signal); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_error"})
		return
	}

	h.writeAudit(c, models.AuditPanelPower, serverID, map[string]any{"signal": req.Signal})

	c.Status(http.StatusNoContent)
}
