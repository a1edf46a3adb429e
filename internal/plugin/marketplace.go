package plugin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MushhX/RavixPteroX/internal/rbac"
)

// MarketplaceStub is the shipped example plugin: a static catalog mounted
// behind the auth guard, no purchases.
type MarketplaceStub struct{}

func (MarketplaceStub) Metadata() Metadata {
	return Metadata{
		Name:        "marketplace-stub",
		Version:     "0.1.0",
		Description: "Static marketplace catalog for the dashboard",
	}
}

func (MarketplaceStub) Register(ctx RouteContext) error {
	group := ctx.Router.Group("/marketplace")
	group.Use(ctx.Auth, ctx.RequirePerm(rbac.PermPanelRead))

	group.GET("/items", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"items": []gin.H{
				{"id": "pkg-backup", "name": "Automated Backups", "priceCents": 299},
				{"id": "pkg-ram-2g", "name": "+2 GiB Memory", "priceCents": 499},
				{"id": "pkg-dedicated-ip", "name": "Dedicated IP", "priceCents": 899},
			},
		})
	})

	return nil
}
