// Package plugin defines the capability interface dashboard extensions
// implement. A plugin never owns auth: it is handed the guards and mounts its
// routes behind them.
package plugin

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Metadata struct {
	Name        string
	Version     string
	Description string
}

// RouteContext carries everything a plugin may use at registration time.
type RouteContext struct {
	Router      *gin.RouterGroup
	Auth        gin.HandlerFunc
	RequirePerm func(required string) gin.HandlerFunc
	CSRF        gin.HandlerFunc
	Log         zerolog.Logger
}

type Plugin interface {
	Metadata() Metadata
	Register(ctx RouteContext) error
}
