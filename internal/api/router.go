package api

import (
	"github.com/gin-gonic/gin"
)

// NewEngine builds the gin engine serving the JSON API under /api
func NewEngine(h *DiscriminationHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	h.Register(engine.Group("/api"))
	return engine
}
