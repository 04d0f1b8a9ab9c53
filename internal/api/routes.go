package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gameroom/backend/internal/engine"
	"github.com/gameroom/backend/internal/router"
	"github.com/gameroom/backend/internal/ws"
)

var startTime = time.Now()

// SetupRoutes configures the game protocol endpoint and the health probe.
func SetupRoutes(r *gin.Engine, clients *router.ClientMap, eng *engine.Engine, tc engine.TimeControl) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "gameroom",
			"uptime":  time.Since(startTime).String(),
		})
	})

	r.GET("/", ws.Handler(clients, eng, tc))
}
