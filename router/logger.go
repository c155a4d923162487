package router

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger loga método, rota, status e latência. O endpoint de status fica fora
// dele de propósito (polling poluiria o log).
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s -> %d (%s)",
			c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
