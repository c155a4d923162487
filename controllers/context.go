package controllers

import (
	"benemax/connection"
	"benemax/delivery"
	"benemax/dispatch"

	"github.com/gin-gonic/gin"
)

const coreKey = "core"

// Core agrupa os serviços que os handlers consomem.
type Core struct {
	Registry   *connection.Registry
	Dispatcher *dispatch.Dispatcher
	Webhooks   *delivery.Service
}

// SetCoreToContext injeta os serviços no contexto do gin (mesmo padrão do
// db.SetDBtoContext).
func SetCoreToContext(core *Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(coreKey, core)
		c.Next()
	}
}

func CoreInstance(c *gin.Context) *Core {
	v, ok := c.Get(coreKey)
	if !ok {
		return nil
	}
	core, _ := v.(*Core)
	return core
}
