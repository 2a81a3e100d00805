package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Api wires the collector's HTTP surface onto a gin router.
type Api struct {
	h *LogHandler
}

func NewApi(router *gin.Engine, events EventWriter, alerts AlertReader, defaultAlertLimit int) *Api {
	api := &Api{h: NewLogHandler(events, alerts, defaultAlertLimit)}
	api.setupRouters(router)
	return api
}

func (api *Api) setupRouters(router *gin.Engine) {
	router.POST("/v1/logs", api.h.IngestLog)
	router.GET("/v1/alerts", api.h.ListAlerts)
	router.GET("/healthz", api.h.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
