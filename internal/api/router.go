package api

import (
	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"github.com/adverant/nexus/streamocr-worker/internal/processor"
	"github.com/adverant/nexus/streamocr-worker/internal/sink"
	"github.com/adverant/nexus/streamocr-worker/internal/worker"
	"github.com/gin-gonic/gin"
)

// Controller is the part of the worker manager the API drives
type Controller interface {
	Settings() processor.Settings
	Update(settings processor.Settings) error
	Stats() worker.Stats
}

// RouterConfig wires the API to the running worker
type RouterConfig struct {
	InstanceID string
	Controller Controller
	Text       *sink.TextSlot
	Image      *sink.ImageSlot
	Preview    *sink.ImageSlot
	Hub        *sink.Hub // optional
	Logger     *logging.Logger
}

// SetupRouter builds the readout and settings API
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(cfg.Logger))

	h := NewHandler(cfg)
	r.GET("/health", h.Health)
	if cfg.Hub != nil {
		r.GET("/ws", h.WebSocket)
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/text", h.GetText)
		v1.GET("/image", h.GetImage)
		v1.GET("/preview", h.GetPreview)
		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings", h.UpdateSettings)
		v1.GET("/status", h.GetStatus)
	}

	return r
}

func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status())
	}
}
