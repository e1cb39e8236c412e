package api

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/errors"
	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves the worker's HTTP endpoints
type Handler struct {
	config *RouterConfig
	log    *logging.Logger
}

// NewHandler creates a handler for cfg
func NewHandler(cfg *RouterConfig) *Handler {
	return &Handler{config: cfg, log: cfg.Logger}
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	stats := h.config.Controller.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"instanceId": h.config.InstanceID,
		"state":      stats.State,
	})
}

// GET /api/v1/text
func (h *Handler) GetText(c *gin.Context) {
	text, updated := h.config.Text.Text()
	resp := gin.H{"text": text}
	if !updated.IsZero() {
		resp["updatedAt"] = updated.UTC().Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/image
func (h *Handler) GetImage(c *gin.Context) {
	img, _ := h.config.Image.Image()
	h.writePNG(c, img)
}

// GET /api/v1/preview
func (h *Handler) GetPreview(c *gin.Context) {
	img, _ := h.config.Preview.Image()
	h.writePNG(c, img)
}

// GET /api/v1/settings
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.config.Controller.Settings())
}

// PUT /api/v1/settings
//
// Fields missing from the body keep their current value.
func (h *Handler) UpdateSettings(c *gin.Context) {
	next := h.config.Controller.Settings()
	if err := c.ShouldBindJSON(&next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid settings", "details": err.Error()})
		return
	}

	if err := h.config.Controller.Update(next); err != nil {
		if perr, ok := errors.As(err); ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": perr.Message, "details": perr.ToMap()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to apply settings", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.config.Controller.Settings())
}

// GET /api/v1/status
func (h *Handler) GetStatus(c *gin.Context) {
	resp := gin.H{
		"instanceId": h.config.InstanceID,
		"worker":     h.config.Controller.Stats(),
	}
	if h.config.Hub != nil {
		resp["websocketClients"] = h.config.Hub.Clients()
	}
	c.JSON(http.StatusOK, resp)
}

// GET /ws
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade to WebSocket", "error", err)
		return
	}
	go h.config.Hub.Serve(conn)
}

func (h *Handler) writePNG(c *gin.Context, img *image.RGBA) {
	if img == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode image", "details": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
