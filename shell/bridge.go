package shell

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mediafetch/internal"
	"mediafetch/metrics"
	"mediafetch/utils"
)

// BridgeConfig holds all collaborators of the bridge
type BridgeConfig struct {
	Version      string
	DownloadsDir string
	Origins      []string
	Hub          *Hub
	Dialogs      Dialogs
	Opener       Opener
	Metrics      *metrics.Collector
}

// Bridge is the only surface the UI can reach: the app version, a save
// dialog, opening the downloads folder and the one-way event stream.
type Bridge struct {
	cfg    BridgeConfig
	router *gin.Engine
	server *http.Server
}

type saveDialogRequest struct {
	SuggestedName string `json:"suggested_name"`
}

// NewBridge builds the bridge router
func NewBridge(cfg BridgeConfig) *Bridge {
	b := &Bridge{cfg: cfg}
	b.router = b.setupRouter()
	return b
}

func (b *Bridge) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if len(b.cfg.Origins) > 0 {
		config := cors.DefaultConfig()
		config.AllowOrigins = b.cfg.Origins
		config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		config.AllowHeaders = []string{"Origin", "Content-Type"}
		router.Use(cors.New(config))
	}

	bridge := router.Group("/bridge")
	{
		bridge.GET("/version", b.version)
		bridge.POST("/save-dialog", b.saveDialog)
		bridge.POST("/open-downloads", b.openDownloads)
		bridge.GET("/events", b.cfg.Hub.HandleWebSocket)
	}
	router.GET("/metrics", gin.WrapH(b.cfg.Metrics.Handler()))

	return router
}

// Handler exposes the router
func (b *Bridge) Handler() http.Handler {
	return b.router
}

func (b *Bridge) version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": b.cfg.Version})
}

func (b *Bridge) saveDialog(c *gin.Context) {
	var req saveDialogRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
			return
		}
	}

	result, err := b.cfg.Dialogs.ShowSave(c.Request.Context(), utils.SanitizeFilename(req.SuggestedName))
	if err != nil {
		internal.LogWarn("Save dialog failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "save dialog failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (b *Bridge) openDownloads(c *gin.Context) {
	if err := OpenDownloads(b.cfg.Opener, b.cfg.DownloadsDir); err != nil {
		internal.LogWarn("%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "could not open the downloads folder"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"opened": b.cfg.DownloadsDir})
}

// OpenDownloads creates the downloads directory if needed and opens it
func OpenDownloads(opener Opener, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create downloads folder: %w", err)
	}
	return opener.Open(dir)
}

// Start listens on addr, which must be a loopback address, and serves in the background
func (b *Bridge) Start(addr string) (net.Addr, error) {
	if err := checkLoopback(addr); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	b.server = &http.Server{Handler: b.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := b.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			internal.LogError("Bridge server failed: %v", err)
		}
	}()
	return listener.Addr(), nil
}

// Shutdown stops a started bridge
func (b *Bridge) Shutdown(ctx context.Context) error {
	if b.server == nil {
		return nil
	}
	return b.server.Shutdown(ctx)
}

func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return internal.NewValidationErrorWithValue("bridge_addr", "invalid host:port", addr)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return internal.NewValidationErrorWithValue("bridge_addr", "the bridge only listens on loopback addresses", addr).
		WithSuggestion("Use 127.0.0.1:<port>")
}
