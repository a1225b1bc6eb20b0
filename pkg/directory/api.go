package directory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// APIServer exposes a read-only HTTP status surface over the
// directory: the live roster and server counters. It never mutates
// the roster.
type APIServer struct {
	directory  *Server
	router     *gin.Engine
	httpServer *http.Server
	port       int
}

// PeersResponse is the roster listing payload.
type PeersResponse struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Peers   []protocol.Peer `json:"peers"`
}

// StatusResponse is the server status payload.
type StatusResponse struct {
	Success   bool      `json:"success"`
	Stats     Stats     `json:"stats"`
	CheckedAt time.Time `json:"checkedAt"`
}

// NewAPIServer creates the HTTP API for a directory server.
func NewAPIServer(directory *Server, port int) *APIServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	api := &APIServer{
		directory: directory,
		router:    router,
		port:      port,
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/peers", api.handlePeers)
		v1.GET("/status", api.handleStatus)
	}

	return api
}

// Start begins serving HTTP in the background.
func (a *APIServer) Start() error {
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.port),
		Handler:      a.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("API server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts the HTTP server down gracefully.
func (a *APIServer) Stop(ctx context.Context) error {
	if a.httpServer == nil {
		return nil
	}
	return a.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine (used by tests).
func (a *APIServer) Router() *gin.Engine {
	return a.router
}

// handlePeers handles GET /api/v1/peers
func (a *APIServer) handlePeers(c *gin.Context) {
	peers := a.directory.Roster().Snapshot()
	c.JSON(http.StatusOK, PeersResponse{
		Success: true,
		Count:   len(peers),
		Peers:   peers,
	})
}

// handleStatus handles GET /api/v1/status
func (a *APIServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Success:   true,
		Stats:     a.directory.Stats(),
		CheckedAt: time.Now(),
	})
}
