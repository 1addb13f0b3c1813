package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

// NewServer builds the HTTP server: health, the /chat websocket and the room REST routes.
func NewServer(hub *core.Hub, verifier *auth.Verifier, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	rooms := NewRoomHandlers(hub, cfg.HistoryPageSize, logger)
	router.GET("/health", rooms.Health)
	// Hijacked websocket connections are not tracked by Shutdown; close them explicitly.
	closing, closeSockets := context.WithCancel(context.Background())
	router.GET("/chat", gin.WrapH(NewWSHandler(closing, hub, verifier, cfg, logger)))

	api := router.Group("/rooms", CORSMiddleware(cfg.AllowedOrigins))
	if verifier.Required() {
		api.Use(AuthMiddleware(verifier, logger))
	}
	api.GET("", rooms.ListRooms)
	api.GET("/:roomName/messages", rooms.History)
	// Preflights are answered by CORSMiddleware before auth runs.
	api.OPTIONS("", func(*gin.Context) {})
	api.OPTIONS("/:roomName/messages", func(*gin.Context) {})

	server := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	server.RegisterOnShutdown(closeSockets)
	return server
}
