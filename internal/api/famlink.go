package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/famlink/famlink/internal/auth"
	"github.com/famlink/famlink/internal/config"
	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/notification"
	"github.com/famlink/famlink/internal/server"
	"github.com/gorilla/handlers"
)

type FamLinkApp struct {
	log            *log.Logger
	db             database.FamLinkRepository
	mux            *http.Server
	es             *server.EventServer
	auth           *auth.JWTAuthenticator
	store          *notification.Store
	allowedOrigins []string
}

func NewFamLinkApp(logger *log.Logger, es *server.EventServer, db database.FamLinkRepository, store *notification.Store, authenticator *auth.JWTAuthenticator, statsMux *http.ServeMux, cfg *config.Config) *FamLinkApp {
	s := &FamLinkApp{
		log:            logger,
		db:             db,
		es:             es,
		auth:           authenticator,
		store:          store,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("POST /api/devices", s.authMiddleware(s.registerDevice))
	mux.Handle("DELETE /api/devices", s.authMiddleware(s.deleteDevice))
	mux.Handle("GET /api/notifications", s.authMiddleware(s.getNotifications))
	mux.Handle("GET /api/notifications/unread_count", s.authMiddleware(s.getUnreadCount))
	mux.Handle("DELETE /api/notifications", s.authMiddleware(s.deleteNotifications))
	mux.Handle("GET /ws/{namespace}", s.authMiddleware(s.serveWs))

	if statsMux != nil {
		mux.Handle("GET /debug/vars", statsMux)
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *FamLinkApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *FamLinkApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
