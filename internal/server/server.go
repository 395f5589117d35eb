package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/taskboard/apiserver/config"
	"github.com/taskboard/apiserver/internal/db"
	"github.com/taskboard/apiserver/internal/events"
	"github.com/taskboard/apiserver/internal/handlers"
	"github.com/taskboard/apiserver/internal/services"
	"github.com/taskboard/apiserver/internal/storage"
	"github.com/taskboard/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	publisher, err := events.NewPublisher(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init events: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	boardRepo := store.NewBoardRepository(dbConn)
	listRepo := store.NewListRepository(dbConn)
	cardRepo := store.NewCardRepository(dbConn)
	attachmentRepo := store.NewAttachmentRepository(dbConn)

	userService := services.NewUserService(userRepo)
	boardService := services.NewBoardService(boardRepo)
	listService := services.NewListService(listRepo, boardRepo)
	cardService := services.NewCardService(cardRepo, listRepo, boardRepo, publisher)
	attachmentService := services.NewAttachmentService(attachmentRepo, cardRepo, listRepo, boardRepo, objectStorage)

	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, jwtSecret)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, authMiddleware)
	})
	router.Route("/boards", func(r chi.Router) {
		handlers.BoardRouter(r, boardService, listService, authMiddleware)
	})
	router.Route("/lists", func(r chi.Router) {
		handlers.ListRouter(r, listService, cardService, authMiddleware)
	})
	router.Route("/cards", func(r chi.Router) {
		handlers.CardRouter(r, cardService, attachmentService, authMiddleware)
	})
	router.Route("/attachments", func(r chi.Router) {
		handlers.AttachmentRouter(r, attachmentService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
