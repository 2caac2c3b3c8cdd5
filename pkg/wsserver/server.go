package wsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server exposes the WebSocket transport and a health endpoint. REST
// shaping over the relational tables lives outside the core pipeline.
type Server struct {
	hub    *Hub
	router *mux.Router
	log    *zap.Logger
	http   *http.Server
}

func NewServer(hub *Hub, allowedOrigins []string, log *zap.Logger) *Server {
	s := &Server{hub: hub, router: mux.NewRouter(), log: log}
	s.router.HandleFunc("/ws", hub.Upgrade)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET"},
		AllowCredentials: true,
	})

	s.http = &http.Server{
		Handler:      c.Handler(s.router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Start listens on addr until the process is told to stop via Shutdown.
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	if s.log != nil {
		s.log.Info("ws server starting", zap.String("addr", addr))
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
