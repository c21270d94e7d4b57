package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nagamine-git/way-thumbsense/internal/config"
)

// StatusProvider はAPIから参照するサービスの状態
type StatusProvider interface {
	Status() ServiceStatus
	GetConfig() *config.Config
}

// Server は状態確認用のAPIサーバーを表す構造体
type Server struct {
	server  *http.Server
	service StatusProvider
	logger  *slog.Logger
	port    int
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(service StatusProvider, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: service,
		logger:  logger,
		port:    port,
	}
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()
	s.setupRoutes(router)
	return router
}

// Start はAPIサーバーを開始する。Stop されるまで戻らない
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: s.Handler(),
	}

	s.logger.Info("APIサーバーを開始します", "url", fmt.Sprintf("http://localhost:%d", s.port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop はAPIサーバーを停止する
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("APIサーバーを停止します")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Warn("JSONエンコードエラー", "error", err)
		}
	}
}

// writeError はエラーレスポンスを書き込む
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
