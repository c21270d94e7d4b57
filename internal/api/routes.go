package api

import (
	"net/http"
)

// ルートの設定。状態の参照のみで、変更は設定ファイル経由で行う
func (s *Server) setupRoutes(router *http.ServeMux) {
	router.HandleFunc("GET /api/health", s.handleHealthCheck)
	router.HandleFunc("GET /api/status", s.handleStatus)
	router.HandleFunc("GET /api/config", s.handleGetConfig)
}

// ヘルスチェックハンドラ
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// サービス状態取得ハンドラ
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Status())
}

// 設定取得ハンドラ
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.service.GetConfig()
	if cfg == nil {
		s.writeError(w, http.StatusServiceUnavailable, "設定が読み込まれていません")
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}
