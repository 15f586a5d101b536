package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter 建立 chi router 並註冊帳戶與分錄路由
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.handleOpenAccount)
		r.Get("/{id}", h.handleGetAccount)
		r.Get("/{id}/transactions", h.handleListEntries)
		r.Get("/{id}/audit", h.handleCheckBalance)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.handleCreateEntry)
		r.Get("/{id}", h.handleGetEntry)
		r.Patch("/{id}", h.handleUpdateEntry)
		r.Delete("/{id}", h.handleDeleteEntry)
	})

	return r
}

// requestLogger 以 zap 記錄每個請求
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
