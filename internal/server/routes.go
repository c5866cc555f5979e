package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (progress push)
	if s.app.WSHandler != nil {
		mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)
	}

	// API routes - Downloads
	mux.HandleFunc("/api/video-info", s.app.DownloadHandler.VideoInfoHandler) // POST
	mux.HandleFunc("/api/download", s.app.DownloadHandler.DownloadHandler)    // POST
	mux.HandleFunc("/api/progress/", s.app.DownloadHandler.ProgressHandler)   // GET /{id}
	mux.HandleFunc("/api/file/", s.app.DownloadHandler.FileHandler)           // GET /{id}

	// API routes - Cookies
	mux.HandleFunc("/api/cookies", s.handleCookiesRoute)   // POST (upload)
	mux.HandleFunc("/api/cookies/", s.handleCookieRoutes) // DELETE /{id}

	// API routes - System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleCookiesRoute routes the cookie collection
func (s *Server) handleCookiesRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodPost: s.app.CookieHandler.UploadHandler,
	})
}

// handleCookieRoutes routes /api/cookies/{id}
func (s *Server) handleCookieRoutes(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodDelete: s.app.CookieHandler.DeleteHandler,
	})
}
