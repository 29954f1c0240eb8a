package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openvaults/vaultbridge/internal/datafetcher"
	"github.com/openvaults/vaultbridge/internal/logger"
	"github.com/openvaults/vaultbridge/internal/orchestrator"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the vault read API and the transaction flow API.
type WebServer struct {
	router  *mux.Router
	port    string
	fetcher *datafetcher.Client
	// orch is nil in read-only mode; transaction endpoints return 503.
	orch *orchestrator.Orchestrator
}

// NewWebServer creates a new web server instance. orch may be nil when no
// signing key is configured.
func NewWebServer(port string, fetcher *datafetcher.Client, orch *orchestrator.Orchestrator) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		fetcher: fetcher,
		orch:    orch,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Vault read API
	ws.router.HandleFunc("/vaults/{address}/complete", ws.handleVaultComplete).Methods("GET")
	ws.router.HandleFunc("/vaults/{address}/history", ws.handleVaultHistory).Methods("GET")
	ws.router.HandleFunc("/vaults/{address}/activity", ws.handleVaultActivity).Methods("GET")

	// Transaction flow API
	tx := ws.router.PathPrefix("/transactions").Subrouter()
	tx.HandleFunc("", ws.handleBeginFlow).Methods("POST")
	tx.HandleFunc("/confirm", ws.handleConfirmFlow).Methods("POST")
	tx.HandleFunc("/reset", ws.handleResetFlow).Methods("POST")
	tx.HandleFunc("/state", ws.handleFlowState).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Router exposes the handler tree for tests.
func (ws *WebServer) Router() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Bool("readOnly", ws.orch == nil).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
