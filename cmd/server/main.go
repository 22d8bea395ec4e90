package main

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"flag"
	"io/fs"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mlafleur/paycalc-helpers/internal/calculator"
	"github.com/mlafleur/paycalc-helpers/internal/database"
	"github.com/mlafleur/paycalc-helpers/internal/handlers"
	"github.com/mlafleur/paycalc-helpers/internal/logger"
)

//go:embed web/*
var webFS embed.FS

func main() {
	// Command line flags
	port := flag.String("port", "8080", "Server port")
	dbPath := flag.String("db", "paycalc.db", "Path to the SQLite database")
	flag.Parse()

	// Optional .env for local development
	_ = godotenv.Load()

	logger.InitLogger("")
	defer logger.Sync()

	// The rate tables are process-lifetime constants; refuse to serve with
	// a broken one
	if err := calculator.ValidateTables(); err != nil {
		logger.Fatal("tax table validation failed", zap.Error(err))
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err), zap.String("path", *dbPath))
	}
	defer db.Close()

	sessionStore := database.NewSessionStore(db, sessionKey())
	if err := sessionStore.CleanupExpiredSessions(); err != nil {
		logger.Warn("cleaning up expired sessions", zap.Error(err))
	}

	h := handlers.NewHandler(db, sessionStore)

	// Set up routes
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.HealthCheck)
	mux.HandleFunc("/api/provinces", h.GetProvinces)
	mux.HandleFunc("/api/frequencies", h.GetFrequencies)
	mux.HandleFunc("/api/calculate", h.Calculate)
	mux.HandleFunc("/api/history", h.GetHistory)
	mux.HandleFunc("/api/preferences", h.HandlePreferences)

	// Serve embedded static files
	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		logger.Fatal("loading embedded web assets", zap.Error(err))
	}
	mux.Handle("/", http.FileServer(http.FS(webContent)))

	addr := ":" + *port
	logger.Info("starting Canada payroll calculator",
		zap.String("addr", "http://localhost"+addr),
		zap.String("db", *dbPath))

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// sessionKey returns the cookie signing key from TAXCALC_SESSION_KEY, or a
// random ephemeral key when unset (sessions then reset on restart, which
// only costs saved form preferences).
func sessionKey() []byte {
	if keyStr := os.Getenv("TAXCALC_SESSION_KEY"); keyStr != "" {
		if key, err := base64.StdEncoding.DecodeString(keyStr); err == nil && len(key) >= 32 {
			return key
		}
		logger.Warn("TAXCALC_SESSION_KEY is not valid base64 of at least 32 bytes, using ephemeral key")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		logger.Fatal("generating session key", zap.Error(err))
	}
	return key
}
