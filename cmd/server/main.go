// main is the entry point for the storecheck API server.
//
// It reads configuration, opens the SQLite database, wires the shared
// dependencies into the handler Server, registers all HTTP routes, and
// starts listening.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE — how this file fits into the project
// ────────────────────────────────────────────────────────────────────
// This file is the "composition root" — the single place where the
// independent packages (config, db, photostore, mail, handlers,
// middleware) are wired together. Every other package stays testable in
// isolation because only main knows about all of them.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"storecheck/internal/config"
	"storecheck/internal/db"
	"storecheck/internal/handlers"
	"storecheck/internal/mail"
	"storecheck/internal/middleware"
	"storecheck/internal/photostore"

	"github.com/lmittmann/tint"
)

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	// db.Open creates the file if it doesn't exist and runs all CREATE
	// TABLE IF NOT EXISTS migrations automatically.
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	photos, err := photostore.New(cfg.UploadDir)
	if err != nil {
		logger.Error("open photo store", "err", err)
		os.Exit(1)
	}

	// With no SMTP host the email endpoint degrades gracefully: it renders
	// the summary and returns it instead of sending.
	var mailer mail.Sender = mail.Disabled{}
	if cfg.SMTPHost != "" {
		mailer = &mail.SMTP{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}
	}

	srv := &handlers.Server{
		DB:        database,
		Secret:    cfg.JWTSecret,
		Threshold: cfg.CompletionThreshold,
		Photos:    photos,
		Mailer:    mailer,
		Log:       logger,
	}

	// Go 1.22+ ServeMux supports method prefixes ("GET /path") and path
	// wildcards ("{id}") natively — no third-party router needed.
	mux := http.NewServeMux()

	// Public routes — no token required.
	mux.HandleFunc("POST /api/auth/register", srv.Register)
	mux.HandleFunc("POST /api/auth/login", srv.Login)
	// Health doubles as the field client's connectivity probe.
	mux.HandleFunc("GET /api/health", srv.Health)
	// Uploaded photos are public reads; the path is the capability.
	mux.HandleFunc("GET /uploads/{path...}", srv.ServePhoto)

	auth := middleware.Authenticate(cfg.JWTSecret)
	onlyAdmin := middleware.RequireRole("admin")
	handle := func(pattern string, h http.HandlerFunc, wrap ...func(http.Handler) http.Handler) {
		var handler http.Handler = h
		for i := len(wrap) - 1; i >= 0; i-- {
			handler = wrap[i](handler)
		}
		mux.Handle(pattern, auth(handler))
	}

	// Authenticated — any logged-in user.
	handle("GET /api/auth/me", srv.Me)
	handle("GET /api/regions", srv.ListRegions)
	handle("GET /api/districts", srv.ListDistricts)
	handle("GET /api/stores", srv.ListStores)
	handle("GET /api/checklist/template", srv.GetTemplate)
	handle("GET /api/visits", srv.ListVisits)
	// ↓ Core submission endpoint, shared by live authoring and the
	//   offline sync drain — see handlers/visits.go
	handle("POST /api/visits", srv.CreateVisit)
	handle("GET /api/visits/{id}", srv.GetVisit)
	handle("PUT /api/visits/{id}", srv.UpdateVisit)
	handle("DELETE /api/visits/{id}", srv.DeleteVisit)
	handle("GET /api/visits/{id}/pdf", srv.VisitPDF)
	handle("POST /api/visits/{id}/email", srv.EmailVisit)
	handle("POST /api/uploads", srv.UploadPhoto)
	handle("GET /api/reports/store/{id}", srv.StoreReportHandler)

	// Admin-only routes.
	handle("POST /api/regions", srv.CreateRegion, onlyAdmin)
	handle("POST /api/districts", srv.CreateDistrict, onlyAdmin)
	handle("POST /api/stores", srv.CreateStore, onlyAdmin)
	handle("POST /api/checklist/template", srv.CreateTemplateItem, onlyAdmin)
	handle("PUT /api/checklist/template/{id}", srv.UpdateTemplateItem, onlyAdmin)
	handle("DELETE /api/checklist/template/{id}", srv.DeleteTemplateItem, onlyAdmin)
	// Demo seed — idempotent; gate behind real auth before any deployment
	// that matters.
	handle("POST /api/admin/seed", srv.SeedDemo, onlyAdmin)

	// CORS wraps everything so the browser PWA can call the API; request
	// logging wraps CORS so even preflights show up.
	handler := middleware.Log(logger)(middleware.CORS(mux))

	logger.Info("storecheck API listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Error("server", "err", err)
		os.Exit(1)
	}
}
