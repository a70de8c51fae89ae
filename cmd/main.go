// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felicity-events/registration-core/internal/clock"
	"github.com/felicity-events/registration-core/internal/config"
	"github.com/felicity-events/registration-core/internal/database"
	"github.com/felicity-events/registration-core/internal/handler"
	"github.com/felicity-events/registration-core/internal/ledger"
	"github.com/felicity-events/registration-core/internal/notify"
	"github.com/felicity-events/registration-core/internal/repository"
	"github.com/felicity-events/registration-core/internal/service"
	"github.com/felicity-events/registration-core/migrations"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Connect to PostgreSQL and migrate ─────────────────────────────
	pool, err := database.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := migrations.Apply(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	log.Println("✓ Connected to PostgreSQL")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	clk := clock.NewSystem()
	notifier := notify.New(cfg.SMTP, log.Default())

	eventRepo := repository.NewEventRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	capacity := ledger.NewPostgres(pool)

	ticketSvc := service.NewTicketService(ticketRepo, clk)
	eventSvc := service.NewEventService(eventRepo, notifier, clk, cfg.DiscordWebhookURL)
	regSvc := service.NewRegistrationService(regRepo, eventRepo, capacity, ticketSvc, notifier, clk)
	paymentSvc := service.NewPaymentService(regRepo, eventRepo, capacity, ticketSvc, notifier, clk)
	checkInSvc := service.NewCheckInService(regRepo, clk)

	eventHandler := handler.NewEventHandler(eventSvc)
	regHandler := handler.NewRegistrationHandler(regSvc, eventSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, eventSvc)
	checkInHandler := handler.NewCheckInHandler(checkInSvc, eventSvc)
	ticketHandler := handler.NewTicketHandler(ticketSvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)            // permissive CORS for demo

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(handler.Authenticate)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.Browse)
			r.Get("/{id}", eventHandler.Get)
			r.With(handler.RequireRole("participant")).Post("/{id}/register", regHandler.Register)
		})

		r.Route("/registrations", func(r chi.Router) {
			r.Use(handler.RequireRole("participant"))
			r.Get("/my", regHandler.ListMine)
			r.Post("/{id}/cancel", regHandler.Cancel)
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/user/my", ticketHandler.ListMine)
			r.Get("/{ticketId}", ticketHandler.Get)
		})

		r.Route("/organizers", func(r chi.Router) {
			r.Use(handler.RequireRole("organizer"))
			r.Get("/my-events", eventHandler.ListMine)
			r.Post("/events", eventHandler.Create)
			r.Route("/events/{id}", func(r chi.Router) {
				r.Get("/", eventHandler.GetMine)
				r.Put("/", eventHandler.Update)
				r.Get("/registrations", regHandler.Roster)
				r.Get("/payments", paymentHandler.ListOrders)
				r.Post("/scan", checkInHandler.Scan)
				r.Get("/attendance", checkInHandler.Attendance)
				r.Get("/attendance/export", checkInHandler.ExportAttendance)
				r.Put("/manual-attendance", checkInHandler.Manual)
			})
			r.Put("/payments/{regId}/approve", paymentHandler.Approve)
			r.Put("/payments/{regId}/reject", paymentHandler.Reject)
		})
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}
