package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/conference-booking/internal/application"
	"github.com/example/conference-booking/internal/conferencing"
	"github.com/example/conference-booking/internal/config"
	httptransport "github.com/example/conference-booking/internal/http"
	"github.com/example/conference-booking/internal/i18n"
	"github.com/example/conference-booking/internal/logging"
	"github.com/example/conference-booking/internal/persistence/sqlite"
	"github.com/example/conference-booking/internal/persistence/sqlite/migration"
)

func main() {
	bootstrap := logging.New("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := migration.NewRunner(pool.DB()).Apply(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	users := newUserStore(sqlite.NewUserRepository(pool))
	departments := newDepartmentStore(sqlite.NewDepartmentRepository(pool))
	requests := newRequestStore(sqlite.NewMeetingRequestRepository(pool))
	closedDates := newClosedDateStore(sqlite.NewClosedDateRepository(pool))
	sessions := newSessionStore(sqlite.NewSessionRepository(pool))

	accounts := make([]conferencing.Account, 0, len(cfg.ConferenceAccounts))
	for _, spec := range cfg.ConferenceAccounts {
		accounts = append(accounts, conferencing.Account{
			ID:       spec.ID,
			BaseURL:  spec.BaseURL,
			MaxRooms: spec.MaxRooms,
		})
	}
	provider, err := conferencing.NewPoolProvider(accounts, idGenerator, logger)
	if err != nil {
		logger.Error("failed to build conferencing provider", "error", err)
		os.Exit(1)
	}

	calendarService := application.NewCalendarService(closedDates, now, logger)
	quotas := application.NewQuotaTracker(requests, departments, now)
	conflicts := application.NewConflictDetector(requests)
	gate := application.NewAvailabilityGate(calendarService, conflicts, quotas)

	bookingService := application.NewBookingService(application.BookingServiceConfig{
		Requests:            requests,
		Gate:                gate,
		Quotas:              quotas,
		Conflicts:           conflicts,
		Provider:            provider,
		ReleaseFailures:     conferencing.NewLogSink(logger),
		IDGenerator:         idGenerator,
		Now:                 now,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
		Logger:              logger,
	})
	departmentService := application.NewDepartmentServiceWithLogger(departments, quotas, idGenerator, now, logger)
	userService := application.NewUserService(users, idGenerator, now)
	authService := application.NewAuthServiceWithLogger(users, sessions, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	translator := i18n.NewTranslator(cfg.DefaultLocale, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger, translator),
		Requests:     httptransport.NewRequestHandler(bookingService, logger, translator),
		Users:        httptransport.NewUserHandler(userService, logger, translator),
		Departments:  httptransport.NewDepartmentHandler(departmentService, bookingService, logger, translator),
		Calendar:     httptransport.NewCalendarHandler(calendarService, logger, translator),
		SessionGuard: httptransport.RequireSession(authService, logger, translator),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
