package main

import (
	"context"
	crypto_rand "crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smiledesk/dental/internal/config"
	"github.com/smiledesk/dental/internal/domain/appointment"
	"github.com/smiledesk/dental/internal/domain/availability"
	"github.com/smiledesk/dental/internal/domain/clinic"
	"github.com/smiledesk/dental/internal/domain/identity"
	"github.com/smiledesk/dental/internal/domain/notification"
	"github.com/smiledesk/dental/internal/platform/api"
	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/internal/platform/db"
	"github.com/smiledesk/dental/internal/platform/middleware"
	notify "github.com/smiledesk/dental/internal/platform/notification"
	"github.com/smiledesk/dental/internal/platform/websocket"
)

const (
	serviceName    = "dental-server"
	serviceVersion = "0.1.0"
	tokenIssuer    = "smiledesk-dental"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Dental clinic booking API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(userCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			dir := migrationsDir(cmd, cfg)
			count, err := db.NewMigrator(pool, dir).Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) from %s.\n", count, dir)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsDir(cmd, cfg)).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.MigrationsDir
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with any role (bootstraps the first administrator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := createUserRequest(cmd)
			if err != nil {
				return err
			}

			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewUserRepoPG(pool), identity.NewDentistRepoPG(pool),
				db.NewTxRunner(pool), nil, zerolog.Nop())
			// The console acts with full rights.
			u, err := svc.CreateUser(cmd.Context(), auth.Actor{Role: auth.RoleSuperAdmin}, req)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("password", "", "Password (at least 8 characters)")
	createCmd.Flags().String("role", string(auth.RoleAdmin), "One of patient, dentist, secretary, admin, super_admin")
	createCmd.Flags().String("clinic", "", "Clinic id for staff and dentists")
	cmd.AddCommand(createCmd)

	return cmd
}

// createUserRequest builds and validates the request from flags.
func createUserRequest(cmd *cobra.Command) (identity.CreateUserRequest, error) {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	role, _ := cmd.Flags().GetString("role")
	clinicRaw, _ := cmd.Flags().GetString("clinic")

	req := identity.CreateUserRequest{Email: email, Name: name, Password: password, Role: role}
	if clinicRaw != "" {
		id, err := uuid.Parse(clinicRaw)
		if err != nil {
			return req, fmt.Errorf("--clinic must be a UUID: %w", err)
		}
		req.ClinicID = &id
	}
	if err := api.NewValidator().Validate(&req); err != nil {
		return req, err
	}
	return req, nil
}

// connect loads configuration and opens the database pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// resolveSigningKey returns the JWT signing key from JWT_SECRET or, when it
// is empty, a random 32-byte key. The second return value is true when a
// random key was generated.
func resolveSigningKey(secret string) ([]byte, bool, error) {
	if secret != "" {
		return []byte(secret), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

// server is the wired HTTP application and the background work it owns.
type server struct {
	echo          *echo.Echo
	hub           *websocket.Hub
	limiter       *middleware.RateLimiter
	notifications *notification.Service
}

// newServer wires repositories, services and handlers onto a fresh echo
// instance. publisher carries live notifications to websocket clients.
// warnDevAuth flags a server that trusts identity headers. ENV defaults to
// development, so an unconfigured deployment lands here.
func warnDevAuth(cfg *config.Config, logger zerolog.Logger) {
	source := "ENV=" + cfg.Env
	if cfg.AuthMode != "" {
		source = "AUTH_MODE=" + cfg.AuthMode
	}
	logger.Warn().
		Str("auth_mode", config.AuthModeDevelopment).
		Str("selected_by", source).
		Msg("DEVELOPMENT AUTH ACTIVE: identity headers are trusted and requests without credentials act as admin; set AUTH_MODE=jwt or ENV=production before exposing this server")
}

func newServer(cfg *config.Config, pool *pgxpool.Pool, hub *websocket.Hub, publisher notify.Publisher,
	signingKey []byte, logger zerolog.Logger) *server {
	loc := cfg.Location()
	tx := db.NewTxRunner(pool)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID",
			auth.HeaderUserID, auth.HeaderUserRole, auth.HeaderClinicID},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	jwtCfg := auth.JWTConfig{SigningKey: signingKey, Issuer: tokenIssuer, Skipper: auth.AuthSkipper}
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		warnDevAuth(cfg, logger)
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Rate limiting
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	limiter := middleware.NewRateLimiter(rateLimitCfg)
	apiV1 := e.Group("/api/v1", limiter.Middleware())

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": serviceVersion,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Identity
	tokens := auth.NewTokenIssuer(signingKey, tokenIssuer, cfg.JWTTTL)
	identitySvc := identity.NewService(identity.NewUserRepoPG(pool), identity.NewDentistRepoPG(pool), tx, tokens, logger)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Clinics
	clinicSvc := clinic.NewService(clinic.NewRepoPG(pool), logger)
	clinic.NewHandler(clinicSvc).RegisterRoutes(apiV1)

	// Availability
	availabilitySvc := availability.NewService(
		availability.NewRuleRepoPG(pool),
		availability.NewOverrideRepoPG(pool),
		availability.NewLeaveRepoPG(pool),
		availability.NewLockerPG(pool),
		tx, identitySvc, loc, logger,
	)
	availability.NewHandler(availabilitySvc).RegisterRoutes(apiV1)

	// Notifications
	notificationSvc := notification.NewService(notification.NewRepoPG(pool), notify.NewTemplateEngine(),
		publisher, identitySvc, logger)
	if smtp := cfg.SMTP(); smtp.Enabled() {
		notificationSvc.SetMailer(notify.NewSMTPMailer(smtp))
		logger.Info().Str("host", smtp.Host).Msg("email notifications enabled")
	}
	notification.NewHandler(notificationSvc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, logger, cfg.CORSOrigins).RegisterRoutes(e)

	// Appointments
	appointmentSvc := appointment.NewService(appointment.NewRepoPG(pool), availabilitySvc, identitySvc,
		notificationSvc, tx, loc, logger)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(apiV1)

	return &server{echo: e, hub: hub, limiter: limiter, notifications: notificationSvc}
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	signingKey, randomKey, err := resolveSigningKey(cfg.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("signing key error")
	}
	if randomKey {
		logger.Warn().Msg("JWT_SECRET not set; using random key (tokens will not survive restart)")
	}

	// Live notifications: through Redis when configured so that every
	// instance can reach its own sockets, otherwise straight into the hub.
	hub := websocket.NewHub(logger)
	var publisher notify.Publisher = notify.NewLocalPublisher(hub)
	if cfg.RedisURL != "" {
		rdb, err := notify.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		broker := notify.NewRedisBroker(rdb, hub, logger)
		publisher = broker
		go func() {
			if err := broker.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("notification relay stopped")
			}
		}()
	}

	srv := newServer(cfg, pool, hub, publisher, signingKey, logger)
	go srv.limiter.Run(ctx)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", cfg.Location().String()).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = srv.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.hub.CloseAll()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	srv.notifications.Wait()
	logger.Info().Msg("server stopped")
	return nil
}
