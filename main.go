package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pjc-admin/statistiques-api/config"
	"github.com/pjc-admin/statistiques-api/handlers"
	"github.com/pjc-admin/statistiques-api/middleware"
	"github.com/pjc-admin/statistiques-api/routes"
	"github.com/pjc-admin/statistiques-api/services"
	"github.com/pjc-admin/statistiques-api/utils"
)

const (
	appName    = "statistiques-api"
	appVersion = "1.0.0"
)

func main() {
	defer utils.Sync()

	root := &cobra.Command{
		Use:           appName,
		Short:         "Statistiques PJC : consultation et exports Excel / PDF",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serveCmd := newServeCmd()
	// sans sous-commande, on démarre l'API
	root.RunE = serveCmd.RunE
	root.AddCommand(serveCmd, newExportCmd())

	if err := root.Execute(); err != nil {
		utils.SafeError("%v", err)
		utils.Sync()
		os.Exit(1)
	}
}

// ============================================================================
// DÉPENDANCES
// ============================================================================

// app regroupe les services construits à partir de la configuration
type app struct {
	cfg     *config.Config
	db      *sql.DB
	stats   *services.StatistiquesService
	exports *services.ExportService
	ws      *handlers.WSHandler
}

func newApp(cfg *config.Config, withWS bool) (*app, error) {
	a := &app{cfg: cfg}

	var audit services.ExportAuditStore = services.NoopAuditStore{}
	if cfg.DatabaseURL != "" {
		db, err := config.InitDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		utils.SafeInfo("✅ Database connected successfully")
		if err := config.RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		audit = services.NewPGAuditStore(db)
	} else {
		utils.SafeWarn("DATABASE_URL not set, export history disabled")
	}

	loc, err := time.LoadLocation(cfg.Export.Location)
	if err != nil {
		return nil, err
	}

	client := services.NewStatistiquesClient(cfg.Stats.APIURL, cfg.Stats.Timeout)
	policy := services.NewFetchPolicy(cfg.Stats.FetchPolicy, cfg.Stats.Concurrency)
	a.stats = services.NewStatistiquesService(client, policy, cfg.Stats.StartYear)

	var notifier services.ExportNotifier
	if withWS {
		a.ws = handlers.NewWSHandler()
		notifier = a.ws
	}

	a.exports = services.NewExportService(a.stats,
		services.NewExcelGenerator(),
		services.NewPDFGenerator(cfg.Export.ImageScale, cfg.Export.JPEGQuality),
		audit, notifier, loc)
	return a, nil
}

func (a *app) Close() {
	if a.ws != nil {
		a.ws.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// ============================================================================
// SERVE
// ============================================================================

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Démarre l'API HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}

			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(cmd.Context(), a)
		},
	}
}

func newRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	origins := a.cfg.AllowedOrigins()
	utils.SafeInfo("🌍 CORS: Allowing origins: %v", origins)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Export-Pages"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		utils.LogAPIRequest(c.Request.Method, c.Request.URL.Path, middleware.GetUserID(c), c.Writer.Status(), time.Since(start).String())
	})

	router.Use(middleware.RateLimiter(a.cfg.RateLimit))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(a.cfg.JWTSecret))
	{
		routes.SetupStatistiquesRoutes(v1,
			handlers.NewStatistiquesHandler(a.stats),
			handlers.NewExportHandler(a.exports))
		routes.SetupWSRoutes(v1, a.ws)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": appVersion,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	return router
}

func serve(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(utils.Logger()),
	}

	utils.LogStartup(appName, appVersion, a.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	utils.SafeInfo("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
