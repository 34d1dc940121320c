package main

import (
	"context"
	"design-studio/designs"
	"design-studio/editor"
	"design-studio/export"
	apicart "design-studio/handlers/api/cart"
	apidesigns "design-studio/handlers/api/designs"
	"design-studio/handlers/api/exports"
	"design-studio/handlers/api/presets"
	apitemplates "design-studio/handlers/api/templates"
	apiuploads "design-studio/handlers/api/uploads"
	"design-studio/handlers/auth"
	authMiddleware "design-studio/middleware"
	"design-studio/pricing"
	"design-studio/stores"
	"design-studio/templates"
	"design-studio/tracing"
	"design-studio/uploads"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// server holds everything the router mounts.
type server struct {
	service        *designs.Service
	library        *templates.Library
	pricer         *pricing.Table
	uploader       editor.Uploader
	uploadDir      string
	uploadMaxBytes int64
	export         export.Options
}

func envInt(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		logrus.WithFields(logrus.Fields{"name": name, "value": s}).Fatal("Invalid integer setting")
	}
	return n
}

func envFloat(name string, def float64) float64 {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logrus.WithFields(logrus.Fields{"name": name, "value": s}).Fatal("Invalid number setting")
	}
	return v
}

func setupResolver(ctx context.Context) *export.Resolver {
	var cache export.Cache
	if os.Getenv("ASSET_CACHE") == "redis" {
		ttl := time.Duration(envInt("ASSET_CACHE_TTL_SECONDS", 3600)) * time.Second
		rc, err := export.NewRedisCache(ctx, os.Getenv("REDIS_URL"), ttl)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect asset cache")
		}
		cache = rc
	} else {
		cache = export.NewMemoryCache(envInt("ASSET_CACHE_ENTRIES", 0))
	}

	resolver, err := export.NewResolver(export.ResolverConfig{
		BaseURL:           os.Getenv("ASSET_BASE_URL"),
		RequestsPerSecond: envFloat("ASSET_FETCH_RPS", 0),
	}, cache)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create asset resolver")
	}
	return resolver
}

func setupUploader(maxBytes int64) (editor.Uploader, string) {
	if bucket := os.Getenv("UPLOADS_BUCKET"); bucket != "" {
		logrus.WithField("bucket", bucket).Info("Use uploads storage")
		return uploads.NewS3(bucket, os.Getenv("UPLOADS_PUBLIC_URL"), maxBytes), ""
	}
	dir := os.Getenv("UPLOADS_DIR")
	if dir == "" {
		dir = "./uploads"
	}
	logrus.WithField("dir", dir).Info("Use uploads storage")
	return uploads.NewFilesystem(dir, "/uploads", maxBytes), dir
}

func setupRouter(s *server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/presets", presets.HandleList())
		r.Get("/templates", apitemplates.HandleList(s.library))
		r.Get("/templates/{name}", apitemplates.HandleGet(s.library))
		r.Post("/quote", apicart.HandleQuote(s.pricer))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Route("/designs", func(r chi.Router) {
				r.Get("/", apidesigns.HandleList(s.service))
				r.Post("/", apidesigns.HandleSave(s.service))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", apidesigns.HandleGet(s.service))
					r.Put("/", apidesigns.HandleSave(s.service))
					r.Delete("/", apidesigns.HandleDelete(s.service))
					r.Get("/export/{format}", apidesigns.HandleExport(s.service, s.export))
				})
			})
			r.Post("/export/{format}", exports.HandleExport(s.export))
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", apicart.HandleList(s.service))
				r.Post("/", apicart.HandleAdd(s.service))
				r.Get("/{id}", apicart.HandleGet(s.service))
				r.Delete("/{id}", apicart.HandleDelete(s.service))
			})
			r.Post("/uploads", apiuploads.HandleUpload(s.uploader, s.uploadMaxBytes))
		})
	})

	if s.uploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	return r
}

func waitForShutdown(srv *http.Server, shutdownTracing func(context.Context) error) {
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-exit

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
	if err := shutdownTracing(ctx); err != nil {
		logrus.WithError(err).Error("Tracing shutdown failed")
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx := context.Background()
	shutdownTracing, err := tracing.Setup(ctx, os.Getenv("TRACING_EXPORTER"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up tracing")
	}

	library, err := templates.Load(os.Getenv("TEMPLATES_DIR"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load templates")
	}
	pricer, err := pricing.Load(os.Getenv("PRICING_FILE"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load rate card")
	}

	exportOpts := export.Options{
		DPI:      envFloat("EXPORT_DPI", 0),
		Resolver: setupResolver(ctx),
	}
	store := stores.GetStore()
	service := designs.NewService(store,
		designs.WithPricer(pricer),
		designs.WithExportOptions(exportOpts),
		designs.WithCartLimit(envInt("CART_LIMIT", 0)),
	)

	maxBytes := int64(envInt("UPLOAD_MAX_BYTES", uploads.DefaultMaxBytes))
	uploader, uploadDir := setupUploader(maxBytes)

	auth.InitAuth(ctx)

	r := setupRouter(&server{
		service:        service,
		library:        library,
		pricer:         pricer,
		uploader:       uploader,
		uploadDir:      uploadDir,
		uploadMaxBytes: maxBytes,
		export:         exportOpts,
	})

	srv := &http.Server{Addr: *listenAddress, Handler: r}
	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, shutdownTracing)
}
