package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/handler"
	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/pkg/jwt"
)

func main() {
	var configPath string
	var force bool
	var subject string

	rootCmd := &cobra.Command{
		Use:   "mrag",
		Short: "mrag retrieval augmented generation server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional, real environment variables win.
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run mrag server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(cfg, a)
		},
	}

	processCmd := &cobra.Command{
		Use:   "process <document-id>",
		Short: "chunk and embed one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.ingest.Process(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %s %s with %d chunks\n", res.DocumentID, res.Status, res.Chunks)
			return nil
		},
	}
	processCmd.Flags().BoolVar(&force, "force", false, "reprocess a document that is already processed")

	ensureIndexCmd := &cobra.Command{
		Use:   "ensure-index",
		Short: "create the chunk vector index if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			created, err := a.index.Ensure(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vector index ready, created=%t\n", created)
			return nil
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "issue an admin token for the write endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Admin.JWTSecret == "" {
				return fmt.Errorf("admin.jwt_secret is not configured")
			}
			ttl := time.Duration(cfg.Admin.TokenTTLHours) * time.Hour
			token, err := jwt.GenerateToken(subject, jwt.RoleAdmin, []byte(cfg.Admin.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "admin", "token subject")

	rootCmd.AddCommand(runCmd, processCmd, ensureIndexCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runServer(cfg *config.Config, a *app) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("vector_backend", cfg.Search.Backend),
		zap.String("embedder", a.embedder.ModelName()),
	)

	deps := handler.RouterDeps{
		Documents:   handler.NewDocumentHandler(a.ingest, cfg.Ingest.MaxUploadBytes),
		RAG:         handler.NewRAGHandler(a.search, a.answers),
		Index:       handler.NewIndexHandler(a.index),
		AdminSecret: []byte(cfg.Admin.JWTSecret),
		RateLimit:   time.Duration(cfg.RateLimitSeconds) * time.Second,
	}
	if cfg.Admin.JWTSecret == "" {
		logutil.GetLogger(context.Background()).Warn("admin.jwt_secret is empty, write endpoints are open")
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORS),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.startJobs(ctx, cfg.Jobs); err != nil {
		return err
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
