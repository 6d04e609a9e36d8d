package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"healthbridge/internal/app"
	"healthbridge/internal/server"
	"healthbridge/internal/watch"
)

func serveCmd() *cobra.Command {
	var (
		addr, basePath string
		watchModels    bool
		devLogin       bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long: `Serves the prediction API. Clients authenticate with an API key (hb apikey create)
or a bearer JWT signed with HEALTHBRIDGE_JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, err := newLogger(true)
			if err != nil {
				return err
			}
			defer log.Sync()

			ws, err := app.Open(ctx, app.Options{Workspace: viper.GetString("workspace"), Logger: log})
			if err != nil {
				return err
			}
			defer ws.Close()
			if err := ws.Config.Validate(); err != nil {
				return err
			}
			if addr == "" {
				addr = ws.Config.Server.Addr
			}
			if basePath == "" {
				basePath = ws.Config.Server.BasePath
			}

			if _, err := ws.Engine.LoadModels(ctx, "system"); err != nil {
				return err
			}

			authCfg := server.AuthConfig{
				JWTSecret:     viper.GetString("jwt-secret"),
				AllowDevLogin: devLogin,
				Logger:        log,
			}
			if authCfg.JWTSecret == "" {
				if devLogin {
					return fmt.Errorf("HEALTHBRIDGE_JWT_SECRET is required for --dev-login")
				}
				log.Warn("HEALTHBRIDGE_JWT_SECRET not set, bearer auth disabled")
			}
			handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: basePath, Auth: authCfg, Logger: log})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("serving HealthBridge API", zap.String("addr", addr), zap.String("base_path", basePath))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if d := server.NewWebhookDispatcher(ws.Engine, log); d != nil {
				g.Go(func() error { return d.Run(gctx) })
			}
			if watchModels {
				w, err := modelWatcher(ws, log)
				if err != nil {
					return err
				}
				if w.Len() > 0 {
					g.Go(func() error { return w.Run(gctx) })
				}
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from healthbridge.yml)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default /v1)")
	cmd.Flags().BoolVar(&watchModels, "watch", false, "reload model artifacts when they change on disk")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login (local use only)")
	_ = viper.BindEnv("jwt-secret", "HEALTHBRIDGE_JWT_SECRET")
	return cmd
}

// modelWatcher registers every local artifact of an enabled workflow.
func modelWatcher(ws *app.Workspace, log *zap.Logger) (*watch.Watcher, error) {
	w := watch.New(log.Named("watch"))
	for id, handle := range ws.Engine.Handles() {
		if strings.HasPrefix(handle, "http://") || strings.HasPrefix(handle, "https://") {
			continue
		}
		path := handle
		if !filepath.IsAbs(path) {
			path = filepath.Join(ws.Dir, path)
		}
		workflow := string(id)
		err := w.Add(path, func(ctx context.Context, changed string) {
			info, err := ws.Engine.ReloadModel(ctx, workflow, "watcher")
			if err != nil {
				return
			}
			log.Info("model reloaded", zap.String("workflow", workflow), zap.String("path", changed), zap.String("loaded_at", info.Model.LoadedAt))
		})
		if err != nil {
			return nil, err
		}
	}
	return w, nil
}
