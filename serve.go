package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/letter-snap/internal/auth"
	"github.com/example/letter-snap/internal/handlers"
	"github.com/example/letter-snap/internal/healthcheck"
	"github.com/example/letter-snap/internal/notify"
	"github.com/example/letter-snap/internal/prediction"
	"github.com/example/letter-snap/internal/workflow"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the capture service and its JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}
}

func (a *app) serve() error {
	logger := a.logger

	source, err := a.cfg.CameraSource()
	if err != nil {
		return err
	}
	client := prediction.NewHTTPClient(a.cfg.Prediction.BaseURL, nil, logger)
	hub := notify.NewHub(logger)

	wf := workflow.New(source, client, logger, workflow.Options{
		Constraints: a.cfg.Constraints(),
		Notifier:    notify.Multi{notify.NewLogNotifier(logger), hub},
	})
	defer func() {
		if err := wf.Close(); err != nil {
			logger.Warn("workflow teardown failed", zap.Error(err))
		}
	}()

	if !a.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	r.MaxMultipartMemory = handlers.MaxUploadSize

	var authMiddleware gin.HandlerFunc
	if a.cfg.Auth.JWTSecret != "" {
		authMiddleware = auth.JWTMiddleware(a.cfg.Auth.JWTSecret, a.cfg.Auth.JWTAudience)
	}
	handlers.RegisterRoutes(r, wf, hub, authMiddleware, logger)

	if addr := a.cfg.Server.GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		health := healthcheck.New(logger)
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error("gRPC health server stopped", zap.Error(err))
			}
		}()
		health.SetServing(true)
		defer health.Stop()
	}

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("letter-snap listening",
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("prediction_url", client.BaseURL()),
		zap.String("camera", a.cfg.Camera.Type),
	)
	return serveHTTPServer(server, a.cfg.ShutdownTimeout(), logger)
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
