package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/gateway"
	"github.com/ddsha441981/interview-assistant/internal/interview"
	"github.com/ddsha441981/interview-assistant/internal/logger"
	"github.com/ddsha441981/interview-assistant/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve interview sessions over HTTP and websockets",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default is server.listen)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.Interview == nil || config.Server == nil {
		logger.Fatal("config is required")
	}

	ctx := context.Background()

	gw, err := buildGateway(ctx, config, logger)
	if err != nil {
		logger.Fatal("building provider gateway", zap.Error(err))
	}

	speaker, err := buildSpeaker(config, gw, logger)
	if err != nil {
		logger.Fatal("building speaker", zap.Error(err))
	}

	sessionCfg := interviewConfig(config)
	factory := func(sessionID string) (*interview.Orchestrator, error) {
		return interview.New(sessionCfg, interview.Deps{
			Evaluator: gw,
			Speaker:   speaker,
			Logger:    logger,
			NewID:     func() string { return sessionID },
		})
	}

	var questions server.QuestionSourceFactory
	if gw.Supports(gateway.CapabilityQuestionGeneration) {
		questions = gw.QuestionSource
	}

	srv := server.New(server.Config{
		QuestionCount: config.Interview.QuestionCount,
		Retention:     config.Server.Retention,
	}, factory, questions, logger)
	e := srv.NewEcho()

	go func() {
		logger.Info("listening", zap.String("address", config.Server.Listen), zap.String("version", version))
		if err := e.Start(config.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serving", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	srv.Close()

	logger.Info("stopped")
}
