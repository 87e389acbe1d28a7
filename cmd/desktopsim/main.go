package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/desktopsim"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// CLI flags
	var (
		port        = flag.String("port", "8090", "Simulator port")
		wrapupOnEnd = flag.Bool("wrapup-on-end", false, "Report Wrapup directly in the end response")
		wrapupDelay = flag.Duration("wrapup-delay", 200*time.Millisecond, "Delay before the Wrapup transition follows an end request")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Setup logger
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "desktopsim").
		Logger()

	logger.Info().Msg("starting desktop simulator")

	platform := desktopsim.NewPlatform(desktopsim.DefaultIdleCodes(), desktopsim.DefaultWrapupCodes(), logger)
	platform.SetBehavior(desktopsim.Behavior{
		WrapupOnEnd: *wrapupOnEnd,
		WrapupDelay: *wrapupDelay,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := desktopsim.NewAPI(platform, logger)
	go func() {
		if err := api.Start(ctx, ":"+*port); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("desktop simulator stopped")
		}
	}()

	printUsage(*port)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down desktop simulator")
	cancel()
	time.Sleep(1 * time.Second)
}

func printUsage(port string) {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                  Desktop Platform Simulator                    ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  WS   ws://localhost:%s/desktop                  - Agent desktop connection\n", port)
	fmt.Println()
	fmt.Println("Available endpoints:")
	fmt.Printf("  GET  http://localhost:%s/health                  - Health check\n", port)
	fmt.Printf("  GET  http://localhost:%s/interactions            - List interactions\n", port)
	fmt.Printf("  POST http://localhost:%s/interactions            - Create an active interaction\n", port)
	fmt.Printf("  GET  http://localhost:%s/interactions/{id}       - Get one interaction\n", port)
	fmt.Printf("  POST http://localhost:%s/interactions/{id}/state - Push a lifecycle state\n", port)
	fmt.Printf("  GET  http://localhost:%s/agents                  - Agent presence\n", port)
	fmt.Printf("  GET  http://localhost:%s/codes                   - Idle and wrap-up codes\n", port)
	fmt.Printf("  GET  http://localhost:%s/behavior                - Platform behavior\n", port)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  curl -X POST http://localhost:%s/interactions -d '{\"agentId\":\"agent-1\"}'\n", port)
	fmt.Printf("  curl -X POST http://localhost:%s/interactions/int-1/state -d '{\"state\":\"Wrapup\"}'\n", port)
	fmt.Printf("  curl -X PUT http://localhost:%s/behavior -d '{\"failApply\":true,\"wrapupDelay\":200000000}'\n", port)
	fmt.Println()
}
