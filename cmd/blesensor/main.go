package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/blesensor/internal/ble"
	"github.com/chaz8081/blesensor/internal/ble/protocol"
	"github.com/chaz8081/blesensor/internal/central"
	"github.com/chaz8081/blesensor/internal/config"
	"github.com/chaz8081/blesensor/internal/display"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/blesensor/config.yaml)")
	initConfig := flag.Bool("init", false, "write a default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			log.Printf("Config already exists at %s", config.DefaultConfigPath())
		} else {
			log.Printf("Wrote default config to %s", path)
		}
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	profile, err := protocol.ProfileFor(protocol.Role(cfg.Role))
	if err != nil {
		log.Fatalf("profile: %v", err)
	}

	printBanner(cfg, profile)

	// Presentation sinks
	shell := display.Multi{display.NewConsole(os.Stdout)}
	var srv *http.Server
	var hub *display.Hub
	if cfg.Display.WebSocketAddr != "" {
		hub = display.NewHub()
		shell = append(shell, hub)
		srv = startServer(cfg.Display.WebSocketAddr, hub)
	}

	var watch []string
	if profile.FilterServiceUUID != "" {
		watch = append(watch, profile.FilterServiceUUID)
	}
	adapter, err := ble.NewTinyGoAdapter(watch, cfg.BLE.ConnectTimeout)
	if err != nil {
		log.Fatalf("ble: %v", err)
	}

	core := central.New(adapter, profile, shell, central.Options{
		MTU:                  cfg.BLE.MTU,
		SettleDelay:          cfg.BLE.SettleDelay,
		ConnectTimeout:       cfg.BLE.ConnectTimeout,
		ReconnectDelay:       cfg.Reconnect.Delay,
		ReconnectMaxAttempts: cfg.Reconnect.MaxAttempts,
		QueueSize:            cfg.Display.QueueSize,
	})

	// Signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := core.StartScanning(ctx, central.FilterFor(profile)); err != nil {
		core.Teardown()
		if errors.Is(err, central.ErrRadioUnavailable) {
			log.Fatalf("Bluetooth is not available: %v\n\nCheck that the adapter is present and powered on.", err)
		}
		log.Fatalf("scan: %v", err)
	}
	log.Println("Ready! Scanning for sensors. Ctrl+C to quit.")

	<-ctx.Done()
	log.Println("Shutting down...")

	core.Teardown()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: websocket server shutdown: %v", err)
		}
		cancel()
		hub.Close()
	}
	log.Println("Goodbye!")
}

// startServer serves the websocket hub at /ws in the background.
func startServer(addr string, hub *display.Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Printf("Serving readings on ws://%s/ws", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("ERROR: websocket server: %v", err)
		}
	}()
	return srv
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config, profile protocol.Profile) {
	fmt.Println("=== blesensor ===")
	fmt.Printf("  Role:      %s\n", cfg.Role)
	if profile.FilterServiceUUID != "" {
		fmt.Printf("  Filter:    service %s\n", profile.FilterServiceUUID)
	}
	if profile.FilterName != "" {
		fmt.Printf("  Filter:    name %q\n", profile.FilterName)
	}
	fmt.Printf("  Service:   %s\n", profile.TargetService)
	fmt.Printf("  Plan:      %d characteristic(s)\n", len(profile.Plan))
	fmt.Printf("  Link:      MTU %d, settle %s\n", cfg.BLE.MTU, cfg.BLE.SettleDelay)
	if cfg.Reconnect.MaxAttempts > 0 {
		fmt.Printf("  Reconnect: every %s, %d attempts\n", cfg.Reconnect.Delay, cfg.Reconnect.MaxAttempts)
	} else {
		fmt.Printf("  Reconnect: every %s, forever\n", cfg.Reconnect.Delay)
	}
	if cfg.Display.WebSocketAddr != "" {
		fmt.Printf("  WebSocket: %s\n", cfg.Display.WebSocketAddr)
	}
	fmt.Printf("  Log:       %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
