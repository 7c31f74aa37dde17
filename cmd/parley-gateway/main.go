// ABOUTME: Entry point for the parley-gateway messaging server
// ABOUTME: Serves the HTTP API and websocket relay over a SQLite store

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/conversation"
	"github.com/parleyhq/parley/internal/gateway"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/users"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _
 _ __   __ _ _ __| | ___ _   _
| '_ \ / _' | '__| |/ _ \ | | |
| |_) | (_| | |  | |  __/ |_| |
| .__/ \__,_|_|  |_|\___|\__, |
|_|                      |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: PARLEY_CONFIG env var > XDG_CONFIG_HOME/parley/gateway.yaml > ~/.config/parley/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PARLEY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parley", "gateway.yaml")
}

// getDataPath returns the path to the parley data directory.
// Priority: XDG_DATA_HOME/parley > ~/.local/share/parley
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "parley")
}

func main() {
	// Local .env files are optional; real deployments use the environment
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: parley-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                       Start the gateway server")
		fmt.Println("  init                        Create a new config file interactively")
		fmt.Println("  bootstrap --username NAME --email EMAIL")
		fmt.Println("                              Create config, database and the first account")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting parley-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	userService, err := users.New(ctx, st, logger)
	if err != nil {
		return fmt.Errorf("creating user service: %w", err)
	}
	conversationService := conversation.New(st, logger)

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	hub := gateway.NewHub(logger)
	gw := gateway.New(hub, conversationService, verifier, logger)

	handlers := api.NewHandlers(userService, conversationService, verifier, cfg.Auth, logger)
	router := api.NewRouter(handlers, verifier, gw)

	server := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("gateway listening", "addr", cfg.Server.HTTPAddr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// runBootstrap performs first-time setup of the gateway:
// 1. Creates config file with random JWT secret (if not exists)
// 2. Creates database and the first user account
// 3. Generates an access token for that account
//
// This is a one-command setup:
// parley-gateway bootstrap --username alice --email alice@example.com
func runBootstrap(ctx context.Context) error {
	// Parse args with explicit error handling
	// Supports both "--flag value" and "--flag=value" formats
	var username, email string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--username" || arg == "-u":
			if i+1 >= len(args) {
				return fmt.Errorf("--username requires a value")
			}
			username = args[i+1]
			i++
		case strings.HasPrefix(arg, "--username="):
			username = strings.TrimPrefix(arg, "--username=")
		case arg == "--email" || arg == "-e":
			if i+1 >= len(args) {
				return fmt.Errorf("--email requires a value")
			}
			email = args[i+1]
			i++
		case strings.HasPrefix(arg, "--email="):
			email = strings.TrimPrefix(arg, "--email=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return fmt.Errorf("--username flag is required")
	}
	if email == "" {
		return fmt.Errorf("--email flag is required")
	}

	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "gateway.db")

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	// Check if config exists, create if not
	var cfg *config.Config
	var jwtSecret string

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Generate random JWT secret
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)

		// Create config directory
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		// Create data directory
		if err := os.MkdirAll(dataPath, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		// Write config file
		configContent := fmt.Sprintf(`# parley-gateway configuration
# Generated by parley-gateway bootstrap

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

auth:
  jwt_secret: "%s"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}

		green.Printf("  ✓ Created config: %s\n", configPath)

		// Load the config we just created
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		// Config exists, load it
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		jwtSecret = cfg.Auth.JWTSecret

		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	// Open the store directly
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	userService, err := users.New(ctx, st, slog.Default())
	if err != nil {
		return fmt.Errorf("creating user service: %w", err)
	}

	if !userService.UsernameAvailable(username) {
		return fmt.Errorf("username %q is already taken", username)
	}

	// Generate a random one-time password; the owner should change it
	passwordBytes := make([]byte, 18)
	if _, err := rand.Read(passwordBytes); err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	password := base64.RawURLEncoding.EncodeToString(passwordBytes)

	user, err := userService.Register(ctx, username, email, password)
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	green.Printf("  ✓ Created account: %s\n", username)

	// Generate an access token for immediate use
	verifier := auth.NewJWTVerifier([]byte(jwtSecret))
	token, err := verifier.Generate(user.ID, cfg.Auth.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	// Save token to file for CLI tools to read
	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	// Print results
	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  First Account")
	cyan.Println("  -------------")
	fmt.Printf("  ID:       %s\n", user.ID)
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Printf("  Token:    %s (expires in %s)\n", tokenPath, cfg.Auth.AccessTokenTTL)
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    parley-gateway serve    # start the gateway")
	fmt.Println("    parley-admin health     # verify it is up")
	fmt.Println()

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("parley-gateway configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "gateway.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Auth
	fmt.Println("\n--- Auth Configuration ---")
	jwtSecret := prompt(reader, "JWT secret (leave empty to generate)", "")
	if jwtSecret == "" {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
	}
	accessTTL := prompt(reader, "Access token TTL", "15m")
	refreshTTL := prompt(reader, "Refresh token TTL", "168h")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# parley-gateway configuration\n")
	cfg.WriteString("# Generated by parley-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString(fmt.Sprintf("  access_token_ttl: \"%s\"\n", accessTTL))
	cfg.WriteString(fmt.Sprintf("  refresh_token_ttl: \"%s\"\n", refreshTTL))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  parley-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
