// ABOUTME: Admin CLI for parley-gateway operations
// ABOUTME: Talks to the HTTP API with JWT authentication from env or token file

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
)

const banner = `
                 _                           _           _
 _ __   __ _ _ _| | ___ _   _       __ _  __| |_ __ ___ (_)_ __
| '_ \ / _' | '_| |/ _ \ | | |____ / _' |/ _' | '_ ' _ \| | '_ \
| |_) | (_| | | | |  __/ |_| |____| (_| | (_| | | | | | | | | | |
| .__/ \__,_|_| |_|\___|\__, |     \__,_|\__,_|_| |_| |_|_|_| |_|
|_|                     |___/
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := gatewayURL()
	token := getToken()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "health":
		err = cmdHealth(baseURL)
	case "status":
		err = cmdStatus(baseURL, token)
	case "token":
		err = cmdToken(args)
	case "username-check":
		err = cmdUsernameCheck(baseURL, args)
	case "conversations":
		err = cmdConversations(baseURL, token)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: parley-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  health                  Check gateway health")
	fmt.Println("  status                  Show gateway status and token state")
	fmt.Println("  token create --user ID  Mint an access token from the local config secret")
	fmt.Println("  username-check <name>   Check whether a username is available")
	fmt.Println("  conversations           List your conversations")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PARLEY_GATEWAY_HTTP     Gateway base URL (default: http://localhost:8080)")
	fmt.Println("  PARLEY_TOKEN            JWT access token (falls back to the token file)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export PARLEY_TOKEN=\"eyJhbG...\"")
	fmt.Println("  parley-admin health")
	fmt.Println("  parley-admin username-check alice")
	fmt.Println("  parley-admin token create --user 6b9f...")
	fmt.Println()
}

func gatewayURL() string {
	if u := os.Getenv("PARLEY_GATEWAY_HTTP"); u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return "http://localhost:8080"
}

// getToken returns the JWT token from PARLEY_TOKEN, falling back to the
// token file written by parley-gateway bootstrap.
func getToken() string {
	if token := os.Getenv("PARLEY_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "parley", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// getJSON performs an authenticated GET and decodes the JSON response.
func getJSON(baseURL, path, token string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return fmt.Errorf("%s: %s (status %d)", path, body.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func cmdHealth(baseURL string) error {
	if err := getJSON(baseURL, "/healthz", "", nil); err != nil {
		return err
	}
	fmt.Println("healthy")
	return nil
}

func cmdStatus(baseURL, token string) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	yellow.Printf("  Gateway:  ")
	if err := getJSON(baseURL, "/healthz", "", nil); err != nil {
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	green.Println(baseURL)

	yellow.Printf("  Token:    ")
	if token == "" {
		fmt.Println("(none - set PARLEY_TOKEN or run bootstrap)")
	} else {
		fmt.Println("present")
	}

	fmt.Println()
	return nil
}

// cmdToken mints tokens locally from the gateway config's JWT secret.
func cmdToken(args []string) error {
	if len(args) < 1 || args[0] != "create" {
		return fmt.Errorf("usage: parley-admin token create --user <user-id>")
	}
	args = args[1:]

	var userID string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--user" || arg == "-u":
			if i+1 >= len(args) {
				return fmt.Errorf("--user requires a value")
			}
			userID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--user="):
			userID = strings.TrimPrefix(arg, "--user=")
		default:
			return fmt.Errorf("unknown argument: %s", arg)
		}
	}

	if userID == "" {
		return fmt.Errorf("--user flag is required")
	}

	cfg, err := config.Load(adminConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(userID, cfg.Auth.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func adminConfigPath() string {
	if envPath := os.Getenv("PARLEY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parley", "gateway.yaml")
}

func cmdUsernameCheck(baseURL string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parley-admin username-check <name>")
	}
	username := args[0]

	var body struct {
		Username  string `json:"username"`
		Available bool   `json:"available"`
	}
	path := "/users/username-availability?username=" + url.QueryEscape(username)
	if err := getJSON(baseURL, path, "", &body); err != nil {
		return err
	}

	if body.Available {
		color.Green("%s is available\n", body.Username)
	} else {
		color.Yellow("%s is taken (or a filter false positive)\n", body.Username)
	}
	return nil
}

func cmdConversations(baseURL, token string) error {
	if token == "" {
		return fmt.Errorf("PARLEY_TOKEN environment variable is required")
	}

	var summaries []struct {
		Conversation struct {
			ID        string    `json:"id"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"conversation"`
		Participant struct {
			Username string `json:"username"`
		} `json:"participant"`
		LastMessage *struct {
			Content   string    `json:"content"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"lastMessage"`
	}
	if err := getJSON(baseURL, "/conversations/all", token, &summaries); err != nil {
		return err
	}

	if len(summaries) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWITH\tLAST MESSAGE\tWHEN")
	for _, s := range summaries {
		last, when := "(none)", s.Conversation.CreatedAt.Format(time.RFC3339)
		if s.LastMessage != nil {
			last = s.LastMessage.Content
			if len(last) > 40 {
				last = last[:37] + "..."
			}
			when = s.LastMessage.CreatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Conversation.ID, s.Participant.Username, last, when)
	}
	return w.Flush()
}
