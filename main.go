// Command babaqm runs the Baba QM push puzzle.
//
// Commands:
//  1. "server" (default) – HTTP server exposing the REST API, WebSocket updates and an /mcp endpoint
//  2. "stdio-mcp" – MCP stdio server that spins up an internal HTTP API if none is available
//  3. "play" – terminal client that plays the levels in order
//  4. "analyze" – level checks plus a solver run for every level
//
// Flags can also be set through the environment or a .env file, and control host/port,
// the levels and sessions directories, debug logging and optional ngrok tunneling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/babaqm/api"
	"github.com/wricardo/mcp-training/babaqm/game/config"
	"github.com/wricardo/mcp-training/babaqm/game/engine"
	"github.com/wricardo/mcp-training/babaqm/game/service"
	"github.com/wricardo/mcp-training/babaqm/game/session"
	"github.com/wricardo/mcp-training/babaqm/game/solver"
	"github.com/wricardo/mcp-training/babaqm/transport/mcp"
	"github.com/wricardo/mcp-training/babaqm/transport/websocket"
	"github.com/wricardo/mcp-training/babaqm/ui"
	"github.com/wricardo/mcp-training/babaqm/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Baba QM"
)

const (
	sessionMaxAge       = 24 * time.Hour
	sessionCleanupEvery = time.Hour
	filesystemSyncEvery = 5 * time.Second
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("Error loading .env file: %v", err)
		}
	} else {
		log.Debug("Loaded environment variables from .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. Global flags are visible to every subcommand.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "babaqm",
		Usage:   "push-puzzle server, MCP bridge and terminal client",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.StringFlag{
				Name:    "levels-dir",
				Value:   "levels",
				Usage:   "directory containing level files",
				Sources: cli.EnvVars("LEVELS_DIR"),
			},
			&cli.StringFlag{
				Name:    "sessions-dir",
				Value:   "sessions",
				Usage:   "directory where sessions are persisted",
				Sources: cli.EnvVars("SESSIONS_DIR"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the server through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
				log.SetReportCaller(true)
			}
			return ctx, nil
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "run the HTTP server with REST API, WebSocket and MCP endpoint",
				Action:  runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "run an MCP stdio server backed by the HTTP API",
				Action:  runStdioMCP,
			},
			{
				Name:      "play",
				Usage:     "play the levels in the terminal",
				ArgsUsage: "[level]",
				Action:    runPlay,
			},
			{
				Name:      "analyze",
				Usage:     "check level files and search each one for a solution",
				ArgsUsage: "[level...]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-states",
						Value: solver.DefaultMaxStates,
						Usage: "solver search bound per level",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Value: 10 * time.Second,
						Usage: "solver time limit per level",
					},
				},
				Action: runAnalyze,
			},
		},
	}
}

// services bundles what the server modes share
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence *session.FilePersistence
	levels      *config.Manager
}

// initializeServices wires the level and session managers and the game service.
// Persisted sessions are restored before it returns.
func initializeServices(levelsDir, sessionsDir string) (*services, error) {
	// Level manager first, persistence needs it to rebuild engines
	levels, err := config.NewManager(levelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create level manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(sessionsDir, levels)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessions := session.NewManagerWithPersistence(persistence)
	if err := sessions.LoadPersistedSessions(); err != nil {
		log.Warnf("Failed to load persisted sessions: %v", err)
	}

	return &services{
		game:        service.NewGameService(sessions, levels),
		sessions:    sessions,
		persistence: persistence,
		levels:      levels,
	}, nil
}

// startBackground launches the session cleanup and filesystem sync routines. Both stop
// when ctx is cancelled.
func (s *services) startBackground(ctx context.Context) {
	go sessionCleanupRoutine(ctx, s.sessions)
	go filesystemSyncRoutine(ctx, s.sessions, s.persistence)
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the retention window
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(sessionCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				log.Infof("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// filesystemSyncRoutine drops sessions from memory whose files were deleted
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(filesystemSyncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := syncWithFilesystem(manager, persistence); pruned > 0 {
				log.Infof("Filesystem sync: pruned %d orphaned sessions from memory", pruned)
			}
		}
	}
}

func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.WithField("session_id", sess.ID).Info("Pruned session from memory (file deleted)")
		}
	}
	return pruned
}

// mcpHandler exposes the MCP server over plain HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// runServer starts the HTTP server with REST API, WebSocket hub and an /mcp proxy
// endpoint. With --ngrok it also provisions a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	svc, err := initializeServices(cmd.String("levels-dir"), cmd.String("sessions-dir"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	svc.startBackground(ctx)

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(svc.game, hub))
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.WithFields(log.Fields{"version": Version, "addr": addr}).Infof("%s listening", AppName)
		log.Infof("REST API: http://%s/api", addr)
		log.Infof("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	var runErr error
	select {
	case sig := <-stop:
		log.Infof("Received signal: %v. Shutting down...", sig)
	case runErr = <-serveErr:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	if err := svc.sessions.SaveAllSessions(); err != nil {
		log.Errorf("Failed to save sessions: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
	return runErr
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is cancelled
func runNgrokTunnel(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	log.Info("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Infof("Using custom ngrok domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Errorf("Failed to start ngrok tunnel: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Errorf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Infof("Ngrok tunnel established: %s", ngrokURL)
	log.Infof("  REST API (ngrok): %s/api", ngrokURL)
	log.Infof("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Errorf("Ngrok server error: %v", err)
	}
	log.Info("Ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses an API already listening on --port;
// otherwise it starts an internal HTTP API on a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	externalURL := fmt.Sprintf("http://localhost:%d", cmd.Int("port"))
	baseURL := externalURL

	log.Debugf("Checking for external API server at %s...", externalURL)
	if !apiAvailable(externalURL) {
		log.Info("No external API server found, starting internal HTTP server")

		svc, err := initializeServices(cmd.String("levels-dir"), cmd.String("sessions-dir"))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		svc.startBackground(ctx)
		defer func() {
			if err := svc.sessions.SaveAllSessions(); err != nil {
				log.Errorf("Failed to save sessions: %v", err)
			}
		}()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub()
		go hub.Run()
		defer hub.Stop()

		httpServer := &http.Server{Handler: api.NewServer(svc.game, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
		log.Infof("Internal HTTP server listening on %s", baseURL)
	} else {
		log.Infof("External API server found at %s, using it for MCP", externalURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable probes the health endpoint of an API server
func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runPlay starts the terminal client on the given level, or the first one
func runPlay(ctx context.Context, cmd *cli.Command) error {
	levelsDir := cmd.String("levels-dir")
	levels, err := config.NewManager(levelsDir)
	if err != nil {
		return err
	}

	// log lines would tear the alternate screen
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	err = ui.Run(levels, cmd.Args().First())
	if errors.Is(err, service.ErrNoLevels) {
		fmt.Fprintf(cmd.Root().Writer, "No levels found in %s. Add *.json level files to play.\n", levelsDir)
		return nil
	}
	return err
}

// runAnalyze checks the named levels, or all of them, and exits non-zero if any is
// invalid
func runAnalyze(ctx context.Context, cmd *cli.Command) error {
	levelsDir := cmd.String("levels-dir")
	opts := analyzeOptions{
		MaxStates: cmd.Int("max-states"),
		Timeout:   cmd.Duration("timeout"),
	}

	ok, err := analyzeLevels(ctx, cmd.Root().Writer, levelsDir, cmd.Args().Slice(), opts)
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit("Some levels have errors", 1)
	}
	return nil
}

type analyzeOptions struct {
	MaxStates int
	Timeout   time.Duration
}

// analyzeLevels prints a report per level. It returns false if any level is invalid.
func analyzeLevels(ctx context.Context, w io.Writer, levelsDir string, ids []string, opts analyzeOptions) (bool, error) {
	if len(ids) == 0 {
		files, err := filepath.Glob(filepath.Join(levelsDir, "*.json"))
		if err != nil {
			return false, fmt.Errorf("failed to list levels: %w", err)
		}
		for _, file := range files {
			ids = append(ids, strings.TrimSuffix(filepath.Base(file), ".json"))
		}
		sort.Strings(ids)
	}
	if len(ids) == 0 {
		fmt.Fprintf(w, "No levels found in %s\n", levelsDir)
		return true, nil
	}

	allValid := true
	for _, id := range ids {
		report := validate.CheckFile(filepath.Join(levelsDir, strings.TrimSuffix(id, ".json")+".json"))

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), report.ID)
		if !report.Valid {
			allValid = false
			fmt.Fprintln(w, "❌ INVALID")
			for _, msg := range report.Errors {
				fmt.Fprintln(w, "  ❌ "+msg)
			}
			continue
		}

		fmt.Fprintln(w, "✅ VALID")
		fmt.Fprintf(w, "  Name: %s\n", report.Name)
		fmt.Fprintf(w, "  Grid: %dx%d\n", report.Width, report.Height)
		fmt.Fprintf(w, "  Tokens: %s\n", tokenSummary(report))
		for _, msg := range report.Warnings {
			fmt.Fprintln(w, "  ⚠ "+msg)
		}

		level, err := engine.LoadLevelFile(filepath.Join(levelsDir, report.ID+".json"))
		if err != nil {
			return false, err
		}
		fmt.Fprintln(w, "  "+solveSummary(ctx, level, opts))
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All levels are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some levels have errors")
	}
	return allValid, nil
}

func tokenSummary(report *validate.Report) string {
	var parts []string
	for i := 0; i < len(validate.Tokens); i++ {
		token := validate.Tokens[i]
		if n := report.Count(token); n > 0 {
			parts = append(parts, fmt.Sprintf("%c=%d", token, n))
		}
	}
	return strings.Join(parts, " ")
}

func solveSummary(ctx context.Context, level *engine.LevelConfig, opts analyzeOptions) string {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	result, err := solver.SolveLevel(ctx, level, solver.Options{MaxStates: opts.MaxStates})
	switch {
	case errors.Is(err, solver.ErrNondeterministic), errors.Is(err, solver.ErrNoPlayer):
		return fmt.Sprintf("Solver: skipped (%v)", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "Solver: timed out"
	case err != nil:
		return fmt.Sprintf("Solver: error (%v)", err)
	case result.Solved:
		return fmt.Sprintf("Solver: %d moves (%s), %d states explored", len(result.Moves), strings.Join(result.Moves, ","), result.Explored)
	case result.Limited:
		return fmt.Sprintf("Solver: gave up after %d states", result.Explored)
	default:
		return fmt.Sprintf("Solver: unsolvable, %d states explored", result.Explored)
	}
}
