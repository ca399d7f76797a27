package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/taketest/internal/api"
	"github.com/pavelanni/taketest/internal/console"
	"github.com/pavelanni/taketest/internal/handler"
	appI18n "github.com/pavelanni/taketest/internal/i18n"
	"github.com/pavelanni/taketest/internal/llm"
	"github.com/pavelanni/taketest/internal/model"
	"github.com/pavelanni/taketest/internal/session"
	"github.com/pavelanni/taketest/internal/store"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taketest",
		Short: "Timed bilingual mock tests",
	}

	take := takeCmd()
	root.AddCommand(take, serveCmd(), importCmd(), exportCmd())

	// Make "take" the default when no subcommand is given.
	root.RunE = take.RunE

	// Register take flags on root so bare `taketest --test ...` still works.
	root.Flags().AddFlagSet(take.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command, level string) {
	cmd.Flags().String("log-level", level, "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text, json)")
}

func takeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take a timed test in the terminal",
		RunE:  runTake,
	}
	f := cmd.Flags()
	f.StringP("server", "s", "http://localhost:8080", "Test server base URL, including any base path")
	f.StringP("test", "t", "", "Test identifier (lists available tests when empty)")
	f.StringP("user", "u", "", "User identifier (empty skips the already-submitted check)")
	f.String("token", "", "Bearer token sent to the server")
	f.StringP("lang", "l", "en", "Initial display language (en, te)")
	f.Duration("tick", time.Second, "Countdown tick interval")
	f.Duration("timeout", 30*time.Second, "HTTP request timeout")
	// Logs share the terminal with the exam screen.
	addLogFlags(cmd, "warn")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the test and result API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "taketest.db", "SQLite database path")
	f.StringSlice("tests", nil, "Paths to test JSON files imported at startup (repeatable)")
	f.Bool("force", false, "Re-import test files that changed since the last import")
	f.StringP("lang", "l", "en", "Fallback language for messages (en, te)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /taketest)")
	f.String("admin-token", "", "Bearer token for /api/admin (or set TAKETEST_ADMIN_TOKEN); admin routes are off when empty")
	f.String("llm-url", "", "OpenAI-compatible API base URL; the tutor is off when empty")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")
	addLogFlags(cmd, "info")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import tests from JSON files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "taketest.db", "SQLite database path")
	f.Bool("force", false, "Re-import files that changed since the last import")
	addLogFlags(cmd, "info")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export results of a test as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "taketest.db", "SQLite database path")
	f.StringP("test", "t", "", "Test identifier (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd, "info")

	_ = cmd.MarkFlagRequired("test")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TAKETEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("taketest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/taketest")
	v.AddConfigPath("/etc/taketest")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runTake(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := model.ParseLanguage(v.GetString("lang"))
	if err := appI18n.Init(string(lang)); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, err := api.New(v.GetString("server"), v.GetString("user"),
		api.WithHTTPClient(&http.Client{Timeout: v.GetDuration("timeout")}),
		api.WithToken(v.GetString("token")),
		api.WithLanguage(string(lang)),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	testID := v.GetString("test")
	if testID == "" {
		return listTests(ctx, client, cmd.OutOrStdout(), lang)
	}

	// Ctrl-C is the back button, not an immediate exit.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	con := console.New(os.Stdin, os.Stdout, console.WithLanguage(lang), console.WithResults(client))
	s := session.New(client, client, con, session.Config{
		TestID:       testID,
		UserID:       v.GetString("user"),
		Language:     lang,
		TickInterval: v.GetDuration("tick"),
	})
	slog.Debug("starting session", "test_id", testID, "server", v.GetString("server"))

	err = con.Run(ctx, s, interrupts)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func listTests(ctx context.Context, client *api.Client, w io.Writer, lang model.Language) error {
	tests, err := client.ListTests(ctx)
	if api.IsNotFound(err) {
		return fmt.Errorf("list tests: no test API at this address, check --server and its base path: %w", err)
	}
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}
	lctx := appI18n.WithLanguage(ctx, string(lang))
	fmt.Fprintln(w, appI18n.Tp(lctx, "TestsAvailable", len(tests)))
	for _, t := range tests {
		fmt.Fprintf(w, "  %-20s %s (%d, %s)\n", t.ID, t.Title, t.QuestionCount,
			model.FormatRemaining(model.Test{DurationMinutes: t.DurationMinutes}.RemainingSeconds()))
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadTests(ctx, db, v.GetStringSlice("tests"), v.GetBool("force")); err != nil {
		return fmt.Errorf("load tests: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	if langs := appI18n.Languages(); !slices.Contains(langs, lang) {
		return fmt.Errorf("unsupported language %q (available: %s)", lang, strings.Join(langs, ", "))
	}

	var llmClient *llm.Client
	if url := v.GetString("llm-url"); url != "" {
		llmClient = llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), model.ParseLanguage(lang))
		if err := llmClient.Ping(ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(db, llmClient, handler.Config{
		BasePath:   basePath,
		Lang:       lang,
		AdminToken: v.GetString("admin-token"),
	})

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	count, err := db.TestCount(ctx)
	if err != nil {
		return fmt.Errorf("count tests: %w", err)
	}
	slog.Info("starting server",
		"addr", srv.Addr,
		"lang", lang,
		"base_path", basePath,
		"tests", count,
		"tutor", llmClient != nil,
		"admin", v.GetString("admin-token") != "",
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("shutdown-timeout"))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadTests(cmd.Context(), db, args, v.GetBool("force"))
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportResults(cmd.Context(), v.GetString("test"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "test_id", export.TestID, "count", export.Summary.Count)
	return nil
}
