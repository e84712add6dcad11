package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studyboost/booster/internal/handler"
	appI18n "github.com/studyboost/booster/internal/i18n"
	"github.com/studyboost/booster/internal/model"
	"github.com/studyboost/booster/internal/session"
	"github.com/studyboost/booster/internal/store"
	"github.com/studyboost/booster/internal/vision"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "booster",
		Short: "Textbook study booster powered by vision LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `booster --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP study server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("data-dir", "data", "Directory holding per-profile history files")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty for default)")
	f.String("llm-key", "", "API key for the vision model (or set BOOSTER_LLM_KEY)")
	f.String("llm-model", "gemini-3-flash-preview", "Vision model name")
	f.StringP("lang", "l", "ja", "Default message language (ja, en)")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins for the browser client")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a profile's quiz history as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("data-dir", "data", "Directory holding per-profile history files")
	f.String("school-type", "", "School type (elementary, middle, high) (required)")
	f.Int("grade", 0, "Grade 1-6 (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("school-type")
	_ = cmd.MarkFlagRequired("grade")

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

	v.SetEnvPrefix("BOOSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("booster")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/booster")
	v.AddConfigPath("/etc/booster")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := store.New(v.GetString("data-dir"))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	visionClient := vision.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)
	if visionClient.Configured() {
		if err := visionClient.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("vision endpoint health check: %w", err)
		}
		slog.Info("vision endpoint OK",
			"url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	} else {
		// History browsing works without a key; analysis will refuse.
		slog.Warn("no API key configured, analysis disabled")
	}

	h := handler.New(session.NewManager(visionClient, st), st)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"data_dir", v.GetString("data-dir"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := store.New(v.GetString("data-dir"))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}

	profile := model.Profile{
		SchoolType: model.SchoolType(v.GetString("school-type")),
		Grade:      v.GetInt("grade"),
	}
	doc, err := st.Load(profile)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
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

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
