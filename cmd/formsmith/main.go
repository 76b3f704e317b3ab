package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/handler"
	"github.com/formsmith/formsmith/internal/llm"
	"github.com/formsmith/formsmith/internal/model"
	"github.com/formsmith/formsmith/internal/pipeline"
	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/internal/telemetry"
)

func main() {
	// Provider API keys may live in a local .env file.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "formsmith",
		Short: "AI form builder with multi-provider LLM fallback",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), exportCmd(), fieldTypesCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `formsmith --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP form generation server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "formsmith.db", "SQLite run ledger path")
	f.Bool("tracing", false, "Export OpenTelemetry traces")
	f.String("otlp-endpoint", "localhost:4317", "OTLP gRPC endpoint for traces")
	f.Float64("trace-sample-rate", 1.0, "Trace sampling ratio (0 to 1)")
	addClientFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a single form and print it as JSON",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("prompt", "p", "", "Form request in plain language")
	f.StringP("topic", "t", "", "Quiz or survey topic (alias for --prompt)")
	f.IntP("count", "n", 0, "Number of questions (0 lets the model decide)")
	f.Bool("quiz", false, "Force a scored quiz")
	f.Bool("survey", false, "Force a survey")
	f.Bool("quick", false, "Skip the improvement passes")
	f.String("tone", "", "Tone override (professional, friendly, casual, formal)")
	f.String("context", "", "Extra context about the audience or setting")
	f.String("reference-file", "", "File with reference material for quiz questions")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("db", "", "SQLite run ledger path (empty skips recording)")
	addClientFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the run ledger as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "formsmith.db", "SQLite run ledger path")
	f.IntP("limit", "l", 0, "Export only the newest N runs (0 = all)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func fieldTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fieldtypes",
		Short: "Print the field type catalog",
		RunE:  runFieldTypes,
	}
	f := cmd.Flags()
	f.Bool("json", false, "Print the catalog as JSON instead of the prompt reference")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

// addClientFlags registers the provider flags shared by serve and generate.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("ollama-url", "http://localhost:11434/v1", "OpenAI-compatible URL of the local fallback server (empty disables it)")
	f.String("ollama-model", "llama3.2", "Model served by the local fallback server")
	f.StringSlice("provider-order", nil, "Provider priority override (e.g. openai,ollama)")
	f.Duration("llm-timeout", 90*time.Second, "Per-attempt provider timeout")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("FORMSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("formsmith")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/formsmith")
	v.AddConfigPath("/etc/formsmith")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// buildClient assembles the provider fallback chain. A config file may pin
// an explicit adapter list under the "adapters" key; otherwise the chain
// comes from the environment.
func buildClient(v *viper.Viper) (*llm.Client, error) {
	var configs []llm.AdapterConfig
	if v.IsSet("adapters") {
		if err := v.UnmarshalKey("adapters", &configs); err != nil {
			return nil, fmt.Errorf("parse adapters config: %w", err)
		}
	}
	if len(configs) == 0 {
		configs = llm.BuiltinAdapterConfigs(v.GetString("ollama-url"), v.GetString("ollama-model"))
	}
	configs = llm.FilterByName(configs, v.GetStringSlice("provider-order"))

	return llm.New(configs, llm.Options{
		Timeout: v.GetDuration("llm-timeout"),
		Logger:  slog.Default(),
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	shutdownTracer, err := telemetry.InitTracer(cmd.Context(), telemetry.TraceConfig{
		ServiceName: "formsmith",
		Endpoint:    v.GetString("otlp-endpoint"),
		SampleRate:  v.GetFloat64("trace-sample-rate"),
		Enabled:     v.GetBool("tracing"),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("tracer shutdown", "error", err)
		}
	}()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if version, err := db.SchemaVersion(); err == nil {
		slog.Info("run ledger open", "path", v.GetString("db"), "schema_version", version)
	}

	client, err := buildClient(v)
	if err != nil {
		return fmt.Errorf("create completion client: %w", err)
	}
	slog.Info("providers configured", "order", client.Providers())

	pipe, err := pipeline.New(client, pipeline.Options{})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	h, err := handler.New(pipe, db, handler.Config{Providers: client.Providers()})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)
	r.Handle("/metrics", promhttp.Handler())

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "db", v.GetString("db"))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	prompt := strings.TrimSpace(v.GetString("prompt"))
	if prompt == "" {
		prompt = strings.TrimSpace(v.GetString("topic"))
	}
	if prompt == "" {
		return fmt.Errorf("a prompt is required: set --prompt or --topic")
	}
	if v.GetBool("quiz") && v.GetBool("survey") {
		return fmt.Errorf("--quiz and --survey are mutually exclusive")
	}

	referenceData := ""
	if path := v.GetString("reference-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read reference file: %w", err)
		}
		referenceData = string(data)
	}

	client, err := buildClient(v)
	if err != nil {
		return fmt.Errorf("create completion client: %w", err)
	}

	pipe, err := pipeline.New(client, pipeline.Options{})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	input := model.PipelineInput{
		Prompt:        prompt,
		UserContext:   v.GetString("context"),
		QuestionCount: v.GetInt("count"),
		ReferenceData: referenceData,
	}

	runID := uuid.NewString()
	ctx := model.ContextWithRunID(cmd.Context(), runID)
	started := time.Now()

	var form *model.GeneratedForm
	switch {
	case v.GetBool("quiz"):
		form, err = pipe.GenerateQuiz(ctx, input.Prompt, input.QuestionCount, input.ReferenceData)
	case v.GetBool("survey"):
		form, err = pipe.GenerateSurvey(ctx, input.Prompt, input.QuestionCount)
	case v.GetBool("quick"):
		form, err = pipe.GenerateQuick(ctx, input.Prompt, input.QuestionCount)
	default:
		form, err = pipe.Run(ctx, input, model.PipelineConfig{
			ParallelOptimization: true,
			Tone:                 model.Tone(strings.ToLower(v.GetString("tone"))),
		})
	}

	recordRun(v.GetString("db"), model.NewRun(runID, input, form, time.Since(started), err))
	if err != nil {
		return fmt.Errorf("generate form: %w", err)
	}

	data, merr := json.MarshalIndent(form, "", "  ")
	if merr != nil {
		return fmt.Errorf("marshal JSON: %w", merr)
	}
	return writeOutput(v.GetString("output"), data)
}

// recordRun appends one run to the ledger at dbPath. Recording is best
// effort; an empty path disables it.
func recordRun(dbPath string, run model.Run) {
	if dbPath == "" {
		return
	}
	db, err := store.New(dbPath)
	if err != nil {
		slog.Warn("run not recorded", "run_id", run.ID, "error", err)
		return
	}
	defer db.Close()
	if err := db.InsertRun(run); err != nil {
		slog.Warn("run not recorded", "run_id", run.ID, "error", err)
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAllRuns(v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("export runs: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeOutput(v.GetString("output"), data)
}

func runFieldTypes(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if v.GetBool("json") {
		data, err := json.MarshalIndent(catalog.Types(), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		return writeOutput(v.GetString("output"), data)
	}
	return writeOutput(v.GetString("output"), []byte(strings.TrimRight(catalog.BuildPromptReference(), "\n")))
}

// writeOutput writes data to path with a trailing newline, stdout when path
// is empty or "-".
func writeOutput(path string, data []byte) error {
	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
