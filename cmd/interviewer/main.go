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
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/pavelanni/interviewer/internal/content"
	"github.com/pavelanni/interviewer/internal/corpus"
	"github.com/pavelanni/interviewer/internal/handler"
	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/rubric"
	"github.com/pavelanni/interviewer/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "interviewer",
		Short: "Oral admissions interview simulator powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `interviewer --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP interview server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "interviewer.db", "SQLite database path (empty disables the archive)")
	f.StringSliceP("problems", "p", nil, "Paths to problem YAML files (repeatable; default: embedded set)")
	f.String("problem", "", "Problem id for the first session (default: random)")
	f.Duration("dwell", interview.DefaultDwell, "Pause between an acknowledgment and the next question")
	f.Bool("classify-passage", false, "Also look for science keywords in the passage")
	f.StringP("lang", "l", "ko", "Interview language (ko, en)")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new problem and print it in the marker format",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("topic", "t", "", "Topic of the new problem (required)")
	f.StringP("mode", "m", string(model.CategoryEthics), "Problem mode (ethics, science)")
	f.StringSliceP("problems", "p", nil, "Problem YAML files for the style example (default: embedded set)")
	f.StringP("lang", "l", "ko", "Problem language (ko, en)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLLMFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived interviews as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "interviewer.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "", "OpenAI-compatible API base URL (default: OpenAI)")
	f.String("llm-key", "", "API key for the LLM (or set OPENAI_API_KEY)")
	f.String("chat-model", "gpt-4o", "Model for problem generation and acknowledgments")
	f.String("grade-model", "gpt-4o-mini", "Model for grading")
	f.String("stt-model", "whisper-1", "Speech-to-text model")
	f.String("tts-model", "tts-1", "Text-to-speech model")
	f.String("speech-language", "ko", "Language hint for speech recognition")
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
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INTERVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("interviewer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/interviewer")
	v.AddConfigPath("/etc/interviewer")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	classifier := content.NewKeywordClassifier(v.GetBool("classify-passage"))

	// Open database.
	var db *store.Store
	if path := v.GetString("db"); path != "" {
		var err error
		if db, err = store.New(path); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
	}

	lib, err := loadCorpus(db, v.GetStringSlice("problems"), classifier)
	if err != nil {
		return fmt.Errorf("load problems: %w", err)
	}

	client, err := newLLMClient(v, lang)
	if err != nil {
		return err
	}
	if client != nil {
		client.SetStyleExample(lib.StyleExample())
	}

	o, err := interview.New(collaborators(client, db, lang), interview.Config{
		Phrases: appI18n.NewPhrasebook(lang),
		Parser:  content.NewParser(classifier),
		Dwell:   v.GetDuration("dwell"),
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	defer o.Close()

	first, err := firstProblem(lib, v.GetString("problem"))
	if err != nil {
		return err
	}
	if err := o.Reset(context.Background(), first.QuestionRecord); err != nil {
		return fmt.Errorf("start first session: %w", err)
	}

	h, err := handler.New(o, lib, db, classifier)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"problems", lib.Len(),
		"first_problem", first.ID,
		"llm", client != nil,
		"archive", db != nil,
		"dwell", v.GetDuration("dwell"),
	)
	return http.ListenAndServe(addr, r)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	classifier := content.NewKeywordClassifier(false)
	lib, err := loadCorpus(nil, v.GetStringSlice("problems"), classifier)
	if err != nil {
		return fmt.Errorf("load problems: %w", err)
	}

	client, err := newLLMClient(v, lang)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("generate needs an API key: %w", llm.ErrNoAPIKey)
	}
	client.SetStyleExample(lib.StyleExample())

	mode := model.ParseCategory(strings.ToLower(v.GetString("mode")))
	raw, err := client.Generate(cmd.Context(), v.GetString("topic"), mode)
	if err != nil {
		return err
	}
	rec, err := content.NewParser(classifier).ParseStrict(raw)
	if err != nil {
		slog.Warn("generated problem is malformed", "error", err)
		rec = content.Sentinel(raw)
	}
	rec.Category = mode
	slog.Info("generated problem", "title", rec.Title, "category", rec.Category, "questions", len(rec.Questions))

	return writeOutput(v.GetString("output"), []byte(content.Format(rec)))
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportInterviews()
	if err != nil {
		return fmt.Errorf("export interviews: %w", err)
	}

	export := model.InterviewExport{
		ExportedAt: time.Now().UTC(),
		Count:      len(results),
		Results:    results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeOutput(v.GetString("output"), data)
}

func writeOutput(outPath string, data []byte) error {
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
	if len(data) == 0 || data[len(data)-1] != '\n' {
		_, _ = fmt.Fprintln(w)
	}
	return nil
}

// newLLMClient returns nil without error when no API key is configured; the
// interview then runs with every model-backed step unavailable.
func newLLMClient(v *viper.Viper, lang string) (*llm.Client, error) {
	key := v.GetString("llm-key")
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	client, err := llm.New(llm.Config{
		BaseURL:        v.GetString("llm-url"),
		APIKey:         key,
		ChatModel:      v.GetString("chat-model"),
		GradeModel:     v.GetString("grade-model"),
		STTModel:       v.GetString("stt-model"),
		TTSModel:       v.GetString("tts-model"),
		SpeechLanguage: v.GetString("speech-language"),
		Language:       promptLanguage(lang),
	})
	if errors.Is(err, llm.ErrNoAPIKey) {
		slog.Warn("no LLM API key configured; generation, speech and grading are unavailable")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "chat_model", v.GetString("chat-model"))
	return client, nil
}

// collaborators wires the optional client and archive. Nil values must stay
// untyped so the orchestrator sees them as missing.
func collaborators(client *llm.Client, db *store.Store, lang string) interview.Collaborators {
	var c interview.Collaborators
	var grader rubric.Grader
	if client != nil {
		c.Generator = client
		c.Transcriber = client
		c.Speaker = client
		c.Interviewer = client
		grader = client
	}
	c.Evaluator = rubric.NewEvaluator(grader, promptLanguage(lang))
	if db != nil {
		c.Archiver = db
	}
	return c
}

// loadCorpus imports problem files into the store once per content hash and
// builds the corpus from everything stored. Without a store the files are
// parsed directly.
func loadCorpus(db *store.Store, paths []string, classifier content.Classifier) (*corpus.Corpus, error) {
	type source struct {
		name string
		data []byte
	}
	var sources []source
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		sources = append(sources, source{path, data})
	}
	if len(sources) == 0 {
		sources = append(sources, source{corpus.DefaultName, corpus.Default()})
	}

	if db == nil {
		var problems []model.Problem
		for _, src := range sources {
			ps, err := corpus.Parse(src.data, classifier)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", src.name, err)
			}
			problems = append(problems, ps...)
		}
		return corpus.New(problems)
	}

	for _, src := range sources {
		_, err := corpus.Import(db, src.name, src.data, classifier, false)
		switch {
		case errors.Is(err, corpus.ErrUnchanged):
			slog.Info("problems file unchanged, skipping", "path", src.name)
		case errors.Is(err, corpus.ErrChanged):
			slog.Warn("problems file changed since last import, skipping", "path", src.name)
		case err != nil:
			return nil, err
		}
	}
	n, err := db.ProblemCount()
	if err != nil {
		return nil, fmt.Errorf("count problems: %w", err)
	}
	slog.Info("problems in database", "count", n)
	return corpus.Load(db)
}

func firstProblem(lib *corpus.Corpus, id string) (model.Problem, error) {
	if id == "" {
		return lib.Random(), nil
	}
	rec, ok := lib.Get(id)
	if !ok {
		return model.Problem{}, fmt.Errorf("unknown problem %q (available: %s)", id, strings.Join(lib.IDs(), ", "))
	}
	return model.Problem{ID: id, QuestionRecord: rec}, nil
}

// promptLanguage turns a language code into the English name used in prompts.
func promptLanguage(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return "Korean"
	}
	return display.English.Languages().Name(tag)
}
