package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"muse/internal/agent"
	"muse/internal/archive"
	"muse/internal/cognition"
	"muse/internal/config"
	"muse/internal/embedding"
	"muse/internal/gateway"
	"muse/internal/logging"
	"muse/internal/pricing"
	"muse/internal/types"
	"muse/internal/usage"
)

var (
	// Global flags
	verbose   bool
	apiKey    string
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "muse",
	Short: "muse - cost-aware LLM cognition runtime",
	Long: `muse grows narratives eagerly and derives hypotheses carefully.

An agent holds a mind (goal state plus thinking shape), routes every
generative call through a retrying gateway, prices each call through a
tiered rate table, and archives the structured results as JSON records
with an SQLite index.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		ws := effectiveWorkspace()
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("categorized logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// initCmd writes a default workspace config
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default .muse workspace configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := effectiveWorkspace()
		path := config.Path(ws)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		cfg := config.Default(ws)
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

// growCmd runs narrative growth iterations
var growCmd = &cobra.Command{
	Use:   "grow [title] [seed-text]",
	Short: "Grow a narrative from a seed and archive the result",
	Long: `Creates a narrative record from the seed text and runs growth
iterations against the configured model. Each iteration replaces the body
with the evolved whole. The final record is archived as JSON.

Example:
  muse grow "Tidal Cities" "Coastal settlements that rebuild with the tide." --iterations 3`,
	Args: cobra.MinimumNArgs(2),
	RunE: runGrow,
}

// hypothesizeCmd derives a structured hypothesis from a narrative
var hypothesizeCmd = &cobra.Command{
	Use:   "hypothesize [narrative-file-or-title]",
	Short: "Derive a structured hypothesis from an archived narrative",
	Long: `Loads a narrative, either from a JSON file path or by title lookup in
the archive index (the most recent record under that title wins), and derives
a structured hypothesis from it.`,
	Args: cobra.ExactArgs(1),
	RunE: runHypothesize,
}

// listCmd lists archived records from the index
var listCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List archived records, newest first",
	Long: `Lists indexed records of one kind: narratives (default), hypotheses,
or topics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

// costCmd estimates a call cost from the pricing table
var costCmd = &cobra.Command{
	Use:   "cost [model] [input-tokens] [output-tokens]",
	Short: "Estimate the USD cost of a call",
	Long: `Prices a call against the tiered rate table. Input over the context
threshold switches both input and output to the over-tier rates.

Example:
  muse cost gemini-2.5-flash 150000 1000`,
	Args: cobra.ExactArgs(3),
	RunE: runCost,
}

// statsCmd prints the aggregated usage ledger
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated token usage and estimated spend",
	RunE:  runStats,
}

// embedCmd embeds text through the embedding faculty
var embedCmd = &cobra.Command{
	Use:   "embed [text]",
	Short: "Embed text and print the vector dimensions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEmbed,
}

var (
	iterations int
	speed      string
	clarity    string
	trace      bool
	goalName   string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY env)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	growCmd.Flags().IntVar(&iterations, "iterations", 0, "Growth iterations (default: configured value)")
	growCmd.Flags().StringVar(&speed, "speed", "", "Model speed override")
	growCmd.Flags().StringVar(&clarity, "clarity", "", "Reasoning clarity: instinct, glimmer, focused, lucid, piercing")
	growCmd.Flags().BoolVar(&trace, "trace", false, "Request the reasoning trace")
	growCmd.Flags().StringVar(&goalName, "goal", "", "Goal name to anchor prompts to")

	hypothesizeCmd.Flags().StringVar(&goalName, "goal", "", "Goal name to anchor prompts to")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(growCmd)
	rootCmd.AddCommand(hypothesizeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(costCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(embedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func effectiveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Path(effectiveWorkspace()))
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("no API key: pass --api-key or set GEMINI_API_KEY")
	}
	return cfg, nil
}

// shell bundles the wired faculties for one command run.
type shell struct {
	agent   *agent.Agent
	archive *archive.Archive
	tracker *usage.Tracker
	watcher *config.Watcher
}

// close flushes the usage ledger and stops the config watcher.
func (s *shell) close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if err := s.tracker.Save(); err != nil {
		logger.Warn("failed to flush usage ledger", zap.Error(err))
	}
	if err := s.archive.Close(); err != nil {
		logger.Warn("failed to close archive index", zap.Error(err))
	}
}

// applyShapeFlags lays the command-line overrides over the configured shape.
func applyShapeFlags(shape *gateway.CognitiveConfig) {
	if speed != "" {
		shape.ThoughtSpeed = speed
	}
	if clarity != "" {
		shape.Clarity = gateway.Clarity(clarity)
	}
	if trace {
		shape.IncludeTrace = true
	}
}

// buildShell assembles the full faculty chain from configuration and starts
// the config watcher so edits to .muse/config.yaml take effect mid-run.
func buildShell(ctx context.Context, cfg *config.Config) (*shell, error) {
	ws := effectiveWorkspace()

	tracker, err := usage.NewTracker(ws, cfg.PricingTable())
	if err != nil {
		return nil, err
	}

	client := gateway.NewGeminiClientWithConfig(gateway.GeminiConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Timeout:         cfg.ProviderTimeout(),
		MaxOutputTokens: 65536,
	})

	shape := &gateway.CognitiveConfig{
		SystemInstruction: cfg.Cognition.SystemInstruction,
		ThoughtSpeed:      cfg.Cognition.ThoughtSpeed,
		IncludeTrace:      cfg.Cognition.IncludeTrace,
		Clarity:           gateway.Clarity(cfg.Cognition.Clarity),
	}
	applyShapeFlags(shape)

	gw := gateway.New(client, shape,
		gateway.WithUsageSink(tracker),
		gateway.WithMaxConcurrentCalls(cfg.LLM.MaxConcurrentCalls),
	)

	arch, err := archive.New(cfg.Archive.Root, cfg.Archive.IndexPath)
	if err != nil {
		return nil, err
	}

	var embedder embedding.Engine
	if eng, err := embedding.New(embedding.Config{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.EmbeddingModel,
	}); err == nil {
		embedder = eng
	} else {
		logger.Warn("embedding engine unavailable", zap.Error(err))
	}

	mind := cognition.NewMind(gw, shape)
	if goalName != "" {
		mind.SetGoal(&types.Goal{Name: goalName, Active: true})
	}

	// Hot reload: a config edit during a long growth run updates the thinking
	// shape for the next call and re-evaluates the logging config. Flag
	// overrides stay in force across reloads.
	watcher, err := config.NewWatcher(ws)
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		watcher.Subscribe(func(c *config.Config) {
			shape.ThoughtSpeed = c.Cognition.ThoughtSpeed
			shape.IncludeTrace = c.Cognition.IncludeTrace
			shape.Clarity = gateway.Clarity(c.Cognition.Clarity)
			applyShapeFlags(shape)
			if err := logging.ReloadConfig(); err != nil {
				logger.Warn("logging reload failed", zap.Error(err))
			}
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher failed to start", zap.Error(err))
		}
	}

	return &shell{
		agent:   agent.New(cfg.Name, mind, arch, embedder),
		archive: arch,
		tracker: tracker,
		watcher: watcher,
	}, nil
}

func runGrow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := buildShell(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	rounds := iterations
	if rounds <= 0 {
		rounds = cfg.Cognition.GrowthIterations
	}
	if rounds <= 0 {
		rounds = 1
	}

	title := args[0]
	seed := strings.Join(args[1:], " ")
	n := types.NewNarrative(title, seed, nil, seed)

	logger.Info("Growing narrative",
		zap.String("title", title),
		zap.Int("iterations", rounds))

	if err := s.agent.Grow(ctx, n, rounds); err != nil {
		return err
	}

	fmt.Printf("=== %s ===\n\n%s\n", n.Title, n.Body)
	return nil
}

// loadNarrative resolves the argument as a JSON file path first, then as a
// title in the archive index.
func loadNarrative(arch *archive.Archive, arg string) (*types.Narrative, error) {
	var n types.Narrative

	if data, err := os.ReadFile(arg); err == nil {
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("failed to parse narrative: %w", err)
		}
		return &n, nil
	}

	entry, err := arch.Lookup(archive.KindNarrative, arg)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("no narrative file or archived title %q", arg)
	}
	if err := arch.Read(entry.Path, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func runHypothesize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := buildShell(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	n, err := loadNarrative(s.archive, args[0])
	if err != nil {
		return err
	}

	logger.Info("Formulating hypothesis", zap.String("title", n.Title))

	h, err := s.agent.Hypothesize(ctx, n)
	if err != nil {
		return err
	}

	fmt.Printf("Topic:  %s\nThesis: %s\n", h.Topic.Title, h.Thesis)
	for i, step := range h.Storyline.Body {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	kind := archive.KindNarrative
	if len(args) == 1 {
		switch args[0] {
		case archive.KindNarrative, archive.KindHypothesis, archive.KindTopic:
			kind = args[0]
		default:
			return fmt.Errorf("unknown record kind %q", args[0])
		}
	}

	cfg, err := config.Load(config.Path(effectiveWorkspace()))
	if err != nil {
		return err
	}
	arch, err := archive.New(cfg.Archive.Root, cfg.Archive.IndexPath)
	if err != nil {
		return err
	}
	defer arch.Close()

	entries, err := arch.List(kind)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No %s archived yet.\n", kind)
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%-6d %-40s %s\n", e.ID, e.Title, e.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runCost(cmd *cobra.Command, args []string) error {
	model := args[0]
	var in, out int
	if _, err := fmt.Sscanf(args[1], "%d", &in); err != nil {
		return fmt.Errorf("invalid input token count %q", args[1])
	}
	if _, err := fmt.Sscanf(args[2], "%d", &out); err != nil {
		return fmt.Errorf("invalid output token count %q", args[2])
	}

	cfg, err := config.Load(config.Path(effectiveWorkspace()))
	if err != nil {
		return err
	}
	table := cfg.PricingTable()

	usd := table.Estimate(model, pricing.Tokens(in), pricing.Tokens(out))
	fmt.Printf("%s: %d in / %d out -> $%.6f\n", model, in, out, usd)
	if in > pricing.ContextThreshold {
		fmt.Println("(input exceeds the context threshold; over-tier rates applied)")
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Path(effectiveWorkspace()))
	if err != nil {
		return err
	}
	tracker, err := usage.NewTracker(effectiveWorkspace(), cfg.PricingTable())
	if err != nil {
		return err
	}
	if err := tracker.Load(); err != nil {
		return err
	}

	stats := tracker.Stats()
	fmt.Printf("Total: %d in / %d out / %d cached  ($%.6f)\n",
		stats.Total.Input, stats.Total.Output, stats.Total.Cached, stats.Total.Cost)
	for model, c := range stats.ByModel {
		fmt.Printf("  %-28s %d in / %d out  ($%.6f)\n", model, c.Input, c.Output, c.Cost)
	}
	for op, c := range stats.ByOperation {
		fmt.Printf("  op:%-25s %d in / %d out  ($%.6f)\n", op, c.Input, c.Output, c.Cost)
	}
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := embedding.New(embedding.Config{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.EmbeddingModel,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	text := strings.Join(args, " ")
	vec, err := eng.Embed(ctx, text)
	if err != nil {
		return err
	}
	fmt.Printf("model=%s dims=%d\n", eng.Model(), len(vec))
	return nil
}
