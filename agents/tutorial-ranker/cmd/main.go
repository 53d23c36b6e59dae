package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	tutorialranker "tutorial-ranker/agents/tutorial-ranker"
	"tutorial-ranker/internal/models"
	"tutorial-ranker/shared/config"
	"tutorial-ranker/shared/logging"
	"tutorial-ranker/shared/monitoring"
	"tutorial-ranker/shared/scheduler"
)

const topResults = 5

var (
	cfgFile string
	verbose bool
	topic   string
	sample  bool
	once    bool
)

func main() {
	// Create context that responds to signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tutorial-ranker",
	Short:         "Find and rank long-form YouTube tutorials",
	Long:          "Collects tutorial videos for a topic, extracts engagement and sentiment features, trains a regression forest and ranks the videos of two hours or more.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $CONFIG_FILE or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	for _, cmd := range []*cobra.Command{collectCmd, featuresCmd, runCmd, serveCmd} {
		cmd.Flags().BoolVar(&sample, "sample", false, "use the offline sample dataset instead of the YouTube API")
	}
	for _, cmd := range []*cobra.Command{collectCmd, runCmd} {
		cmd.Flags().StringVarP(&topic, "topic", "t", "", `topic or free-form request, e.g. "roadmap for web dev" (default: ranking.query)`)
	}
	serveCmd.Flags().BoolVar(&once, "once", false, "run the scheduled job once and exit")

	rootCmd.AddCommand(collectCmd, featuresCmd, trainCmd, rankCmd, runCmd, serveCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Search YouTube and store the raw candidate videos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := newPipeline(ctx)
		if err != nil {
			return err
		}

		videos, err := p.Collect(ctx, query())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Collected %d videos\n", len(videos))
		return nil
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Fetch comments and extract features from the stored videos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := newPipeline(ctx)
		if err != nil {
			return err
		}

		build, err := p.BuildFeatures(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted features for %d videos (%d without comments)\n",
			len(build.Table), build.CommentFailures)
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the ranking model on the stored features",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p := tutorialranker.NewPipeline(nil, config.FromContext(ctx), logging.WithComponent("pipeline"))

		model, err := p.Train(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Trained on %d rows\n", model.TrainingRows())
		if v := model.Validation(); v != nil {
			fmt.Fprintf(out, "Hold-out (%d rows): MAE %.4f, R2 %.4f\n", v.Rows, v.MAE, v.R2)
		}
		return nil
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the stored features with the saved model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p := tutorialranker.NewPipeline(nil, config.FromContext(ctx), logging.WithComponent("pipeline"))

		outcome, err := p.Rank(ctx)
		if err != nil {
			return err
		}
		printTop(cmd.OutOrStdout(), string(outcome.Status), outcome.Results)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage and deliver the ranking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		agent, _ := newAgent(ctx)
		defer agent.Close()
		if err := agent.Initialize(); err != nil {
			return err
		}

		report, err := agent.Run(ctx, topic, nil)
		if err != nil {
			return err
		}
		printTop(cmd.OutOrStdout(), report.Status, report.Results)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run on the configured schedule with the status API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		agent, monitor := newAgent(ctx)
		defer agent.Close()
		if err := agent.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize agent: %w", err)
		}
		s := scheduler.New(cfg.Schedule, agent, monitor, logging.WithComponent("scheduler"))

		if once {
			return s.RunOnce(ctx)
		}

		events := s.Events()
		run := func(ctx context.Context, request string) (*models.RankingReport, error) {
			return agent.Run(ctx, request, events)
		}
		server := monitoring.NewServer(monitor, cfg.Monitoring.HealthPort, cfg.Monitoring.AllowOrigins, run,
			logging.WithComponent("http"))
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		// Start blocks until the context is cancelled.
		if err := s.Start(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("scheduler failed: %w", err)
		}
		return nil
	},
}

func query() string {
	if topic == "" {
		return ""
	}
	return tutorialranker.ExtractMainTopic(topic)
}

func newSource(ctx context.Context) (tutorialranker.VideoSource, error) {
	if sample {
		return tutorialranker.SampleSource{}, nil
	}
	return tutorialranker.NewVideoSource(ctx, config.FromContext(ctx), logging.WithComponent("source"))
}

func newPipeline(ctx context.Context) (*tutorialranker.Pipeline, error) {
	source, err := newSource(ctx)
	if err != nil {
		return nil, err
	}
	return tutorialranker.NewPipeline(source, config.FromContext(ctx), logging.WithComponent("pipeline")), nil
}

func newAgent(ctx context.Context) (*tutorialranker.RankerAgent, *monitoring.Monitor) {
	var source tutorialranker.VideoSource
	if sample {
		source = tutorialranker.SampleSource{}
	}
	monitor := monitoring.NewMonitor(logging.WithComponent("monitor"))
	agent := tutorialranker.NewRankerAgent(config.FromContext(ctx), source, monitor, logging.WithComponent("agent"))
	return agent, monitor
}

func printTop(w io.Writer, status string, results []*models.RankedResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No videos to rank")
		return
	}

	n := min(topResults, len(results))
	fmt.Fprintf(w, "Top %d of %d long-form tutorials (%s):\n", n, len(results), status)
	for _, r := range results[:n] {
		fmt.Fprintf(w, "%d. %s\n   %s | %.1f min | score %.3f\n", r.Rank, r.Title, r.Link, r.DurationMinutes, r.PredictedScore)
	}
}
