package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/autoblog/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	llmx "github.com/tanpawarit/autoblog/agent/llm"
	anthropicx "github.com/tanpawarit/autoblog/pkg/anthropic"
	configx "github.com/tanpawarit/autoblog/pkg/config"
	logx "github.com/tanpawarit/autoblog/pkg/logger"
	_ "github.com/tanpawarit/autoblog/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/autoblog/pkg/openrouter"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "autoblog",
		Short: "Autoblog - compliant product articles for WordPress",
		Long: `Autoblog picks a product, researches it, drafts an article, checks it
against the compliance rules and schedules it on WordPress. The maintain
mode audits published posts and pushes corrections. The weekly mode writes
about a topic that competitor feeds cover and the blog does not.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")

	rootCmd.AddCommand(dailyCmd())
	rootCmd.AddCommand(weeklyCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(maintainCmd())
	rootCmd.AddCommand(checkKeyCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dailyCmd() *cobra.Command {
	var (
		dryRun          bool
		skipMaintenance bool
		force           bool
		product         string
		timeout         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Run one publish cycle, then maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()

			p, err := buildPipeline(ctx, false)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.orchestrator.RunCycle(ctx, orchestrator.RunOptions{DryRun: dryRun, Force: force, Product: product})
			switch {
			case errors.Is(err, contractx.ErrAlreadyPublished):
				printSkipped(cmd.OutOrStdout(), err)
			case err != nil:
				printCycle(cmd.OutOrStdout(), res, err)
				return err
			default:
				printCycle(cmd.OutOrStdout(), res, nil)
			}

			if skipMaintenance {
				return nil
			}
			svc, err := buildMaintenance(p.blog, p.rules, dryRun, 0)
			if err != nil {
				return err
			}
			report, err := svc.Run(ctx)
			printMaintenance(cmd.OutOrStdout(), report)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run the pipeline without publishing or updating posts")
	cmd.Flags().BoolVar(&skipMaintenance, "skip-maintenance", false, "skip the maintenance cycle")
	cmd.Flags().BoolVar(&force, "force", false, "publish even if a post already went out today")
	cmd.Flags().StringVar(&product, "product", "", "pick the product whose name contains this text")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall deadline for the run")
	return cmd
}

func weeklyCmd() *cobra.Command {
	var (
		dryRun          bool
		skipMaintenance bool
		force           bool
		feeds           []string
		timeout         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Run a content gap analysis, publish on the top topic, then maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()

			p, err := buildPipeline(ctx, false)
			if err != nil {
				return err
			}
			defer p.Close()

			planner, err := buildPlanner(p, feeds)
			if err != nil {
				return err
			}
			opts := orchestrator.RunOptions{DryRun: dryRun, Force: force}
			plan, err := planner.Plan(ctx)
			if best, ok := plan.Best(); err == nil && ok {
				opts.Topic = &best
			} else {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Strs("failed_feeds", plan.FailedFeeds).Msg("content gap analysis failed, running a regular cycle")
			}

			res, err := p.orchestrator.RunCycle(ctx, opts)
			switch {
			case errors.Is(err, contractx.ErrAlreadyPublished):
				printSkipped(cmd.OutOrStdout(), err)
			case err != nil:
				printCycle(cmd.OutOrStdout(), res, err)
				return err
			default:
				printCycle(cmd.OutOrStdout(), res, nil)
			}

			if skipMaintenance {
				return nil
			}
			svc, err := buildMaintenance(p.blog, p.rules, dryRun, 0)
			if err != nil {
				return err
			}
			report, err := svc.Run(ctx)
			printMaintenance(cmd.OutOrStdout(), report)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run the pipeline without publishing or updating posts")
	cmd.Flags().BoolVar(&skipMaintenance, "skip-maintenance", false, "skip the maintenance cycle")
	cmd.Flags().BoolVar(&force, "force", false, "publish even if a post already went out today")
	cmd.Flags().StringSliceVar(&feeds, "feed", nil, "competitor feed URL, repeatable (default from GAP_FEEDS)")
	cmd.Flags().DurationVar(&timeout, "timeout", 45*time.Minute, "overall deadline for the run")
	return cmd
}

func verifyCmd() *cobra.Command {
	var (
		product string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Generate and review an article without publishing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer p.Close()

			res, runErr := p.orchestrator.RunCycle(cmd.Context(), orchestrator.RunOptions{DryRun: true, Force: true, Product: product})
			printCycle(cmd.OutOrStdout(), res, runErr)

			if out != "" && res.Draft.Title != "" {
				if err := writeJSON(out, res); err != nil {
					return err
				}
				log.Info().Str("path", out).Msg("cycle result written")
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "pick the product whose name contains this text")
	cmd.Flags().StringVar(&out, "out", "", "write the cycle result as JSON to this path")
	return cmd
}

func maintainCmd() *cobra.Command {
	var (
		dryRun bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Audit published posts and push corrections",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := configx.New[AppConfig]("AUTOBLOG")
			if err != nil {
				return err
			}
			blog, err := newWordPress()
			if err != nil {
				return err
			}
			svc, err := buildMaintenance(blog, loadRules(appCfg.RulesPath), dryRun, limit)
			if err != nil {
				return err
			}
			report, err := svc.Run(cmd.Context())
			printMaintenance(cmd.OutOrStdout(), report)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report findings without updating posts")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of recent posts to audit (default from MAINTENANCE_LIMIT)")
	return cmd
}

func checkKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-key",
		Short: "Verify the LLM API key and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			llmCfg, err := configx.New[llmx.Config]("LLM")
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context(), llmCfg.Timeout)
			defer cancel()

			if llmCfg.Provider == llmx.ProviderAnthropic {
				if err := anthropicx.VerifyKey(ctx, llmCfg.AnthropicFor(contractx.AgentTypeGenerator)); err != nil {
					printKeyCheck(cmd.OutOrStdout(), llmCfg.Provider, llmCfg.Model, false, err)
					return err
				}
				printKeyCheck(cmd.OutOrStdout(), llmCfg.Provider, llmCfg.Model, true, nil)
				return nil
			}

			client := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.AgentTypeGenerator))
			found, err := openrouterx.VerifyKey(ctx, client, llmCfg.Model)
			printKeyCheck(cmd.OutOrStdout(), llmCfg.Provider, llmCfg.Model, found, err)
			return err
		},
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
