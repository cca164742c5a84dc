package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"sia/internal/agent"
	"sia/internal/execution"
	"sia/internal/pipeline"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sia",
		Short:         "Self-initiating agent runtime",
		Long:          "sia senses your connected domains, finds problems worth your attention,\nand proposes agents you can approve, reject or snooze.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(
		newInitCmd(&configPath),
		newRunCmd(&configPath),
		newStatusCmd(&configPath),
		newDecideCmd(&configPath),
		newExecuteCmd(&configPath),
		newScheduleCmd(&configPath),
	)
	return root
}

func newInitCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the world model and sample source fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			seeded, err := seed(a)
			if err != nil {
				return err
			}
			if seeded {
				fmt.Println(green("✓") + " world model initialized with sample sources under " + bold(a.cfg.DataDir))
			} else {
				fmt.Println(gray("world model already initialized, nothing to do"))
			}
			return nil
		},
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run [domain...]",
		Short: "Run one sensing pass and surface proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			domains := args
			if len(domains) == 0 {
				if domains, err = a.domains(); err != nil {
					return err
				}
			}
			if len(domains) == 0 {
				return fmt.Errorf("no connected sources, run `sia init` first")
			}

			report, err := a.pipeline.Run(cmd.Context(), domains, nil)
			if err != nil {
				return err
			}

			if report.Woken > 0 {
				fmt.Printf("%s %d snoozed problem(s) woke up for re-evaluation\n", yellow("↻"), report.Woken)
			}
			fmt.Printf("sensed %s: %d gap(s) above threshold\n", cyan(strings.Join(domains, ", ")), report.Gaps)

			for _, prop := range report.Proposals {
				printProposal(prop)
			}
			if len(report.Proposals) == 0 {
				fmt.Println(green("✓") + " nothing needs your attention")
				return nil
			}

			if err := a.mergeProposals(report.Proposals); err != nil {
				return err
			}
			fmt.Printf("\ndecide with %s\n", bold("sia decide <proposal-id> <approve|reject|snooze>"))
			return nil
		},
	}
}

func printProposal(prop *pipeline.Proposal) {
	fmt.Printf("\n%s %s %s\n", yellow("●"), bold(prop.Problem.Name), gray("("+prop.ID+")"))
	fmt.Printf("  %s\n", prop.Problem.Description)
	fmt.Printf("  score %.2f, severity %s\n", prop.Problem.ProblemScore, prop.Problem.Severity)
	fmt.Printf("  %s %s %s\n", green("→"), prop.RecommendedSolution.Name, gray(prop.RecommendedSolution.Description))
	for _, alt := range prop.AlternativeSolutions {
		fmt.Printf("    %s %s\n", gray("alt:"), gray(alt.Name))
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the world model and pending proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			m, err := a.store.Load()
			if err != nil {
				return err
			}

			fmt.Println(bold("world model"))
			for _, src := range m.ConnectedSources {
				fmt.Printf("  source %s (%s) %s\n", cyan(src.Name), src.Domain, gray(src.Status))
			}
			fmt.Printf("  %d candidate problem(s), %d confirmed, %d learned pattern(s)\n",
				len(m.ProblemCandidates), len(m.ConfirmedProblems), len(m.Patterns))

			if len(m.ActiveAgents) > 0 {
				fmt.Println(bold("active agents"))
				for _, ag := range m.ActiveAgents {
					trigger := ag.Trigger.Cron
					if ag.Trigger.Type == agent.TriggerEvent {
						trigger = ag.Trigger.Source + ":" + ag.Trigger.Event
					}
					fmt.Printf("  %s %s %s\n", green(ag.ID), ag.SolutionName, gray(trigger))
				}
			}

			props, err := a.loadProposals()
			if err != nil {
				return err
			}
			var pending int
			for _, prop := range props {
				if prop.Status == "pending" {
					if pending == 0 {
						fmt.Println(bold("pending proposals"))
					}
					pending++
					fmt.Printf("  %s %s %s\n", yellow(prop.ID), prop.Problem.Name, gray("→ "+prop.RecommendedSolution.Name))
				}
			}
			return nil
		},
	}
}

func newDecideCmd(configPath *string) *cobra.Command {
	var user, reason string
	var snoozeDays int

	cmd := &cobra.Command{
		Use:       "decide <proposal-id> <approve|reject|snooze>",
		Short:     "Approve, reject or snooze a proposal",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{pipeline.DecisionApprove, pipeline.DecisionReject, pipeline.DecisionSnooze},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			prop, props, err := a.findProposal(args[0])
			if err != nil {
				return err
			}

			switch args[1] {
			case pipeline.DecisionApprove:
				cfg, err := a.pipeline.Approve(prop, user)
				if err != nil {
					return err
				}
				fmt.Printf("%s agent %s composed for %q\n", green("✓"), bold(cfg.ID), cfg.SolutionName)
				fmt.Printf("  run it with %s\n", bold("sia execute "+cfg.ID))
			case pipeline.DecisionReject:
				if _, err := a.pipeline.Proposals().Decide(prop, pipeline.Decision{
					Action: pipeline.DecisionReject, User: user, Reason: reason,
				}); err != nil {
					return err
				}
				fmt.Printf("%s proposal %s rejected\n", red("✗"), prop.ID)
			case pipeline.DecisionSnooze:
				if _, err := a.pipeline.Proposals().Decide(prop, pipeline.Decision{
					Action: pipeline.DecisionSnooze, User: user, Reason: reason, SnoozeDays: snoozeDays,
				}); err != nil {
					return err
				}
				fmt.Printf("%s proposal %s snoozed for %d day(s)\n", yellow("…"), prop.ID, snoozeDays)
			default:
				return fmt.Errorf("unknown decision %q", args[1])
			}

			return a.saveProposals(props)
		},
	}
	cmd.Flags().StringVar(&user, "user", "user", "who is deciding")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for reject/snooze")
	cmd.Flags().IntVar(&snoozeDays, "days", 7, "snooze horizon in days")
	return cmd
}

func newExecuteCmd(configPath *string) *cobra.Command {
	var satisfaction float64

	cmd := &cobra.Command{
		Use:   "execute <agent-id>",
		Short: "Run an active agent once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			m, err := a.store.Load()
			if err != nil {
				return err
			}
			var target *agent.Config
			for i := range m.ActiveAgents {
				if m.ActiveAgents[i].ID == args[0] {
					target = &m.ActiveAgents[i]
					break
				}
			}
			if target == nil {
				return fmt.Errorf("agent %s not found, approve a proposal first", args[0])
			}

			var feedback *pipeline.Feedback
			if satisfaction >= 0 {
				feedback = &pipeline.Feedback{Satisfaction: satisfaction}
			}

			result, err := a.pipeline.Execute(cmd.Context(), target, feedback)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().Float64Var(&satisfaction, "satisfaction", -1, "user satisfaction 0..1 fed back into learning")
	return cmd
}

func printResult(result *execution.Result) {
	mark := green("✓")
	if result.Status != "completed" {
		mark = yellow("!")
	}
	fmt.Printf("%s %s %s %s\n", mark, bold(result.AgentID), result.Status, gray(result.RunID))
	for _, action := range result.Actions {
		marker := green("·")
		switch action.Status {
		case "failed", "blocked":
			marker = red("·")
		case "rate_limited", "pending_approval", "conflict", "skipped":
			marker = yellow("·")
		}
		line := fmt.Sprintf("%s %s %s", marker, action.Do, gray(action.Status))
		if action.Reason != "" {
			line += gray(" (" + action.Reason + ")")
		}
		fmt.Println("  " + line)
	}
	fmt.Printf("  %d/%d actions succeeded, %d item(s) processed\n",
		result.Summary.Successful, result.Summary.TotalActions, result.Summary.ProcessedCount)
}

func newScheduleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run schedule-triggered agents on their cron until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			m, err := a.store.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			scheduler := cron.New()
			var registered int
			for i := range m.ActiveAgents {
				ag := m.ActiveAgents[i]
				if ag.Trigger.Type != agent.TriggerSchedule {
					continue
				}
				// Each fire is independent; a missed fire is not replayed.
				if _, err := scheduler.AddFunc(ag.Trigger.Cron, func() {
					result, err := a.pipeline.Execute(ctx, &ag, nil)
					if err != nil {
						a.logger.Error("schedule: agent %s: %v", ag.ID, err)
						return
					}
					a.logger.Info("schedule: agent %s finished %s (%s)", ag.ID, result.Status, result.RunID)
				}); err != nil {
					return fmt.Errorf("schedule agent %s: %w", ag.ID, err)
				}
				registered++
				fmt.Printf("%s %s on %s\n", cyan("⏱"), ag.ID, bold(ag.Trigger.Cron))
			}
			if registered == 0 {
				return fmt.Errorf("no schedule-triggered agents registered")
			}

			scheduler.Start()
			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		},
	}
}
