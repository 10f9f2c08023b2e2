package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/risklens/internal/app"
	"github.com/doeshing/risklens/internal/domain"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// localUserID identifies the single CLI user. Guest sessions get ephemeral
// uuid-backed scopes instead.
const localUserID = "local"

// NewRootCmd wires the cobra root command.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(ctx, opts.Verbose)
	if err != nil {
		return nil, err
	}

	askCmd := newAskCommand(container)

	root := &cobra.Command{
		Use:   "risklens [message]",
		Short: "RiskLens - portfolio chat assistant",
		Long:  "RiskLens answers questions about your portfolio, executing simple commands locally and routing judgment questions to an AI provider.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			askCmd.SetArgs(args)
			return askCmd.ExecuteContext(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(askCmd)
	root.AddCommand(newChatCommand(container))
	root.AddCommand(newPortfolioCommand(container))
	root.AddCommand(newHistoryCommand(container))
	root.AddCommand(newConfigCommand(container))
	root.AddCommand(newDoctorCommand(container))
	root.AddCommand(newVersionCommand())
	return root, nil
}

func newAskCommand(container *app.Container) *cobra.Command {
	var (
		guest bool
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Ask one question about your portfolio",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := domain.SessionContext{UserID: localUserID}
			if guest {
				session = domain.SessionContext{GuestID: container.Guests.Create(), Guest: true}
			}
			result, err := container.ChatService.Process(domain.ChatRequest{
				Context: cmd.Context(),
				Text:    strings.Join(args, " "),
				Session: session,
				Debug:   debug,
			})
			if err != nil {
				return err
			}
			RenderResult(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&guest, "guest", false, "Use an ephemeral guest session instead of the local portfolio")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable verbose logging")
	return cmd
}

func newPortfolioCommand(container *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage your holdings directly",
	}

	ref := domain.SessionRef{ID: localUserID}

	show := &cobra.Command{
		Use:   "show",
		Short: "List all holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			positions, err := container.Portfolio.Positions(cmd.Context(), ref)
			if err != nil {
				return err
			}
			RenderPositions(domain.Summarize(positions))
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add SYMBOL QUANTITY PRICE",
		Short: "Add shares to a holding",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			price, err := strconv.ParseFloat(strings.TrimPrefix(args[2], "$"), 64)
			if err != nil {
				return fmt.Errorf("invalid price %q", args[2])
			}
			pos, err := container.Portfolio.Add(cmd.Context(), ref, strings.ToUpper(args[0]), qty, price)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %g shares at an average cost of $%.2f\n", pos.Symbol, pos.Quantity, pos.AvgPrice)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove SYMBOL [QUANTITY]",
		Short: "Remove shares (omit quantity to drop the whole position)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var qty float64
			if len(args) == 2 {
				parsed, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
				qty = parsed
			}
			if err := container.Portfolio.Remove(cmd.Context(), ref, strings.ToUpper(args[0]), qty); err != nil {
				return err
			}
			fmt.Println("Done.")
			return nil
		},
	}

	cmd.AddCommand(show, add, remove)
	return cmd
}

func newHistoryCommand(container *app.Container) *cobra.Command {
	var (
		limit  int
		search string
		clear  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past chat exchanges",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clear {
				if err := container.ChatLog.Clear(localUserID); err != nil {
					return err
				}
				fmt.Println("Chat history cleared.")
				return nil
			}
			records, err := container.ChatLog.Records(localUserID, limit, search)
			if err != nil {
				return err
			}
			RenderTranscript(records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", domain.DefaultTranscriptLimit, "Maximum entries to show")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by message or reply text")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete stored chat history")
	return cmd
}

func newConfigCommand(container *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(container.ConfigLoader.Path())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := container.ConfigProvider.Load(cmd.Context())
			if err != nil {
				return err
			}
			RenderConfig(cfg)
			return nil
		},
	})

	return cmd
}

func newDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage, and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := container.DoctorService.Run(cmd.Context())
			RenderReport(report)
			return err
		},
	}
}
