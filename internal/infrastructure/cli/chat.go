package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/doeshing/risklens/internal/app"
	"github.com/doeshing/risklens/internal/domain"
)

func newChatCommand(container *app.Container) *cobra.Command {
	var guest bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session := domain.SessionContext{UserID: localUserID}
			if guest {
				session = domain.SessionContext{GuestID: container.Guests.Create(), Guest: true}
			}
			return runChatLoop(cmd, container, session)
		},
	}

	cmd.Flags().BoolVar(&guest, "guest", false, "Use an ephemeral guest session instead of the local portfolio")
	return cmd
}

func runChatLoop(cmd *cobra.Command, container *app.Container, session domain.SessionContext) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := NewHistory(container.Config.History.MaxEntries, container.Config.History.FilePath)
	for _, entry := range history.Entries() {
		line.AppendHistory(entry.Message)
	}

	fmt.Println("RiskLens chat. Ask about your portfolio, or try \"add 10 AAPL at 150\".")
	fmt.Println("Type /help for commands, /quit to exit.")
	if session.Guest {
		fmt.Println("Guest session: holdings are ephemeral and expire after inactivity.")
	}
	fmt.Println()

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			// Ctrl+D or terminal gone
			fmt.Println()
			return nil
		}

		text := strings.TrimSpace(input)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			if quit := runSlashCommand(cmd, container, session, text); quit {
				return nil
			}
			continue
		}

		history.Add(input)
		line.AppendHistory(input)

		spinner := NewSpinner(os.Stderr, "thinking")
		spinner.Start()
		result, err := container.ChatService.Process(domain.ChatRequest{
			Context: cmd.Context(),
			Text:    text,
			Session: session,
		})
		spinner.Stop()

		if err != nil {
			if errors.Is(err, domain.ErrCancelled) {
				continue
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		RenderResult(result)
		fmt.Println()

		if session.Guest {
			container.Guests.Touch(session.GuestID)
		}
	}
}

func runSlashCommand(cmd *cobra.Command, container *app.Container, session domain.SessionContext, text string) (quit bool) {
	switch strings.Fields(text)[0] {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Println("Commands:")
		fmt.Println("  /portfolio   Show your holdings")
		fmt.Println("  /history     Show recent exchanges")
		fmt.Println("  /clear       Clear this session's chat history")
		fmt.Println("  /quit        Exit")

	case "/portfolio", "/p":
		positions, err := container.Portfolio.Positions(cmd.Context(), session.Ref())
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return false
		}
		RenderPositions(domain.Summarize(positions))

	case "/history":
		records, err := container.ChatLog.Records(session.Ref().ID, domain.DefaultTranscriptLimit, "")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return false
		}
		RenderTranscript(records)

	case "/clear", "/c":
		if err := container.ChatLog.Clear(session.Ref().ID); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return false
		}
		fmt.Println("Chat history cleared.")

	default:
		fmt.Println("Unknown command. Type /help for the list.")
	}
	return false
}
