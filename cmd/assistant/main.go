// Command assistant is a terminal client for the research-assistant
// backend: streaming chat with the tool-using agent, message search, and
// conversation management.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/fatehu/research-assistant-sub001/api"
	"github.com/fatehu/research-assistant-sub001/config"
	"github.com/fatehu/research-assistant-sub001/conversation"
	"github.com/fatehu/research-assistant-sub001/notebook"
	"github.com/fatehu/research-assistant-sub001/session"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "assistant",
		Short: "Chat with the research assistant",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.research-assistant/config.yaml)")

	root.AddCommand(newChatCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newConversationsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func newChatCmd() *cobra.Command {
	var (
		conversationID   string
		includeContext   bool
		includeVariables bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runChat(cfg, conversationID, session.SendOptions{
				IncludeContext:   includeContext,
				IncludeVariables: includeVariables,
			})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	cmd.Flags().BoolVar(&includeContext, "context", true, "send knowledge-base context with each message")
	cmd.Flags().BoolVar(&includeVariables, "variables", false, "send notebook variables with each message")
	return cmd
}

func runChat(cfg config.Config, conversationID string, opts session.SendOptions) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client := api.New(cfg.BaseURL, cfg.APIToken, api.WithClientLogger(logger))

	store, err := notebook.NewStore(cfg.NotebookPath, logger)
	if err != nil {
		return fmt.Errorf("open notebook: %w", err)
	}
	if err := store.Watch(); err != nil {
		logger.Warn("notebook watch unavailable", "error", err)
	}
	defer store.Close()

	dispatcher := notebook.NewDispatcher(store, logger)
	convs := conversation.NewMemStore()

	ctrlOpts := []session.Option{session.WithLogger(logger)}
	if conversationID != "" {
		ctrlOpts = append(ctrlOpts, session.WithConversationID(conversationID))
	}
	ctrl := session.NewController(client, dispatcher, convs, cfg.Model, ctrlOpts...)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("auto"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}

	rl, err := readline.NewFromConfig(&readline.Config{Prompt: "you> "})
	if err != nil {
		return err
	}
	defer rl.Close()

	// Ctrl-C cancels an in-flight generation; at the prompt it exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			ctrl.Cancel()
		}
	}()

	fmt.Println("Type a message, or :q to quit. Prefix with :authorize to grant a requested capability.")

	for {
		line, err := rl.ReadLine()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		text := strings.TrimSpace(line)
		switch {
		case text == "":
			continue
		case text == ":q":
			return nil
		}

		sendOpts := opts
		if rest, ok := strings.CutPrefix(text, ":authorize "); ok {
			sendOpts.UserAuthorized = true
			text = strings.TrimSpace(rest)
		}

		if err := ctrl.Send(context.Background(), text, sendOpts); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		streamTurn(ctrl, renderer)
	}
}

// streamTurn prints progress updates until the send reaches a terminal
// state.
func streamTurn(ctrl *session.Controller, renderer *glamour.TermRenderer) {
	for u := range ctrl.Updates() {
		switch v := u.(type) {
		case session.ThoughtDelta:
			fmt.Print(dim(v.Delta))
		case session.ToolStarted:
			fmt.Printf("\n[%s ...]\n", v.Tool)
		case session.ToolFinished:
			status := "ok"
			if !v.Success {
				status = "failed"
			}
			fmt.Printf("[%s %s]\n", v.Tool, status)
		case session.AnswerDelta:
			fmt.Print(v.Delta)
		case session.AuthorizationRequired:
			fmt.Printf("\nThe agent needs permission for %q. Re-send with :authorize to grant it.\n", v.Action)
		case session.SideEffectFailed:
			fmt.Fprintln(os.Stderr, "notebook update failed:", v.Err)
		case session.Committed:
			fmt.Println()
			if out, err := renderer.Render(v.Message.Content); err == nil {
				fmt.Print(out)
			}
			if v.NewConversation {
				fmt.Printf("(conversation %s)\n", v.ConversationID)
			}
			if v.Suggestion != "" {
				fmt.Printf("Suggested follow-up: %s\n", v.Suggestion)
			}
			return
		case session.Stopped:
			fmt.Println("\n(stopped)")
			return
		case session.Failed:
			fmt.Fprintln(os.Stderr, "\ngeneration failed:", v.Err)
			return
		}
	}
}

func dim(s string) string {
	return "\x1b[2m" + s + "\x1b[0m"
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.SearchLimit
			}

			client := api.New(cfg.BaseURL, cfg.APIToken)
			hits, err := client.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, hit := range hits {
				fmt.Printf("%s  [%s] %s\n    %s\n",
					hit.CreatedAt.Format("2006-01-02 15:04"),
					hit.Role, hit.ConversationTitle, hit.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of hits")
	return cmd
}

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Manage conversations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := api.New(cfg.BaseURL, cfg.APIToken)
			convs, err := client.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			for _, conv := range convs {
				fmt.Printf("%s  %s\n", conv.ID, conv.Title)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := api.New(cfg.BaseURL, cfg.APIToken)
			return client.DeleteConversation(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := api.New(cfg.BaseURL, cfg.APIToken)
			return client.RenameConversation(cmd.Context(), args[0], args[1])
		},
	})

	return cmd
}
