// Command chat is a terminal client for the market chat server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"ai-marketchat-be/pkg/analyst/stream"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	chatID    string
	rawOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the Indian-equity market chat server",
	Long: `A terminal client for the market chat server.

Quick Start:
  chat ask "How is RELIANCE doing today?"   # Ask a single question
  chat ask --chat chat_123 "And TCS?"       # Continue a conversation
  chat                                      # Interactive session
  chat history                              # Recent conversations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return interactive(cmd.Context())
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask one question and stream the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := ask(cmd.Context(), newAPIClient(serverURL), chatID, strings.Join(args, " "))
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newAPIClient(serverURL).History(cmd.Context())
		if err != nil {
			return err
		}
		if len(list.Chats) == 0 {
			fmt.Println(metaStyle.Render("No conversations yet."))
			return nil
		}
		for _, c := range list.Chats {
			fmt.Printf("%s %s\n", titleStyle.Render(c.Title), metaStyle.Render(c.Id+"  "+c.UpdatedAt.Local().Format("02 Jan 15:04")))
			if c.Preview != "" {
				fmt.Printf("  %s\n", c.Preview)
			}
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Show the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := newAPIClient(serverURL).Messages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(conv.Messages) == 0 {
			fmt.Println(metaStyle.Render("No messages for " + args[0]))
			return nil
		}
		fmt.Println(titleStyle.Render(conv.Title))
		for _, m := range conv.Messages {
			stamp := metaStyle.Render(m.CreatedAt.Local().Format("15:04:05"))
			if m.Role == "user" {
				fmt.Printf("%s %s\n%s\n\n", userStyle.Render("You"), stamp, m.Content)
				continue
			}
			fmt.Printf("%s %s\n", assistantStyle.Render("Analyst"), stamp)
			if rawOutput {
				fmt.Println(m.Content)
			} else {
				fmt.Print(renderMarkdown(m.Content))
			}
			fmt.Println()
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newAPIClient(serverURL).Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if res.Deleted {
			fmt.Println("Deleted " + res.ChatId)
		} else {
			fmt.Println(metaStyle.Render(res.ChatId + " was not found"))
		}
		return nil
	},
}

// ask streams one answer to stdout and returns the chat id the server used.
func ask(ctx context.Context, client *apiClient, chatID, message string) (string, error) {
	var answer strings.Builder
	var failure string
	live := rawOutput || !isTTY()

	err := client.Ask(ctx, chatID, message, func(ev stream.Event) {
		switch ev.Type {
		case stream.TypeStart:
			chatID = ev.ChatID
			if ev.Ticker != "" && !live {
				fmt.Println(metaStyle.Render("Looking at " + ev.Ticker + "..."))
			}
		case stream.TypeToken:
			answer.WriteString(ev.Text)
			if live {
				fmt.Print(ev.Text)
			}
		case stream.TypeError:
			failure = ev.Message
		}
	})
	if err != nil {
		return chatID, err
	}

	if live {
		fmt.Println()
	} else {
		fmt.Print(renderMarkdown(answer.String()))
	}
	if failure != "" {
		fmt.Println(errorStyle.Render(failure))
	}
	if !live {
		fmt.Println(metaStyle.Render("chat: " + chatID))
	}
	return chatID, nil
}

func interactive(ctx context.Context) error {
	client := newAPIClient(serverURL)
	current := chatID
	reader := bufio.NewScanner(os.Stdin)

	fmt.Println(titleStyle.Render("Market chat") + metaStyle.Render(" (empty line or Ctrl-D to quit)"))
	for {
		fmt.Print(userStyle.Render("> "))
		if !reader.Scan() {
			return reader.Err()
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			return nil
		}
		id, err := ask(ctx, client, current, line)
		if err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			continue
		}
		current = id
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CHAT_SERVER_URL", "http://localhost:3000"), "Chat server base URL")
	rootCmd.PersistentFlags().BoolVar(&rawOutput, "raw", false, "Print answers without markdown rendering")
	rootCmd.PersistentFlags().StringVar(&chatID, "chat", "", "Conversation id to continue")

	rootCmd.AddCommand(askCmd, historyCmd, showCmd, deleteCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
