package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"passerelle/internal/provider"
	"passerelle/internal/router"
)

var (
	chatMode     string
	chatExternal bool
	chatTopK     int
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Run one conversation turn through the gateway",
	Long: `Run one conversation turn through the policy-governed router.

The message is enriched with the persona preamble, detected intent,
TF-IDF retrieval context and the recent conversation memory before
generation. Without a reachable local model the deterministic template
generator answers instead, so the command never fails on provider errors.

Examples:
  passerelle chat "Bonjour, qui es-tu ?"
  passerelle chat "Résume la dernière note de service" --mode resume
  passerelle chat "Compare nos règles aux standards du marché" --external`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatMode, "mode", provider.ModeNormal, "generation mode (normal, resume, actions)")
	chatCmd.Flags().BoolVar(&chatExternal, "external", false, "explicitly request external escalation")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", router.DefaultTopK, "retrieval results injected into the prompt")
}

func runChat(cmd *cobra.Command, args []string) error {
	req := router.ChatRequest{
		Messages:    []provider.Message{{Role: "user", Content: args[0]}},
		Mode:        chatMode,
		RAGTopK:     chatTopK,
		UseExternal: chatExternal,
	}

	result, err := chatR.Chat(context.Background(), req)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Printf("%s %s\n\n", boldGreen("passerelle"), boldCyan("["+result.Provider+"]"))
	fmt.Println(result.Reply)

	if verbose {
		t := result.Trace
		fmt.Println()
		fmt.Printf("policy=%s intent=%s confidence=%.2f memory=%t\n",
			t.Policy, t.Intent.Intent, t.Intent.Confidence, t.MemoryUsed)
		if len(t.Intent.Keywords) > 0 {
			fmt.Printf("keywords=%s\n", strings.Join(t.Intent.Keywords, ", "))
		}
		fmt.Printf("external requested=%t attempted=%t success=%t\n",
			t.ExternalRequested, t.ExternalAttempted, t.ExternalSuccess)
		if t.ExternalError != "" {
			fmt.Printf("external error=%s\n", t.ExternalError)
		}
	}

	return nil
}
