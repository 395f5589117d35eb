/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskboard/apiserver/config"
	"github.com/taskboard/apiserver/internal/events"
)

// notificationsCmd represents the notifications command
var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Consumes and logs card notification events",
	Long: `Subscribes to the configured events backend and logs every card
notification it receives. Requires EVENTS_BACKEND to be set. Usage:

	taskboard notifications
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		consumer, err := events.NewConsumer(cmd.Context(), cfg.Events)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start consumer: %v\n", err)
			os.Exit(1)
		}
		defer consumer.Close()

		err = consumer.Listen(cmd.Context(), func(_ context.Context, event events.Event) error {
			if event.AssigneeID != nil {
				log.Printf("%s board=%s list=%s card=%s actor=%s assignee=%s",
					event.Type, event.BoardID, event.ListID, event.CardID, event.ActorID, *event.AssigneeID)
				return nil
			}
			log.Printf("%s board=%s list=%s card=%s actor=%s",
				event.Type, event.BoardID, event.ListID, event.CardID, event.ActorID)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "consumer stopped: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
}
