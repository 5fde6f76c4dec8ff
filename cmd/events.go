/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cvdreamjob/apiserver/config"
	"github.com/cvdreamjob/apiserver/internal/mq"
	"github.com/cvdreamjob/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect profile events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print profile events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer queue.Close()

		out := cmd.OutOrStdout()
		err = queue.SubscribeEvents(ctx, cfg.MQ.Channel, printEvent(out), printMalformed(out))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

func printEvent(w io.Writer) mq.EventHandler {
	return func(_ context.Context, event types.ProfileEvent) error {
		line := fmt.Sprintf("%s\t%s\t%s", event.OccurredAt, event.Type, event.UserID)
		if event.PasswordChanged {
			line += "\tpassword_changed"
		}
		fmt.Fprintln(w, line)
		return nil
	}
}

func printMalformed(w io.Writer) func(mq.Message, error) {
	return func(msg mq.Message, err error) {
		fmt.Fprintf(w, "%s\tmalformed event: %v\n", msg.ID, err)
	}
}
