package main

import (
	"strings"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/service"
	"dashchat/pkg/livechannel"

	"github.com/spf13/cobra"
)

func newSendCmd(a *app) *cobra.Command {
	var to, task string
	var live bool

	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send a message",
		Long: `Send a message to a user. With --live the message goes over the live
channel when it connects, and through the message store otherwise.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.identity(); err != nil {
				return err
			}
			ctx := cmd.Context()

			var channel service.LiveChannel
			if live {
				lc := livechannel.New(a.server, a.store, a.logger)
				if err := lc.Connect(ctx); err != nil {
					a.logger.WithError(err).Warn("Live channel unavailable, sending through the store")
				} else {
					defer func() { _ = lc.Close() }()
					channel = lc
				}
			}

			composer := service.NewComposer(a.client(), channel, a.logger)
			composer.SetTarget(to, task)
			composer.SetDraft(strings.Join(args, " "))

			result := composer.Send(ctx)
			switch {
			case result.Skipped:
				return apperrors.NewValidationError("message", "", "needs text and a recipient")
			case result.Err != nil:
				return result.Err
			}

			if result.Message == nil {
				printf(cmd.OutOrStdout(), "Sent via %s\n", result.Transport)
				return nil
			}
			printf(cmd.OutOrStdout(), "Sent %s via %s (%s)\n",
				result.Message.ID, result.Transport, result.Message.Status.Indicator().Label)
			return nil
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", "", "recipient user id")
	cmd.Flags().StringVar(&task, "task", "", "task id for task channel messages")
	cmd.Flags().BoolVar(&live, "live", false, "prefer the live channel")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
