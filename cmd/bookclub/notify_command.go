package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bookclub/internal/api"
	"bookclub/internal/daemonctl"
	"bookclub/internal/logging"
	"bookclub/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			resp, err := daemonctl.NewClient(cfg).TestNotification(cmd.Context())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				// Send directly with the local configuration.
				resp = &api.NotifyTestResponse{Message: "ntfy topic not configured"}
				if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
					notifier := notifications.NewService(cfg, logging.NewNop())
					if sendErr := notifier.TestNotification(cmd.Context()); sendErr != nil {
						return fmt.Errorf("send test notification: %w", sendErr)
					}
					resp = &api.NotifyTestResponse{Sent: true, Message: "test notification sent"}
				}
				err = nil
			}
			if err != nil {
				return err
			}
			return ctx.emit(cmd, resp, func(out io.Writer) {
				switch {
				case resp.Message != "":
					fmt.Fprintln(out, resp.Message)
				case resp.Sent:
					fmt.Fprintln(out, "Test notification sent")
				default:
					fmt.Fprintln(out, "Notification not sent")
				}
			})
		},
	})
	return notifyCmd
}
