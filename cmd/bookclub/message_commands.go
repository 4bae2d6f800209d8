package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookclub/internal/api"
	"bookclub/internal/bookclub"
	"bookclub/internal/interaction"
)

func newMessageCommand(ctx *commandContext) *cobra.Command {
	messageCmd := &cobra.Command{
		Use:   "message",
		Short: "Read and post group chat messages",
	}
	messageCmd.AddCommand(newMessagePostCommand(ctx))
	messageCmd.AddCommand(newMessageListCommand(ctx))
	return messageCmd
}

func newMessagePostCommand(ctx *commandContext) *cobra.Command {
	var reader string
	cmd := &cobra.Command{
		Use:   "post GROUP TEXT...",
		Short: "Post a message to a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				msg, err := svc.Interaction.PostMessage(cmd.Context(), args[0], reader, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				dto := api.FromMessage(*msg)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					fmt.Fprintf(out, "Posted message %d to %s\n", dto.ID, dto.GroupID)
				})
			})
		},
	}
	addReaderFlag(cmd, &reader)
	return cmd
}

func newMessageListCommand(ctx *commandContext) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list GROUP",
		Short: "List a group's messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				page, err := svc.Interaction.ListMessages(cmd.Context(), args[0], max(offset, 0), max(limit, 0))
				if err != nil {
					return err
				}
				resp := api.MessageListResponse{
					Messages: api.FromMessages(page.Messages),
					Total:    page.Total,
					Offset:   page.Offset,
					Limit:    page.Limit,
				}
				return ctx.emit(cmd, resp, func(out io.Writer) {
					rows := make([][]string, 0, len(resp.Messages))
					for _, m := range resp.Messages {
						rows = append(rows, []string{strconv.FormatInt(m.ID, 10), m.ReaderID, m.Text, m.CreatedAt})
					}
					printTable(out, "No messages yet", []string{"ID", "Reader", "Message", "Posted"}, rows, alignRight)
					if resp.Total > len(resp.Messages) {
						fmt.Fprintf(out, "Showing %d of %d messages from offset %d\n", len(resp.Messages), resp.Total, resp.Offset)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many messages")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum messages to return")
	return cmd
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Track reading progress within a group",
	}
	progressCmd.AddCommand(newProgressSetCommand(ctx))
	progressCmd.AddCommand(newProgressListCommand(ctx))
	return progressCmd
}

func newProgressSetCommand(ctx *commandContext) *cobra.Command {
	var reader string
	var page int
	var percent float64
	cmd := &cobra.Command{
		Use:   "set GROUP",
		Short: "Record the reader's current page or percentage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update interaction.ProgressUpdate
			if cmd.Flags().Changed("page") {
				update.CurrentPage = &page
			}
			if cmd.Flags().Changed("percent") {
				update.Percentage = &percent
			}
			if update.CurrentPage == nil && update.Percentage == nil {
				return fmt.Errorf("set --page, --percent or both")
			}
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				progress, err := svc.Interaction.UpdateProgress(cmd.Context(), args[0], reader, update)
				if err != nil {
					return err
				}
				dto := api.FromProgress(*progress)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					fmt.Fprintf(out, "%s is on page %d (%.1f%%)\n", dto.ReaderID, dto.CurrentPage, dto.Percentage)
				})
			})
		},
	}
	addReaderFlag(cmd, &reader)
	cmd.Flags().IntVar(&page, "page", 0, "Current page")
	cmd.Flags().Float64Var(&percent, "percent", 0, "Percentage read (0-100)")
	return cmd
}

func newProgressListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list GROUP",
		Short: "Show every member's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				rows, err := svc.Interaction.Progress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				resp := api.ProgressListResponse{Progress: api.FromProgressRows(rows)}
				return ctx.emit(cmd, resp, func(out io.Writer) {
					table := make([][]string, 0, len(resp.Progress))
					for _, p := range resp.Progress {
						table = append(table, []string{
							p.ReaderID,
							strconv.Itoa(p.CurrentPage),
							strconv.FormatFloat(p.Percentage, 'f', 1, 64),
							p.UpdatedAt,
						})
					}
					printTable(out, "No progress recorded", []string{"Reader", "Page", "Percent", "Updated"}, table,
						alignLeft, alignRight, alignRight, alignLeft)
				})
			})
		},
	}
}
