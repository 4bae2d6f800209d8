package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"bookclub/internal/api"
	"bookclub/internal/bookclub"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage a reader's book queue",
	}
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var reader string
	cmd := &cobra.Command{
		Use:   "add BOOK",
		Short: "Queue a book; a group forms once enough readers wait",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				result, err := svc.Queue.Enqueue(cmd.Context(), reader, args[0])
				if err != nil {
					return err
				}
				resp := api.FromEnqueue(result)
				return ctx.emit(cmd, resp, func(out io.Writer) {
					fmt.Fprintf(out, "Queued %s (%d readers waiting)\n", resp.Entry.BookID, resp.WaitingReaders)
					if resp.Group != nil {
						fmt.Fprintf(out, "Formed group %s %q with %d members\n", resp.Group.ID, resp.Group.Name, resp.Group.ActiveMembers)
					}
					if resp.FormationError != "" {
						fmt.Fprintf(out, "Group formation failed: %s\n", resp.FormationError)
					}
				})
			})
		},
	}
	addReaderFlag(cmd, &reader)
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var reader string
	cmd := &cobra.Command{
		Use:   "remove BOOK",
		Short: "Remove a book from the reader's queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				result, err := svc.Queue.Dequeue(cmd.Context(), reader, args[0])
				if err != nil {
					return err
				}
				resp := api.DequeueResponse{Removed: result.Removed, WaitingReaders: result.Demand}
				return ctx.emit(cmd, resp, func(out io.Writer) {
					if !resp.Removed {
						fmt.Fprintf(out, "%s was not queued\n", args[0])
						return
					}
					fmt.Fprintf(out, "Removed %s (%d readers waiting)\n", args[0], resp.WaitingReaders)
				})
			})
		},
	}
	addReaderFlag(cmd, &reader)
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var reader string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the reader's queue in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				entries, err := svc.Queue.List(cmd.Context(), reader)
				if err != nil {
					return err
				}
				dto := api.FromQueue(entries)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					printQueue(out, dto)
				})
			})
		},
	}
	addReaderFlag(cmd, &reader)
	return cmd
}

func printQueue(out io.Writer, entries []api.QueueEntry) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		title, waiting := "", ""
		if e.Book != nil {
			title = e.Book.Title
			waiting = strconv.Itoa(e.Book.WaitingReaders)
		}
		rows = append(rows, []string{strconv.FormatInt(e.Position, 10), e.BookID, title, waiting, e.QueuedAt})
	}
	printTable(out, "Queue is empty",
		[]string{"#", "Book", "Title", "Waiting", "Queued"},
		rows,
		alignRight, alignLeft, alignLeft, alignRight, alignLeft,
	)
}
