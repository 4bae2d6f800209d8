package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookclub/internal/api"
	"bookclub/internal/bookclub"
	"bookclub/internal/catalog"
)

func newReaderCommand(ctx *commandContext) *cobra.Command {
	readerCmd := &cobra.Command{
		Use:   "reader",
		Short: "Manage readers",
	}
	readerCmd.AddCommand(newReaderAddCommand(ctx))
	readerCmd.AddCommand(newReaderShowCommand(ctx))
	readerCmd.AddCommand(newReaderStatsCommand(ctx))
	return readerCmd
}

func newReaderAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME",
		Short: "Register a reader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				reader, err := svc.Catalog.RegisterReader(cmd.Context(), catalog.NewReader{DisplayName: args[0]})
				if err != nil {
					return err
				}
				dto := api.FromReader(reader)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					fmt.Fprintf(out, "Registered %s as %s\n", dto.DisplayName, dto.ID)
				})
			})
		},
	}
}

func newReaderShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show READER",
		Short: "Show a reader with their queue and groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				profile, err := svc.Catalog.Reader(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dto := api.FromProfile(profile)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					current := dto.Reader.CurrentGroupID
					if current == "" {
						current = "-"
					}
					groups := strings.Join(dto.GroupIDs, ", ")
					if groups == "" {
						groups = "-"
					}
					printFields(out, [][2]string{
						{"ID", dto.Reader.ID},
						{"Name", dto.Reader.DisplayName},
						{"Current group", current},
						{"Groups", groups},
						{"Joined", dto.Reader.CreatedAt},
					})
					printQueue(out, dto.Queue)
				})
			})
		},
	}
}

func newReaderStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats READER",
		Short: "Show reading statistics for a reader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				stats, err := svc.Catalog.Stats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dto := api.FromStats(stats)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					printFields(out, [][2]string{
						{"Queued books", strconv.Itoa(dto.QueueSize)},
						{"Groups joined", strconv.Itoa(dto.TotalGroups)},
						{"Books completed", strconv.Itoa(dto.CompletedBooks)},
						{"In a group", yesNo(dto.HasCurrentGroup)},
					})
				})
			})
		},
	}
}
