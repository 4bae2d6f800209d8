package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookclub/internal/api"
	"bookclub/internal/bookclub"
	"bookclub/internal/store"
)

func newGroupCommand(ctx *commandContext) *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Inspect and manage reading groups",
	}
	groupCmd.AddCommand(newGroupListCommand(ctx))
	groupCmd.AddCommand(newGroupShowCommand(ctx))
	groupCmd.AddCommand(newGroupCurrentCommand(ctx))
	groupCmd.AddCommand(newGroupCreateCommand(ctx))
	groupCmd.AddCommand(newGroupLeaveCommand(ctx))
	groupCmd.AddCommand(newGroupAddMemberCommand(ctx))
	groupCmd.AddCommand(newGroupRemoveMemberCommand(ctx))
	groupCmd.AddCommand(newGroupCompleteWeekCommand(ctx))
	groupCmd.AddCommand(newGroupTransitionCommand(ctx, "activate", "Mark a forming group active",
		func(svc *bookclub.Services) groupAction { return svc.Groups.Activate }))
	groupCmd.AddCommand(newGroupTransitionCommand(ctx, "complete", "Complete a group and credit its readers",
		func(svc *bookclub.Services) groupAction { return svc.Groups.Complete }))
	groupCmd.AddCommand(newGroupTransitionCommand(ctx, "disband", "Disband a group",
		func(svc *bookclub.Services) groupAction { return svc.Groups.Disband }))
	return groupCmd
}

func newGroupListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag, reader, book string
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter store.GroupFilter
			if raw := strings.TrimSpace(statusFlag); raw != "" {
				status, ok := store.ParseGroupStatus(raw)
				if !ok {
					return fmt.Errorf("unknown group status %q", raw)
				}
				filter.Status = status
			}
			filter.ReaderID = strings.TrimSpace(reader)
			filter.BookID = strings.TrimSpace(book)
			page = max(page, 1)
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				if limit <= 0 {
					limit = svc.Catalog.PageSize()
				}
				filter.Offset = (page - 1) * limit
				filter.Limit = limit
				groups, total, err := svc.Groups.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				resp := api.GroupListResponse{
					Groups:      api.FromGroups(groups),
					Total:       total,
					CurrentPage: page,
					TotalPages:  api.TotalPages(total, limit),
				}
				return ctx.emit(cmd, resp, func(out io.Writer) {
					printGroups(out, resp.Groups)
					if resp.TotalPages > 1 {
						fmt.Fprintf(out, "Page %d of %d (%d groups)\n", resp.CurrentPage, resp.TotalPages, resp.Total)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "Only list groups in this status")
	cmd.Flags().StringVarP(&reader, "reader", "r", "", "Only list groups this reader belonged to")
	cmd.Flags().StringVar(&book, "book", "", "Only list groups reading this book")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Groups per page")
	return cmd
}

func newGroupShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show GROUP",
		Short: "Show a group with members and schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				group, err := svc.Groups.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return ctx.emitGroup(cmd, group)
			})
		},
	}
}

func newGroupCurrentCommand(ctx *commandContext) *cobra.Command {
	var reader string
	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the reader's current group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				if _, err := svc.Catalog.ResolveReader(cmd.Context(), reader); err != nil {
					return err
				}
				group, err := svc.Groups.Current(cmd.Context(), reader)
				if err != nil {
					return err
				}
				if group == nil {
					return ctx.emit(cmd, api.CurrentGroupResponse{}, func(out io.Writer) {
						fmt.Fprintln(out, "Reader is not in a group")
					})
				}
				return ctx.emitGroup(cmd, group)
			})
		},
	}
	addReaderFlag(cmd, &reader)
	return cmd
}

func newGroupCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create BOOK READER...",
		Short: "Form a group by hand from the given readers",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				group, err := svc.Groups.CreateManual(cmd.Context(), args[0], args[1:])
				if err != nil {
					return err
				}
				return ctx.emitGroup(cmd, group)
			})
		},
	}
}

func newGroupLeaveCommand(ctx *commandContext) *cobra.Command {
	var reader string
	cmd := &cobra.Command{
		Use:   "leave GROUP",
		Short: "Leave a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				group, err := svc.Groups.Leave(cmd.Context(), args[0], reader)
				if err != nil {
					return err
				}
				return ctx.emitGroup(cmd, group)
			})
		},
	}
	addReaderFlag(cmd, &reader)
	return cmd
}

func newGroupAddMemberCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-member GROUP READER",
		Short: "Add a reader to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				group, err := svc.Groups.AddMember(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return ctx.emitGroup(cmd, group)
			})
		},
	}
}

func newGroupRemoveMemberCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member GROUP READER",
		Short: "Remove a reader from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				group, err := svc.Groups.RemoveMember(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return ctx.emitGroup(cmd, group)
			})
		},
	}
}

func newGroupCompleteWeekCommand(ctx *commandContext) *cobra.Command {
	var reader string
	cmd := &cobra.Command{
		Use:   "complete-week GROUP WEEK",
		Short: "Mark a weekly discussion complete",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("week must be an integer: %q", args[1])
			}
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				group, err := svc.Groups.MarkDiscussionComplete(cmd.Context(), args[0], week, reader)
				if err != nil {
					return err
				}
				return ctx.emitGroup(cmd, group)
			})
		},
	}
	addReaderFlag(cmd, &reader)
	return cmd
}

type groupAction func(ctx context.Context, groupID string) (*store.Group, error)

func newGroupTransitionCommand(ctx *commandContext, use, short string, action func(*bookclub.Services) groupAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " GROUP",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				group, err := action(svc)(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return ctx.emitGroup(cmd, group)
			})
		},
	}
}

func (c *commandContext) emitGroup(cmd *cobra.Command, group *store.Group) error {
	dto := api.FromGroup(group)
	return c.emit(cmd, dto, func(out io.Writer) {
		printGroup(out, dto)
	})
}

func printGroups(out io.Writer, groups []api.Group) {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			g.ID,
			g.Name,
			g.Status,
			fmt.Sprintf("%d/%d", g.ActiveMembers, g.MaxMembers),
			g.StartDate,
		})
	}
	printTable(out, "No groups found",
		[]string{"ID", "Name", "Status", "Members", "Starts"},
		rows,
		alignLeft, alignLeft, alignLeft, alignRight, alignLeft,
	)
}

func printGroup(out io.Writer, g api.Group) {
	printFields(out, [][2]string{
		{"ID", g.ID},
		{"Name", g.Name},
		{"Book", g.BookID},
		{"Status", g.Status},
		{"Members", fmt.Sprintf("%d/%d", g.ActiveMembers, g.MaxMembers)},
		{"Starts", g.StartDate},
		{"Ends", g.EndDate},
	})

	members := make([][]string, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, []string{m.ReaderID, m.Status, m.JoinedAt})
	}
	printTable(out, "No members", []string{"Reader", "Status", "Joined"}, members)

	weeks := make([][]string, 0, len(g.Schedule))
	for _, d := range g.Schedule {
		weeks = append(weeks, []string{
			strconv.Itoa(d.Week),
			d.ScheduledDate,
			d.Topic,
			yesNo(d.Completed),
			strings.Join(d.Attendees, ", "),
		})
	}
	printTable(out, "No discussions scheduled",
		[]string{"Week", "Date", "Topic", "Done", "Attendees"},
		weeks,
		alignRight,
	)
}
