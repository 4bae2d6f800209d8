package main

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"bookclub/internal/api"
	"bookclub/internal/bookclub"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities",
	}
	dbCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show schema migration state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				states, err := svc.Store.Migrations(cmd.Context())
				if err != nil {
					return err
				}
				dto := api.FromMigrations(states)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					rows := make([][]string, 0, len(dto))
					for _, m := range dto {
						applied := m.AppliedAt
						if !m.Applied {
							applied = "pending"
						}
						rows = append(rows, []string{strconv.FormatInt(m.Version, 10), m.Source, applied})
					}
					printTable(out, "No migrations embedded", []string{"Version", "Migration", "Applied"}, rows, alignRight)
				})
			})
		},
	})
	return dbCmd
}
