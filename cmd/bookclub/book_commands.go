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
	"bookclub/internal/store"
)

func newBookCommand(ctx *commandContext) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the book catalog",
	}
	bookCmd.AddCommand(newBookAddCommand(ctx))
	bookCmd.AddCommand(newBookListCommand(ctx))
	bookCmd.AddCommand(newBookShowCommand(ctx))
	bookCmd.AddCommand(newBookAlmostReadyCommand(ctx))
	return bookCmd
}

func newBookAddCommand(ctx *commandContext) *cobra.Command {
	var author, genre string
	var pages int

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a book to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				book, err := svc.Catalog.AddBook(cmd.Context(), catalog.NewBook{
					Title:     args[0],
					Author:    author,
					Genre:     genre,
					PageCount: pages,
				})
				if err != nil {
					return err
				}
				dto := api.FromBook(book)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					fmt.Fprintf(out, "Added %q by %s (%s) as %s\n", dto.Title, dto.Author, dto.Genre, dto.ID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Book author")
	cmd.Flags().StringVar(&genre, "genre", "", "Book genre")
	cmd.Flags().IntVar(&pages, "pages", 0, "Page count")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("genre")
	return cmd
}

func newBookListCommand(ctx *commandContext) *cobra.Command {
	var genre, sortFlag string
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books by demand",
		RunE: func(cmd *cobra.Command, args []string) error {
			sort := store.BookSort(strings.TrimSpace(sortFlag))
			switch sort {
			case "", store.SortByDemand, store.SortByReads, store.SortByNewest, store.SortByTitle:
			default:
				return fmt.Errorf("unknown sort %q (use waiting, reads, newest or title)", sortFlag)
			}
			page = max(page, 1)
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				if limit <= 0 {
					limit = svc.Catalog.PageSize()
				}
				books, total, err := svc.Catalog.ListBooks(cmd.Context(), store.BookFilter{
					Genre:  genre,
					Sort:   sort,
					Offset: (page - 1) * limit,
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				resp := api.BookListResponse{
					Books:       api.FromBooks(books),
					TotalBooks:  total,
					CurrentPage: page,
					TotalPages:  api.TotalPages(total, limit),
				}
				return ctx.emit(cmd, resp, func(out io.Writer) {
					printBooks(out, resp.Books)
					if resp.TotalPages > 1 {
						fmt.Fprintf(out, "Page %d of %d (%d books)\n", resp.CurrentPage, resp.TotalPages, resp.TotalBooks)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&genre, "genre", "", "Only list books in this genre")
	cmd.Flags().StringVar(&sortFlag, "sort", "", "Sort order: waiting, reads, newest or title")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Books per page")
	return cmd
}

func newBookShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show BOOK",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				book, err := svc.Catalog.Book(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dto := api.FromBook(book)
				return ctx.emit(cmd, dto, func(out io.Writer) {
					printFields(out, [][2]string{
						{"ID", dto.ID},
						{"Title", dto.Title},
						{"Author", dto.Author},
						{"Genre", dto.Genre},
						{"Pages", strconv.Itoa(dto.PageCount)},
						{"Waiting", strconv.Itoa(dto.WaitingReaders)},
						{"Reads", strconv.Itoa(dto.TotalReads)},
						{"Added", dto.CreatedAt},
					})
				})
			})
		},
	}
}

func newBookAlmostReadyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "almost-ready",
		Short: "List books closest to forming a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *bookclub.Services) error {
				books, err := svc.Catalog.AlmostReady(cmd.Context())
				if err != nil {
					return err
				}
				resp := api.AlmostReadyResponse{Books: api.FromBooks(books)}
				return ctx.emit(cmd, resp, func(out io.Writer) {
					printBooks(out, resp.Books)
				})
			})
		},
	}
}

func printBooks(out io.Writer, books []api.Book) {
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{
			b.ID,
			b.Title,
			b.Author,
			b.Genre,
			strconv.Itoa(b.WaitingReaders),
			strconv.Itoa(b.TotalReads),
		})
	}
	printTable(out, "No books found",
		[]string{"ID", "Title", "Author", "Genre", "Waiting", "Reads"},
		rows,
		alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight,
	)
}
