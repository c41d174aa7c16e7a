package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/validate"
)

// BookOptions holds the payload flags of the book commands.
type BookOptions struct {
	*RootOptions
	readFlags
	Title         string
	Year          int64
	Language      string
	Category      string
	Authors       []int64
	AddAuthors    []int64
	RemoveAuthors []int64
	Filters       []string
}

// NewBookCommand creates the book command group.
func NewBookCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Create, read, update and delete books",
	}

	cmd.AddCommand(newBookCreateCommand(rootOpts))
	cmd.AddCommand(newBookGetCommand(rootOpts))
	cmd.AddCommand(newBookListCommand(rootOpts))
	cmd.AddCommand(newBookUpdateCommand(rootOpts))
	cmd.AddCommand(newBookDeleteCommand(rootOpts))
	cmd.AddCommand(newFiltersCommand(rootOpts, model.BookEntity))

	return cmd
}

func (o *BookOptions) registerAttributes(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Title, "title", "", "title")
	cmd.Flags().Int64Var(&o.Year, "year", 0, "publication year")
	cmd.Flags().StringVar(&o.Language, "language", "", "language: EN, FR, PL or OTHER (labels accepted)")
	cmd.Flags().StringVar(&o.Category, "category", "", "category")
}

func newBookCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a book",
		Long: `Create a book with at least one author and print it.

Example:
  libris book create --title "The Hobbit" --year 1937 --language English --author 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
				tree, err := opts.tree()
				if err != nil {
					return err
				}
				book, err := s.lib.Books.Create(ctx, s.user, validate.BookCreate{
					Title:           opts.Title,
					PublicationYear: opts.Year,
					Language:        optionalString(cmd, "language", opts.Language),
					Category:        optionalString(cmd, "category", opts.Category),
					AuthorIDs:       opts.Authors,
				}, tree)
				if err != nil {
					return err
				}
				return s.out.Success(book)
			})
		},
	}

	opts.registerAttributes(cmd)
	opts.register(cmd)
	cmd.Flags().Int64SliceVar(&opts.Authors, "author", nil, "author id (repeatable or comma separated)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}

func newBookGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one book",
		Long: `Show one book.

Example:
  libris book get 7 --fields "title authors { first_name last_name }"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				tree, err := opts.tree()
				if err != nil {
					return err
				}
				book, err := s.lib.Books.Get(ctx, id, tree)
				if err != nil {
					return err
				}
				return s.out.Success(book)
			})
		},
	}

	opts.register(cmd)
	return cmd
}

func newBookListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Long: `List books ordered by id.

Filtering on an author attribute selects books with at least one matching
author; loaded authors still include every author of the book.

Example:
  libris book list --filter author_last_name=tolkien --fields "title authors { last_name }"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
				tree, err := opts.tree()
				if err != nil {
					return err
				}
				spec, err := parseFilters(model.BookEntity, opts.Filters)
				if err != nil {
					return err
				}
				books, err := s.lib.Books.List(ctx, tree, spec)
				if err != nil {
					return err
				}
				if books == nil {
					books = []*model.Book{}
				}
				return s.out.Success(books)
			})
		},
	}

	opts.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter as key=value (repeatable)")
	return cmd
}

func newBookUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a book",
		Long: `Update the given fields and authors of a book.

Authors passed with --add-author are linked before those passed with
--remove-author are unlinked. A book always keeps at least one author.

Example:
  libris book update 7 --add-author 2 --remove-author 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				tree, err := opts.tree()
				if err != nil {
					return err
				}
				p := validate.BookUpdate{
					Title:         optionalString(cmd, "title", opts.Title),
					Language:      optionalString(cmd, "language", opts.Language),
					Category:      optionalString(cmd, "category", opts.Category),
					AddAuthors:    opts.AddAuthors,
					RemoveAuthors: opts.RemoveAuthors,
				}
				if cmd.Flags().Changed("year") {
					p.PublicationYear = &opts.Year
				}
				book, err := s.lib.Books.Update(ctx, s.user, id, p, tree)
				if err != nil {
					return err
				}
				return s.out.Success(book)
			})
		},
	}

	opts.registerAttributes(cmd)
	opts.register(cmd)
	cmd.Flags().Int64SliceVar(&opts.AddAuthors, "add-author", nil, "author id to link (repeatable)")
	cmd.Flags().Int64SliceVar(&opts.RemoveAuthors, "remove-author", nil, "author id to unlink (repeatable)")
	return cmd
}

func newBookDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book",
		Long:  `Delete a book and its author links. Reports deleted: false when no such book exists.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				deleted, err := s.lib.Books.Delete(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(deleteResult{ID: id, Deleted: deleted})
			})
		},
	}
	return cmd
}
