package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/validate"
)

// AuthorOptions holds the payload flags of the author commands.
type AuthorOptions struct {
	*RootOptions
	readFlags
	FirstName  string
	MiddleName string
	LastName   string
	Filters    []string
}

// NewAuthorCommand creates the author command group.
func NewAuthorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "author",
		Short: "Create, read, update and delete authors",
	}

	cmd.AddCommand(newAuthorCreateCommand(rootOpts))
	cmd.AddCommand(newAuthorGetCommand(rootOpts))
	cmd.AddCommand(newAuthorListCommand(rootOpts))
	cmd.AddCommand(newAuthorUpdateCommand(rootOpts))
	cmd.AddCommand(newAuthorDeleteCommand(rootOpts))
	cmd.AddCommand(newFiltersCommand(rootOpts, model.AuthorEntity))

	return cmd
}

func (o *AuthorOptions) registerNames(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&o.MiddleName, "middle-name", "", "middle name")
	cmd.Flags().StringVar(&o.LastName, "last-name", "", "last name")
}

func newAuthorCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an author",
		Long: `Create an author and print it.

Example:
  libris author create --first-name Ursula --middle-name Kroeber --last-name "Le Guin"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
				tree, err := opts.tree()
				if err != nil {
					return err
				}
				author, err := s.lib.Authors.Create(ctx, s.user, validate.AuthorCreate{
					FirstName:  opts.FirstName,
					MiddleName: optionalString(cmd, "middle-name", opts.MiddleName),
					LastName:   opts.LastName,
				}, tree)
				if err != nil {
					return err
				}
				return s.out.Success(author)
			})
		},
	}

	opts.registerNames(cmd)
	opts.register(cmd)
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")

	return cmd
}

func newAuthorGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one author",
		Long: `Show one author.

Example:
  libris author get 3 --fields "last_name books { title }"`,
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
				author, err := s.lib.Authors.Get(ctx, id, tree)
				if err != nil {
					return err
				}
				return s.out.Success(author)
			})
		},
	}

	opts.register(cmd)
	return cmd
}

func newAuthorListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List authors",
		Long: `List authors ordered by id.

Text filters match case-insensitive substrings, date filters take an
inclusive range written from..to.

Example:
  libris author list --filter last_name=co --filter created_between=2024-01-01..2024-01-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
				tree, err := opts.tree()
				if err != nil {
					return err
				}
				spec, err := parseFilters(model.AuthorEntity, opts.Filters)
				if err != nil {
					return err
				}
				authors, err := s.lib.Authors.List(ctx, tree, spec)
				if err != nil {
					return err
				}
				if authors == nil {
					authors = []*model.Author{}
				}
				return s.out.Success(authors)
			})
		},
	}

	opts.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter as key=value (repeatable)")
	return cmd
}

func newAuthorUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an author",
		Long: `Update the given fields of an author. Fields not passed are left unchanged.

Example:
  libris author update 3 --last-name Pratchett`,
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
				author, err := s.lib.Authors.Update(ctx, s.user, id, validate.AuthorUpdate{
					FirstName:  optionalString(cmd, "first-name", opts.FirstName),
					MiddleName: optionalString(cmd, "middle-name", opts.MiddleName),
					LastName:   optionalString(cmd, "last-name", opts.LastName),
				}, tree)
				if err != nil {
					return err
				}
				return s.out.Success(author)
			})
		},
	}

	opts.registerNames(cmd)
	opts.register(cmd)
	return cmd
}

func newAuthorDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an author",
		Long: `Delete an author. Reports deleted: false when no such author exists.
An author who is the only author of a book cannot be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				deleted, err := s.lib.Authors.Delete(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(deleteResult{ID: id, Deleted: deleted})
			})
		},
	}
	return cmd
}

// deleteResult is the output of the delete commands.
type deleteResult struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}
