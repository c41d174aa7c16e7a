package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/libris/internal/filter"
	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/selection"
)

// readFlags are the flags shared by commands returning rows.
type readFlags struct {
	Fields string
}

func (r *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.Fields, "fields", "",
		`selection to load, e.g. "first_name books { title }" (default: every scalar field)`)
}

// tree parses --fields.
func (r *readFlags) tree() (selection.Tree, error) {
	tree, err := selection.Parse(r.Fields)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --fields", err)
	}
	return tree, nil
}

// parseID parses a positional row id.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q: must be a positive integer", arg))
	}
	return id, nil
}

// parseFilters parses repeated --filter key=value arguments against e.
func parseFilters(e *model.Entity, args []string) (filter.Spec, error) {
	spec, err := filter.ParseArgs(e, model.Catalog, args)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --filter", err)
	}
	return spec, nil
}

// optionalString returns the flag value when the user set it.
func optionalString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

// newFiltersCommand lists the filter keys of an entity.
func newFiltersCommand(rootOpts *RootOptions, e *model.Entity) *cobra.Command {
	var basic bool
	cmd := &cobra.Command{
		Use:   "filters",
		Short: fmt.Sprintf("List the filter keys of %s", e.Name),
		Long: fmt.Sprintf(`List the keys accepted by "--filter key=value" for %s.

--basic lists only the keys offered to non-admin callers.`, e.Name),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := e.FilterKeys()
			if basic {
				keys = model.BasicFilterKeys[e.Name]
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.Success(keys)
			}
			return out.Success(strings.Join(keys, "\n"))
		},
	}
	cmd.Flags().BoolVar(&basic, "basic", false, "only the keys offered to non-admin callers")
	return cmd
}
