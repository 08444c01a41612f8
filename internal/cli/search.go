package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recora/recora/internal/resource"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var includes bool

	cmd := &cobra.Command{
		Use:   "search <Type?params>",
		Short: "Run a search query",
		Long: `Run a search against the repository and print one page of results.

The argument uses query-string form: the resource type, then search
parameters. Repeated values of one parameter OR together, distinct
parameters AND together.

Example:
  recora search "Task?status=requested&_sort=-modified&_count=10"
  recora search "Organization?name=Hosp&_include=Organization:endpoint" --includes`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(rootOpts, args[0], includes)
		},
	}

	cmd.Flags().BoolVar(&includes, "includes", false, "resolve _include/_revinclude directives")

	return cmd
}

func runSearch(rootOpts *RootOptions, request string, includes bool) error {
	resourceType, rawQuery, _ := strings.Cut(request, "?")
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}

	e, err := setup(rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	compiled, err := e.compiler.Compile(resourceType, e.identity, values)
	if err != nil {
		return err
	}

	ctx := context.Background()
	result, err := e.store.Search(ctx, compiled)
	if err != nil {
		return err
	}

	var attached []*resource.Resource
	if includes {
		attached, err = e.store.ResolveIncludes(ctx, e.identity, compiled, result)
		if err != nil {
			return err
		}
	}

	if rootOpts.Format == "json" {
		return printJSON(searchOutput{
			Total:     result.Total,
			Self:      result.Canonical,
			Resources: result.Resources,
			Included:  attached,
		})
	}

	fmt.Printf("total %d  self %s\n", result.Total, result.Canonical)
	for _, res := range result.Resources {
		printResourceLine("match", res)
	}
	for _, res := range attached {
		printResourceLine("include", res)
	}
	return nil
}

type searchOutput struct {
	Total     int                  `json:"total"`
	Self      string               `json:"self"`
	Resources []*resource.Resource `json:"resources"`
	Included  []*resource.Resource `json:"included,omitempty"`
}

func printResourceLine(kind string, res *resource.Resource) {
	fmt.Printf("%-8s %s/%s v%d %s\n",
		kind, res.Type, res.ID, res.VersionID, resource.FormatTimestamp(res.LastUpdated))
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
