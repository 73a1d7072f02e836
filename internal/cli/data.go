package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/h0rv/ghsync/internal/api"
	"github.com/h0rv/ghsync/internal/dashboard"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/store"
	"github.com/h0rv/ghsync/internal/viewer"
	"github.com/spf13/cobra"
)

func newCollectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "collections",
		Aliases: []string{"ls"},
		Short:   "List the collections the backend exposes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			cat := rt.catalog()
			cols, err := cat.List(cmd.Context())
			if err != nil {
				return err
			}
			out := renderer{w: cmd.OutOrStdout(), format: rt.format}
			if rt.format == formatJSON {
				return out.json(cols)
			}
			rows := make([][]string, len(cols))
			for i, c := range cols {
				rows[i] = []string{c.Name, c.Label(), strconv.Itoa(c.Count), strconv.Itoa(len(c.Fields)), c.LastUpdated}
			}
			out.table([]string{"Name", "Display Name", "Count", "Fields", "Last Updated"}, rows)
			if cat.Legacy() {
				fmt.Fprintln(cmd.ErrOrStderr(), "(legacy collection list: counts and fields unavailable)")
			}
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <collection>",
		Short: "Show the fields of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			col, err := rt.catalog().Schema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := renderer{w: cmd.OutOrStdout(), format: rt.format}
			if rt.format == formatJSON {
				return out.json(col)
			}
			rows := make([][]string, len(col.Fields))
			for i, f := range col.Fields {
				rows[i] = []string{
					f.Name, f.Type, f.DisplayName,
					yesNo(f.Required), yesNo(f.Unique), yesNo(f.Indexed),
					strings.Join(f.Options, ", "), f.Description,
				}
			}
			out.table([]string{"Name", "Type", "Display Name", "Required", "Unique", "Indexed", "Options", "Description"}, rows)
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

type rowsOptions struct {
	page      int
	limit     int
	search    string
	sort      string
	order     string
	filters   map[string]string
	field     string
	essential bool
	columns   []string
}

func newRowsCmd() *cobra.Command {
	var opts rowsOptions

	cmd := &cobra.Command{
		Use:   "rows <collection>",
		Short: "Print one page of a collection",
		Long: `Print one page of a collection or entity kind.

Examples:
  ghsync rows repositories --search api
  ghsync rows widgets --sort created_at --order desc --filter status=open
  ghsync rows commits --field author.name=alice --essential --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runRows(cmd, rt, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.page, "page", 1, "page number")
	f.IntVar(&opts.limit, "limit", 0, "rows per page (default: page_size)")
	f.StringVarP(&opts.search, "search", "s", "", "free-text search term")
	f.StringVar(&opts.sort, "sort", "", "field to sort by")
	f.StringVar(&opts.order, "order", "asc", "sort order (asc|desc)")
	f.StringToStringVar(&opts.filters, "filter", nil, "filter as key=value (repeatable)")
	f.StringVar(&opts.field, "field", "", "keep rows whose field contains a term, as path=term")
	f.BoolVar(&opts.essential, "essential", false, "show only the essential columns")
	f.StringSliceVar(&opts.columns, "columns", nil, "comma-separated field paths to show")
	return cmd
}

func runRows(cmd *cobra.Command, rt *runtime, collection string, opts rowsOptions) error {
	order := domain.SortOrder(strings.ToLower(opts.order))
	if order != domain.SortAsc && order != domain.SortDesc {
		return fmt.Errorf("invalid --order %q (want asc or desc)", opts.order)
	}

	var meta []domain.FieldInfo
	if _, isKind := domain.ParseKind(collection); !isKind {
		if col, err := rt.catalog().Schema(cmd.Context(), collection); err == nil {
			meta = col.Fields
		} else {
			rt.logger.Debug("no schema for collection", "collection", collection, "error", err)
		}
	}

	fmtr := rt.formatter()
	st := store.New(fmtr, rt.cfg.PageSize)
	st.SetCollection(collection, meta)
	st.SetLimit(opts.limit)
	st.SetSearch(opts.search)
	if opts.sort != "" {
		st.SetSort(opts.sort, order)
	}
	for k, v := range opts.filters {
		st.SetFilter(k, v)
	}
	st.SetPage(opts.page)
	if opts.field != "" {
		path, term, ok := strings.Cut(opts.field, "=")
		if !ok || path == "" {
			return fmt.Errorf("invalid --field %q (want path=term)", opts.field)
		}
		st.SetFieldSearch(path, term)
	}
	st.SetEssential(opts.essential)
	if rt.prefs != nil {
		if saved, err := rt.prefs.GridColumns(collection); err == nil {
			st.SetColumnPrefs(saved)
		} else {
			rt.logger.Warn("reading column layout failed", "collection", collection, "error", err)
		}
	}

	registry := rt.registry()
	v := viewer.New(registry, rt.cfg.PageSize)
	err := fetchInto(cmd.Context(), st, v)
	if errors.Is(err, api.ErrNotFound) {
		if _, isKind := domain.ParseKind(collection); !isKind {
			rt.logger.Info("generic data api missing, retrying legacy route", "collection", collection)
			registry.SetLegacy(true)
			err = fetchInto(cmd.Context(), st, v)
		}
	}
	if err != nil {
		return err
	}

	cols := st.Columns()
	if len(opts.columns) > 0 {
		cols = make([]viewer.Column, len(opts.columns))
		for i, field := range opts.columns {
			cols[i] = viewer.Column{Field: field, Header: viewer.Header(field), Width: viewer.Width(field)}
		}
	}

	out := renderer{w: cmd.OutOrStdout(), format: rt.format}
	if err := out.records(cols, st.Rows(), fmtr); err != nil {
		return err
	}
	printFooter(cmd.ErrOrStderr(), st)
	return nil
}

// fetchInto runs one fetch through the store's generation guard.
func fetchInto(ctx context.Context, st *store.Store, v *viewer.Viewer) error {
	q, gen, err := st.Begin()
	if err != nil {
		return err
	}
	res, err := v.Load(ctx, q, st.Meta())
	if err != nil {
		_ = st.Fail(gen, err)
		return err
	}
	return st.Apply(gen, res)
}

func printFooter(w io.Writer, st *store.Store) {
	p := st.Pagination()
	shown := len(st.Rows())
	line := fmt.Sprintf("page %d/%d, %d rows", p.Page, max(p.TotalPages, 1), shown)
	if p.Total > 0 {
		line += fmt.Sprintf(" of %d", p.Total)
	}
	if st.LocalSearch() && st.Query().Search != "" {
		line += " (search applied to this page only)"
	}
	if sorted, filtered := st.PageLocal(); sorted || filtered {
		line += " (" + pageOnly(sorted, filtered) + " within this page only)"
	}
	fmt.Fprintln(w, line)
}

func pageOnly(sorted, filtered bool) string {
	switch {
	case sorted && filtered:
		return "sorted and filtered"
	case sorted:
		return "sorted"
	}
	return "filtered"
}

func newExportCmd() *cobra.Command {
	var (
		format  string
		outPath string
		search  string
		filters map[string]string
	)

	cmd := &cobra.Command{
		Use:   "export <collection>",
		Short: "Download a collection as csv, json or excel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ef, err := api.ParseExportFormat(format)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			w := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outPath, err)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = fmt.Errorf("failed to write %s: %w", outPath, cerr)
					}
				}()
				w = f
			}

			opts := api.SearchOptions{Search: search, Filters: filters}
			ct, n, err := rt.client.Export(cmd.Context(), args[0], ef, opts, w)
			if err != nil {
				return err
			}
			rt.logger.Info("export finished", "collection", args[0], "content_type", ct, "bytes", n)
			if outPath != "" && outPath != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", n, outPath)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", string(api.ExportCSV), "export format (csv|json|excel)")
	f.StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	f.StringVarP(&search, "search", "s", "", "free-text search term")
	f.StringToStringVar(&filters, "filter", nil, "filter as key=value (repeatable)")
	return cmd
}

type kindStats struct {
	Kind  domain.EntityKind `json:"kind"`
	Total int               `json:"total"`
	Error string            `json:"error,omitempty"`
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [collection]",
		Short: "Show collection statistics, or record counts for every entity kind",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			out := renderer{w: cmd.OutOrStdout(), format: rt.format}

			if len(args) == 1 {
				rec, err := rt.client.CollectionStats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if rt.format == formatJSON {
					return out.json(rec)
				}
				out.keyValues(recordPairs(rec, rt.formatter()))
				return nil
			}

			loader := dashboard.NewLoader(rt.registry(), rt.client, rt.logger)
			loader.Recent = 1
			stats, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}

			kinds := make([]kindStats, len(stats.Panels))
			rows := make([][]string, len(stats.Panels))
			for i, p := range stats.Panels {
				ks := kindStats{Kind: p.Kind, Total: p.Total}
				if p.Err != nil {
					ks.Error = p.Err.Error()
				}
				kinds[i] = ks
				rows[i] = []string{p.Kind.Label(), strconv.Itoa(p.Total), ks.Error}
			}
			if rt.format == formatJSON {
				return out.json(struct {
					Kinds     []kindStats `json:"kinds"`
					NeedsSync int         `json:"needs_sync"`
				}{kinds, stats.NeedsSync()})
			}
			out.table([]string{"Kind", "Total", "Error"}, rows)
			if stats.SyncStatusErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "issue sync status unavailable: %v\n", stats.SyncStatusErr)
			} else if n := stats.NeedsSync(); n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d repositories need an issue sync.\n", n)
			}
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search across every collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if limit <= 0 {
				limit = rt.cfg.PageSize
			}
			raw, err := rt.client.GlobalSearch(cmd.Context(), args[0], page, limit)
			if err != nil {
				return err
			}
			q := domain.Query{Page: page, Limit: limit, Search: args[0]}
			p, err := viewer.Normalize(raw, "results", q)
			if err != nil {
				return err
			}
			out := renderer{w: cmd.OutOrStdout(), format: rt.format}
			if err := out.records(viewer.InferColumns(p, nil), p.Rows, rt.formatter()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d results\n", max(p.Total, len(p.Rows)))
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "results per page (default: page_size)")
	return cmd
}
