package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/h0rv/ghsync/internal/prefs"
	"github.com/spf13/cobra"
)

func newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect and reset stored preferences",
	}
	cmd.AddCommand(newPrefsListCmd(), newPrefsGetCmd(), newPrefsRmCmd(), newPrefsClearCmd(), newPrefsSetColumnsCmd())
	return cmd
}

func newPrefsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored preference keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			keys, err := rt.prefs.Keys()
			if err != nil {
				return err
			}
			out := renderer{w: cmd.OutOrStdout(), format: rt.format}
			if rt.format == formatJSON {
				if keys == nil {
					keys = []string{}
				}
				return out.json(keys)
			}
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				raw, _, err := rt.prefs.GetRaw(k)
				if err != nil {
					return err
				}
				rows = append(rows, []string{k, strconv.Itoa(len(raw))})
			}
			out.table([]string{"Key", "Bytes"}, rows)
			return nil
		},
	}
}

func newPrefsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one stored preference as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			raw, ok, err := rt.prefs.GetRaw(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no preference named %q", args[0])
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, raw, "", "  "); err != nil {
				buf.Reset()
				buf.Write(raw)
			}
			fmt.Fprintln(cmd.OutOrStdout(), buf.String())
			return nil
		},
	}
}

func newPrefsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove one stored preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.prefs.Remove(args[0])
		},
	}
}

func newPrefsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored preference, including the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.prefs.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Preferences cleared.")
			return nil
		},
	}
}

func newPrefsSetColumnsCmd() *cobra.Command {
	var hide []string

	cmd := &cobra.Command{
		Use:   "set-columns <collection> [field[=width]...]",
		Short: "Save the column order, widths and hidden columns of a collection",
		Long: `Save the column layout used by the grid and by "ghsync rows".

Listed fields come first in the given order; the rest follow as inferred.
With no fields and no --hide the saved layout is removed.

Examples:
  ghsync prefs set-columns commits sha message=60 author.name
  ghsync prefs set-columns issues --hide body,_id
  ghsync prefs set-columns issues`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := parseColumnPrefs(args[1:], hide)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.prefs.SetGridColumns(args[0], cols); err != nil {
				return err
			}
			if len(cols) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Column layout of %s reset.\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Column layout of %s saved (%d fields).\n", args[0], len(cols))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&hide, "hide", nil, "comma-separated fields to hide")
	return cmd
}

func parseColumnPrefs(fields, hide []string) ([]prefs.ColumnPref, error) {
	cols := make([]prefs.ColumnPref, 0, len(fields)+len(hide))
	for _, f := range fields {
		name, width, hasWidth := strings.Cut(f, "=")
		if name == "" {
			return nil, fmt.Errorf("invalid column %q", f)
		}
		c := prefs.ColumnPref{Field: name}
		if hasWidth {
			w, err := strconv.Atoi(width)
			if err != nil || w <= 0 {
				return nil, fmt.Errorf("invalid width in %q (want field=<positive int>)", f)
			}
			c.Width = w
		}
		cols = append(cols, c)
	}
	for _, f := range hide {
		if f = strings.TrimSpace(f); f != "" {
			cols = append(cols, prefs.ColumnPref{Field: f, Hidden: true})
		}
	}
	return cols, nil
}
