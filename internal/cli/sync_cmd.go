package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/syncer"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var req syncer.Request

	cmd := &cobra.Command{
		Use:   "sync <kind|integration>",
		Short: "Ask the backend to pull fresh data from GitHub",
		Long: `Trigger a backend sync for one entity kind.

Kinds: organizations, repositories, commits, issues, pull-requests, users.
"integration" refreshes organizations and then repositories.

Examples:
  ghsync sync organizations
  ghsync sync repositories --org 1234
  ghsync sync commits --repo 42 --since 2024-01-01
  ghsync sync issues --repo 42`,
		Args: cobra.ExactArgs(1),
		ValidArgs: []string{
			"organizations", "repositories", "commits", "issues", "pull-requests", "users", "integration",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			s := syncer.New(rt.client, rt.logger)
			s.OnNotify(func(n syncer.Notification) {
				if n.Success && rt.format != formatJSON {
					fmt.Fprintln(cmd.OutOrStdout(), n.Message)
				}
			})

			if strings.EqualFold(args[0], "integration") {
				if err := s.Resync(cmd.Context()); err != nil {
					return fmt.Errorf("integration sync failed: %w", err)
				}
				if rt.format == formatJSON {
					return renderer{w: cmd.OutOrStdout()}.json(map[string]string{"key": syncer.ResyncKey, "state": s.State(syncer.ResyncKey).String()})
				}
				return nil
			}

			kind, ok := domain.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind %q", args[0])
			}
			req.Kind = kind
			res, err := s.Sync(cmd.Context(), req)
			if err != nil {
				return err
			}
			if rt.format == formatJSON {
				return renderer{w: cmd.OutOrStdout()}.json(map[string]any{
					"key":     req.Key(),
					"message": res.Message,
					"data":    res.Data,
				})
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.RepositoryID, "repo", "", "repository id (required for commits, optional for issues)")
	f.StringVar(&req.OrganizationID, "org", "", "organization id (repositories only)")
	f.StringVar(&req.Since, "since", "", "earliest commit date (commits only)")
	f.StringVar(&req.Until, "until", "", "latest commit date (commits only)")
	return cmd
}

func newSyncStatusCmd() *cobra.Command {
	var onlyStale bool

	cmd := &cobra.Command{
		Use:   "sync-status",
		Short: "Show which repositories need an issue sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			all, err := rt.client.IssuesSyncStatus(cmd.Context())
			if err != nil {
				return err
			}
			statuses := all[:0:0]
			for _, st := range all {
				if !onlyStale || st.NeedsSync {
					statuses = append(statuses, st)
				}
			}

			out := renderer{w: cmd.OutOrStdout(), format: rt.format}
			if rt.format == formatJSON {
				return out.json(statuses)
			}
			rows := make([][]string, len(statuses))
			for i, st := range statuses {
				name := st.FullName
				if name == "" {
					name = st.RepositoryName
				}
				rows[i] = []string{name, st.RepositoryID, strconv.Itoa(st.IssueCount), yesNo(st.NeedsSync)}
			}
			out.table([]string{"Repository", "ID", "Issues", "Needs Sync"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&onlyStale, "needs-sync", false, "only list repositories that need a sync")
	return cmd
}
