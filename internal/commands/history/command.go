// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/EbramTawfik/mcp-evals/internal/commands/shared"
	"github.com/EbramTawfik/mcp-evals/internal/config"
	"github.com/EbramTawfik/mcp-evals/internal/history"
)

// NewCommand creates the history command group.
func NewCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past evaluation runs",
		Long: `Commands for listing and viewing runs stored in the history database.

Every 'mcp-evals run' records its summary unless --no-history was set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "History database path (default: ~/.mcp-evals/history.db)")

	list := newListCommand(&dbPath)
	cmd.AddCommand(list)
	cmd.AddCommand(newShowCommand(&dbPath))

	// Bare 'mcp-evals history' lists.
	cmd.RunE = list.RunE

	return cmd
}

func newListCommand(dbPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		Example: `  # Most recent runs
  mcp-evals history list

  # Runs as JSON for scripting
  mcp-evals history list --json | jq '.runs[].run_id'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, *dbPath, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")

	return cmd
}

func newShowCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's results",
		Long: `Display the stored results for a run. The run id may be abbreviated
to any unique prefix, the way 'history list' prints them.`,
		Example: `  # Show a run by id prefix
  mcp-evals history show 0f3a9c1b

  # Full result document
  mcp-evals history show 0f3a9c1b --json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(cmd, *dbPath, args[0])
		},
	}

	return cmd
}

func openStore(path string) (*history.Store, error) {
	var err error
	if path == "" {
		path, err = config.HistoryDBPath()
		if err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

func listRuns(cmd *cobra.Command, dbPath string, limit int) error {
	store, err := openStore(dbPath)
	if err != nil {
		return shared.NewEvalFailedError("opening history database", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return shared.NewEvalFailedError("listing runs", err)
	}

	if shared.GetJSON() {
		type runEntry struct {
			RunID     string    `json:"run_id"`
			Suite     string    `json:"suite"`
			StartedAt time.Time `json:"started_at"`
			Passed    int       `json:"passed"`
			Failed    int       `json:"failed"`
			MeanScore float64   `json:"mean_score"`
		}
		type response struct {
			shared.JSONResponse
			Runs []runEntry `json:"runs"`
		}

		resp := response{JSONResponse: shared.NewJSONResponse("history list", true)}
		for _, run := range runs {
			resp.Runs = append(resp.Runs, runEntry{
				RunID:     run.RunID,
				Suite:     run.Suite,
				StartedAt: run.StartedAt,
				Passed:    run.Passed,
				Failed:    run.Failed,
				MeanScore: run.MeanScore,
			})
		}
		return shared.EmitJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No stored runs. Evaluate a suite with 'mcp-evals run' first.")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(out, "%s  %s  %s  %s  %s\n",
			shared.Muted.Render(shortID(run.RunID)),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			shared.RenderStatus(run.Failed == 0, outcomeLabel(run.Failed == 0)),
			fmt.Sprintf("%d/%d passed, mean %.2f", run.Passed, run.Passed+run.Failed, run.MeanScore),
			run.Suite)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func showRun(cmd *cobra.Command, dbPath, id string) error {
	store, err := openStore(dbPath)
	if err != nil {
		return shared.NewEvalFailedError("opening history database", err)
	}
	defer store.Close()

	summary, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return shared.NewEvalFailedError(fmt.Sprintf("run %s", id), err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), summary)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", shared.Header.Render("Run:"), summary.RunID)
	fmt.Fprintf(out, "%s %s\n", shared.Header.Render("Suite:"), summary.Suite)
	fmt.Fprintf(out, "%s %s\n\n", shared.Header.Render("Started:"), summary.StartedAt.Local().Format(time.RFC1123))

	for _, res := range summary.Results {
		fmt.Fprintf(out, "  %s  %s  %.1f/5  %s\n",
			shared.RenderPassFail(res.Success),
			res.Name,
			res.Score.Average(),
			shared.Muted.Render(fmt.Sprintf("%dms", res.DurationMs)))
		if res.Error != "" {
			fmt.Fprintf(out, "      %s\n", shared.StatusError.Render(res.Error))
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, mean score %.2f/5\n",
		summary.Passed, summary.Failed, summary.MeanScore)
	return nil
}

func outcomeLabel(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
