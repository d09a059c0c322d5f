package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinodismyname/sheetagent/config"
	"github.com/vinodismyname/sheetagent/internal/ops"
	"github.com/vinodismyname/sheetagent/internal/runtime"
)

// errStepFailed marks a script that stopped on a failing step. Its output
// has already been written.
var errStepFailed = errors.New("script step failed")

// step is one tool call of an exec script.
type step struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args,omitempty"`
}

type stepResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

func newExecCmd(f *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "exec <script.json|->",
		Short: "Run a JSON script of tool calls against a fresh session",
		Long: `Run a JSON array of tool calls without an MCP client, for example:

  [{"tool": "load_table", "args": {"file_path": "/data/sales.xlsx"}},
   {"tool": "calculate", "args": {"operation": "sum", "column": "amount"}},
   {"tool": "save_table", "args": {"output_path": "/data/out.xlsx"}}]

Results are printed to stdout as a JSON array. The script stops at the first
failing step unless --keep-going is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(f, stderr)
			if err != nil {
				return err
			}
			steps, err := readScript(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			cat, err := newCatalog(cfg, logger)
			if err != nil {
				return err
			}
			results, runErr := runScript(cmd.Context(), cfg, cat, steps, keepGoing)

			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
			if runErr != nil {
				logger.Error().Err(runErr).Msg("exec stopped")
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue after a failing step")
	return cmd
}

func readScript(path string, stdin io.Reader) ([]step, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, config.DefaultMaxPayloadBytes+1))
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	if len(data) > config.DefaultMaxPayloadBytes {
		return nil, fmt.Errorf("script exceeds %d bytes", config.DefaultMaxPayloadBytes)
	}
	var steps []step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return steps, nil
}

// runScript executes steps in order under the configured runtime limits.
// Failures are reported in the results as catalog Failure values.
func runScript(ctx context.Context, cfg *config.Config, cat *ops.Catalog, steps []step, keepGoing bool) ([]stepResult, error) {
	ctrl := runtime.NewController(runtime.LimitsFromConfig(cfg))
	results := make([]stepResult, 0, len(steps))
	failed := 0
	for _, s := range steps {
		var out any
		req, err := ops.ParseRequest(s.Tool, s.Args)
		if err == nil {
			err = ctrl.Do(ctx, func(callCtx context.Context) error {
				var execErr error
				out, execErr = cat.Execute(callCtx, req)
				return execErr
			})
		}
		if err != nil {
			failed++
			results = append(results, stepResult{Tool: s.Tool, Result: ops.FailureOf(err)})
			if !keepGoing {
				break
			}
			continue
		}
		results = append(results, stepResult{Tool: s.Tool, Result: out})
	}
	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d", errStepFailed, failed, len(steps))
	}
	return results, nil
}
