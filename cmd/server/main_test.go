package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/sheetagent/internal/table"
	"github.com/vinodismyname/sheetagent/internal/workbooks"
)

type execOutput []struct {
	Tool   string         `json:"tool"`
	Result map[string]any `json:"result"`
}

func runCLI(t *testing.T, stdin string, args ...string) (execOutput, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()

	var out execOutput
	if stdout.Len() > 0 && strings.HasPrefix(strings.TrimSpace(stdout.String()), "[") {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	}
	return out, stdout.String(), err
}

func TestVersionCommand(t *testing.T) {
	_, stdout, err := runCLI(t, "", "version")
	require.NoError(t, err)
	require.NotEmpty(t, strings.TrimSpace(stdout))
}

func TestExecScript(t *testing.T) {
	dir := t.TempDir()
	src, err := table.New([]string{"city", "visits"}, [][]any{{"Oslo", int64(3)}, {"Lima", int64(5)}})
	require.NoError(t, err)
	require.NoError(t, workbooks.WriteFile(src, "Data", filepath.Join(dir, "cities.xlsx")))

	script := `[
	  {"tool": "load_table", "args": {"file_path": "` + filepath.ToSlash(filepath.Join(dir, "cities.xlsx")) + `"}},
	  {"tool": "filter_data", "args": {"condition": "visits > 3"}},
	  {"tool": "save_table", "args": {"output_path": "` + filepath.ToSlash(filepath.Join(dir, "out.xlsx")) + `"}}
	]`
	out, _, err := runCLI(t, script, "exec", "-", "--allowed-dir", dir, "--log-level", "error")
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, s := range out {
		require.Equal(t, true, s.Result["success"], s.Tool)
	}
	require.Equal(t, "cities", out[0].Result["table_name"])
	require.Equal(t, float64(1), out[1].Result["rows"])

	_, err = os.Stat(filepath.Join(dir, "out.xlsx"))
	require.NoError(t, err)
}

func TestExecStopsOnFailure(t *testing.T) {
	script := `[
	  {"tool": "list_tables"},
	  {"tool": "calculate", "args": {"operation": "sum", "column": "x"}},
	  {"tool": "list_tables"}
	]`
	out, _, err := runCLI(t, script, "exec", "-", "--log-level", "error")
	require.ErrorIs(t, err, errStepFailed)
	require.Len(t, out, 2)
	require.Equal(t, false, out[1].Result["success"])
	require.Equal(t, "NO_ACTIVE_TABLE", out[1].Result["code"])
}

func TestExecKeepGoing(t *testing.T) {
	script := `[
	  {"tool": "no_such_tool"},
	  {"tool": "list_tables"}
	]`
	out, _, err := runCLI(t, script, "exec", "-", "--keep-going", "--log-level", "error")
	require.ErrorIs(t, err, errStepFailed)
	require.Len(t, out, 2)
	require.Equal(t, "VALIDATION", out[0].Result["code"])
	require.Equal(t, true, out[1].Result["success"])
}

func TestExecReadOnly(t *testing.T) {
	dir := t.TempDir()
	script := `[{"tool": "save_table", "args": {"output_path": "` + filepath.ToSlash(filepath.Join(dir, "out.xlsx")) + `"}}]`
	out, _, err := runCLI(t, script, "exec", "-", "--read-only", "--allowed-dir", dir, "--log-level", "error")
	require.Error(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "PERMISSION_DENIED", out[0].Result["code"])
}

func TestExecRejectsBadScript(t *testing.T) {
	_, _, err := runCLI(t, "{not json", "exec", "-", "--log-level", "error")
	require.ErrorContains(t, err, "parse script")
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := runCLI(t, "[]", "exec", "-", "--log-level", "loud")
	require.ErrorContains(t, err, "invalid log level")
}

func TestExecHonorsCellLimit(t *testing.T) {
	dir := t.TempDir()
	src, err := table.New([]string{"city", "visits"}, [][]any{{"Oslo", int64(3)}, {"Lima", int64(5)}})
	require.NoError(t, err)
	require.NoError(t, workbooks.WriteFile(src, "Data", filepath.Join(dir, "cities.xlsx")))
	t.Setenv("SHEETAGENT_MAX_CELLS_PER_OP", "3")

	script := `[
	  {"tool": "load_table", "args": {"file_path": "` + filepath.ToSlash(filepath.Join(dir, "cities.xlsx")) + `"}},
	  {"tool": "read_range", "args": {"range": "A1:B1"}},
	  {"tool": "read_range", "args": {"range": "A1:B2"}}
	]`
	out, _, err := runCLI(t, script, "exec", "-", "--allowed-dir", dir, "--log-level", "error")
	require.ErrorIs(t, err, errStepFailed)
	require.Len(t, out, 3)
	require.Equal(t, true, out[1].Result["success"])
	require.Equal(t, "LIMIT_EXCEEDED", out[2].Result["code"])
}
