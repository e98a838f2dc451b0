package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/viewlink/internal/transfer"
)

// captureOutput runs fn and returns what it wrote to stdout.
func captureOutput(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func resetFlags() {
	flagJSON, flagConfig, flagDB, flagLogLevel = false, "", "", ""
	flagDue, flagStart, flagEnd, flagAssignee, flagDesc, flagParent = "", "", "", "", "", ""
	flagLane, flagProgress, flagUndo = "todo", 0, false
	flagFrom, flagTo, flagNoSync = "", "", false
}

func setupTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("VIEWLINK_DB_PATH", filepath.Join(dir, "viewlink.db"))
	t.Setenv("VIEWLINK_LOG_LEVEL", "error")
}

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags()
	var err error
	out := captureOutput(func() {
		rootCmd.SetArgs(args)
		err = rootCmd.Execute()
		_ = closeApp()
	})
	require.NoError(t, err, "viewlink %s\n%s", strings.Join(args, " "), out)
	return out
}

func runErr(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags()
	var err error
	captureOutput(func() {
		rootCmd.SetArgs(args)
		err = rootCmd.Execute()
		_ = closeApp()
	})
	return err
}

func TestTransferAndSyncFlow(t *testing.T) {
	setupTestEnv(t)
	run(t, "init")

	todoID := strings.TrimSpace(run(t, "todo", "add", "Buy", "milk", "--due", "2024-05-01"))
	require.True(t, strings.HasPrefix(todoID, "td-"), todoID)

	var res transfer.Result
	out := run(t, "--json", "transfer", "--from", "todo", "--to", "wbs,kanban", todoID)
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.True(t, res.Success)
	require.Len(t, res.Transferred, 2)
	wbsID := res.Transferred[0].NewID

	var group GroupJSON
	out = run(t, "--json", "link", "show", "wbs", wbsID)
	require.NoError(t, json.Unmarshal([]byte(out), &group), out)
	assert.Equal(t, "todo:"+todoID, group.UnifiedID)
	assert.Len(t, group.Links, 3)
	assert.True(t, group.SyncEnabled)

	var sync SyncJSON
	out = run(t, "--json", "todo", "done", todoID)
	require.NoError(t, json.Unmarshal([]byte(out), &sync), out)
	assert.Len(t, sync.Synced, 2)

	var tasks []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	out = run(t, "--json", "wbs", "list")
	require.NoError(t, json.Unmarshal([]byte(out), &tasks), out)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Name)
	assert.Equal(t, "completed", tasks[0].Status)
	assert.Equal(t, 100, tasks[0].Progress)
}

func TestLinkToggleStopsSync(t *testing.T) {
	setupTestEnv(t)
	run(t, "init")

	todoID := strings.TrimSpace(run(t, "todo", "add", "Write", "report"))
	var res transfer.Result
	out := run(t, "--json", "transfer", "--from", "todo", "--to", "wbs", todoID)
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	wbsID := res.Transferred[0].NewID

	run(t, "link", "toggle", "wbs", wbsID, "off")

	var sync SyncJSON
	out = run(t, "--json", "todo", "done", todoID)
	require.NoError(t, json.Unmarshal([]byte(out), &sync), out)
	assert.Empty(t, sync.Synced)
	require.Len(t, sync.Skipped, 1)
	assert.Equal(t, "sync_disabled", sync.Skipped[0].Reason)

	out = run(t, "link", "group-sync", "todo:"+todoID, "on")
	assert.Contains(t, out, "2 links")

	out = run(t, "link", "rm-group", "todo:"+todoID)
	assert.Contains(t, out, "Removed 2 links")

	out = run(t, "link", "show", "todo", todoID)
	assert.Contains(t, out, "not linked")
}

func TestTransferWithoutTodoLaneReportsError(t *testing.T) {
	setupTestEnv(t)

	todoID := strings.TrimSpace(run(t, "todo", "add", "Plan"))
	var res transfer.Result
	out := run(t, "--json", "transfer", "--from", "todo", "--to", "wbs,kanban", todoID)
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.True(t, res.Success)
	require.Len(t, res.Transferred, 1)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "lane")
}

func TestStatusJSON(t *testing.T) {
	setupTestEnv(t)
	run(t, "init")
	todoID := strings.TrimSpace(run(t, "todo", "add", "One"))
	run(t, "transfer", "--from", "todo", "--to", "gantt", todoID)

	var status StatusJSON
	out := run(t, "--json", "status")
	require.NoError(t, json.Unmarshal([]byte(out), &status), out)
	assert.Equal(t, 1, status.Groups)
	assert.Equal(t, 2, status.Links)
	assert.Equal(t, ViewStatusJSON{Records: 1, Linked: 1, SyncEnabled: 1}, status.Views["gantt"])
}

func TestCommandErrors(t *testing.T) {
	setupTestEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown view", []string{"sync", "calendar", "x"}},
		{"bad toggle value", []string{"link", "toggle", "todo", "x", "maybe"}},
		{"toggle unlinked", []string{"link", "toggle", "todo", "td-missing", "on"}},
		{"bad unified id", []string{"link", "rm-group", "nope"}},
		{"bad date", []string{"todo", "add", "x", "--due", "tomorrow"}},
		{"gantt needs dates", []string{"gantt", "add", "bar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, runErr(t, tt.args...))
		})
	}
}
