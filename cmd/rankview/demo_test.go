package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankview/engine"
	"rankview/leaderboard"
	"rankview/viewkit"
)

func TestRunDemo(t *testing.T) {
	svc := viewkit.New(
		viewkit.WithSource(leaderboard.NewMockSource(0)),
		viewkit.WithDispatchMode(engine.DispatchSync),
	)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var buf bytes.Buffer
	require.NoError(t, runDemo(ctx, &buf, svc, "alice"))

	out := buf.String()
	assert.Contains(t, out, "== initial state\nweekly leaderboard")
	assert.Contains(t, out, "== switch to monthly\nmonthly leaderboard")
	assert.Contains(t, out, "profile: Alice Martin (alice)")
	assert.Contains(t, out, "command failed:")
	assert.Contains(t, out, "full_name cannot be empty")
	assert.Contains(t, out, "profile: Alice Martin (edited) (alice), \"Edited from the demo.\"")

	// logout leaves the snapshot alone until the reload
	last := out[strings.LastIndex(out, "== reload profile"):]
	assert.Contains(t, last, "profile: not signed in")
}

func TestDemoCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"demo", "--latency", "1ms", "--user", "bob"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, buf.String(), "== login as bob")
	assert.Contains(t, buf.String(), "profile: Bob Chen (bob)")
}
