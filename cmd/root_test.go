package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{
		"process", "batch", "summary", "report", "compare", "runs", "serve",
		"fetch", "semantic", "classify", "analyze", "timeline",
	} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}

func TestStepCommandsRequireLoanArg(t *testing.T) {
	for _, c := range []string{"fetch", "semantic", "classify", "analyze", "timeline"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		assert.Error(t, cmd.Args(cmd, nil), "command %s should require a loan ID", c)
		assert.NoError(t, cmd.Args(cmd, []string{"1000178625"}))
	}
}

func TestProcessFlags(t *testing.T) {
	for _, name := range []string{"loan", "force", "refilter", "runs", "steps"} {
		require.NotNil(t, processCmd.Flags().Lookup(name), "flag %s missing", name)
	}
}

func TestCompareFlags(t *testing.T) {
	for _, name := range []string{"out", "xlsx", "consistent-only", "store"} {
		require.NotNil(t, compareCmd.Flags().Lookup(name), "flag %s missing", name)
	}
}
