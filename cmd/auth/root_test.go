package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"promote"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestPromoteCmd_RequiresUsername(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"promote"})

	require.Error(t, root.Execute())
}

func TestPromoteCmd_RejectsUnknownRole(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"promote", "alice", "--role", "superuser"})

	err := root.Execute()
	require.ErrorContains(t, err, `unknown role "superuser"`)
}

func TestServeCmd_FailsWithoutSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@127.0.0.1:1/db")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEV_MODE", "false")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve"})

	require.ErrorContains(t, root.Execute(), "JWT_SECRET is required")
}
