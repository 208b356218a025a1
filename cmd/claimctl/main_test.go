package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate"},
		{"operator", "create"},
		{"operator", "disable"},
		{"operator", "enable"},
		{"profile", "create"},
		{"claim-link", "issue"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
		assert.NotNil(t, cmd.RunE, path)
	}
}

func TestIssueRequiresProfileID(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"claim-link", "issue"})
	require.NoError(t, err)
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"123"}))
}

func TestReadLine(t *testing.T) {
	pw, err := readLine(strings.NewReader("correct horse\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "correct horse", pw)

	pw, err = readLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)

	_, err = readLine(strings.NewReader("\n"))
	assert.Error(t, err)
}
