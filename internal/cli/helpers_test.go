package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const gameSpec = `package game

class: Vec2: {
	purpose: "2D position"
	property: {
		x: int
		y: int
	}
}

class: Character: {
	purpose: "player avatar"
	property: {
		health: int
		name: {type: string, condition: "initial_only"}
		pos: {class: "Vec2"}
		tags: [...string]
		target: {ref: "Item"}
	}
}
`

// writeSpecs writes files into a fresh directory and returns its path.
func writeSpecs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func gameSpecsDir(t *testing.T) string {
	t.Helper()
	return writeSpecs(t, map[string]string{"game.cue": gameSpec})
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
