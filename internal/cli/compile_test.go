package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repgraph/internal/ir"
)

const cycleSpec = `package game

class: A: {
	purpose: "outer"
	property: {b: {class: "B"}}
}

class: B: {
	purpose: "inner"
	property: {a: {class: "A"}}
}
`

func TestCompileValidSpecs(t *testing.T) {
	out, _, err := execute(t, "compile", gameSpecsDir(t))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 class(es)")
	assert.Contains(t, out, "Vec2: 2 properties, 0 nested")
	assert.Contains(t, out, "Character: 5 properties, 1 nested")
	assert.Contains(t, out, "Schema hash: ")
}

func TestCompileValidSpecsJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", gameSpecsDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Classes, 2)

	want, err := ir.SchemaHash(resp.Data.Classes)
	require.NoError(t, err)
	assert.Equal(t, want, resp.Data.SchemaHash)

	character := resp.Data.Classes[1]
	pos, ok := character.Property("pos")
	require.True(t, ok)
	assert.Equal(t, ir.TypeClass, pos.Type)
	assert.Equal(t, "Vec2", pos.Class)

	name, ok := character.Property("name")
	require.True(t, ok)
	assert.Equal(t, ir.ConditionInitialOnly, name.Condition)
}

func TestCompileSchemaHashIsStable(t *testing.T) {
	dir := gameSpecsDir(t)

	first, _, err := execute(t, "--format", "json", "compile", dir)
	require.NoError(t, err)
	second, _, err := execute(t, "--format", "json", "compile", dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, _, err := execute(t, "compile", gameSpecsDir(t), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote IR to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Classes, 2)
	assert.NotEmpty(t, result.SchemaHash)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	out, _, err := execute(t, "compile", "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005")
}

func TestCompileMissingPurpose(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"bad.cue": "package game\n\nclass: Bare: {\n\tproperty: {x: int}\n}\n"})

	out, _, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "E101")
	assert.Contains(t, out, "purpose is required")
}

func TestCompileNestingCycle(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", writeSpecs(t, map[string]string{"cycle.cue": cycleSpec}))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNestingCycle, resp.Error.Code)
	assert.Equal(t, "nested classes form a cycle: A -> B -> A", resp.Error.Message)
}

func TestCompileUnknownNestedClass(t *testing.T) {
	spec := `package game

class: Ship: {
	purpose: "vessel"
	property: {hull: {class: "Hull"}}
}
`
	out, _, err := execute(t, "compile", writeSpecs(t, map[string]string{"ship.cue": spec}))
	require.Error(t, err)
	assert.Contains(t, out, "E110")
	assert.Contains(t, out, `unknown class "Hull"`)
}
