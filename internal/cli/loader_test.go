package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSpecs(t *testing.T) {
	result, errs := LoadSpecs(gameSpecsDir(t), LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Classes, 2)
	assert.Equal(t, "Vec2", result.Classes[0].Name)
	assert.Equal(t, "Character", result.Classes[1].Name)
	assert.True(t, result.CUEValue.Exists())
}

func TestLoadSpecsMissingDirectory(t *testing.T) {
	result, errs := LoadSpecs("/nonexistent/specs", LoadModeCollectAll)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadSpecsNoCUEFiles(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"README.md": "nothing here"})

	result, errs := LoadSpecs(dir, LoadModeCollectAll)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}

func TestLoadSpecsNoClasses(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"empty.cue": "package game\n\nother: 1\n"})

	result, errs := LoadSpecs(dir, LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no classes found")
}

func TestLoadSpecsFailFastVersusCollectAll(t *testing.T) {
	spec := `package game

class: A: {
	property: {x: int}
}

class: B: {
	property: {y: int}
}
`
	dir := writeSpecs(t, map[string]string{"bad.cue": spec})

	_, errs := LoadSpecs(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)

	_, errs = LoadSpecs(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	for _, err := range errs {
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, ErrCodeClassPurpose, loadErr.Code)
	}
}

func TestLoadSpecsFloatProperty(t *testing.T) {
	spec := `package game

class: Body: {
	purpose: "physics body"
	property: {mass: float}
}
`
	_, errs := LoadSpecs(writeSpecs(t, map[string]string{"body.cue": spec}), LoadModeCollectAll)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeFloat, loadErr.Code)
	assert.Contains(t, loadErr.Message, "class.Body")
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeClassPurpose, MapFieldToErrorCode("purpose"))
	assert.Equal(t, ErrCodeBuildFailed, MapFieldToErrorCode("cue"))
	assert.Equal(t, ErrCodeInvalidType, MapFieldToErrorCode("property.pos"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("other"))
}

func TestLoadErrorFormat(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"}
	assert.Equal(t, "E003: no CUE files found in x", err.Error())
}
