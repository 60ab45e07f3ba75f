package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/repgraph/internal/compiler"
	"github.com/roach88/repgraph/internal/ir"
)

// LoadMode selects whether class compile errors stop a load.
type LoadMode int

const (
	LoadModeFailFast LoadMode = iota
	LoadModeCollectAll
)

// LoadResult is a loaded specs directory.
type LoadResult struct {
	Classes   []ir.ClassSpec
	CUEValue  cue.Value
	FileCount int
}

// LoadError is a spec loading failure with a CLI error code and, when CUE
// reported one, the source position.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func loadErr(code, format string, args ...any) []error {
	return []error{&LoadError{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// LoadSpecs builds the CUE package in dir and compiles every class under its
// "class" field. In LoadModeFailFast the first class that fails to compile
// ends the load.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	files, errs := specFiles(dir)
	if errs != nil {
		return nil, errs
	}

	value, errs := buildSpecs(dir)
	if errs != nil {
		return nil, errs
	}

	result := &LoadResult{CUEValue: value, FileCount: len(files)}
	classes, errs := compileClasses(value, mode)
	result.Classes = classes
	return result, errs
}

// specFiles checks that dir is a directory holding at least one .cue file.
func specFiles(dir string) ([]string, []error) {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return nil, loadErr(ErrCodeNotFound, "specs directory not found: %s", dir)
	case err != nil:
		return nil, loadErr(ErrCodeNotFound, "error accessing specs directory: %v", err)
	case !info.IsDir():
		return nil, loadErr(ErrCodeNotFound, "not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, loadErr(ErrCodeScanError, "error scanning directory: %v", err)
	}
	if len(files) == 0 {
		return nil, loadErr(ErrCodeNoFiles, "no CUE files found in %s", dir)
	}
	return files, nil
}

func buildSpecs(dir string) (cue.Value, []error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, loadErr(ErrCodeLoadFailed, "no CUE instances loaded")
	}
	if err := instances[0].Err; err != nil {
		return cue.Value{}, loadErr(ErrCodeLoadFailed, "loading CUE files: %v", err)
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return cue.Value{}, loadErr(ErrCodeBuildFailed, "building CUE value: %v", err)
	}
	return value, nil
}

func compileClasses(value cue.Value, mode LoadMode) ([]ir.ClassSpec, []error) {
	declared := value.LookupPath(cue.ParsePath("class"))
	if !declared.Exists() {
		return nil, loadErr(ErrCodeGeneric, "no classes found in specs")
	}
	iter, err := declared.Fields()
	if err != nil {
		return nil, loadErr(ErrCodeGeneric, "iterating classes: %v", err)
	}

	var (
		classes []ir.ClassSpec
		errs    []error
	)
	for iter.Next() {
		spec, err := compiler.CompileClass(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "class."+iter.Label()))
			if mode == LoadModeFailFast {
				break
			}
			continue
		}
		classes = append(classes, *spec)
	}
	return classes, errs
}

// FindCUEFiles lists the .cue files under dir, recursively.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".cue") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, where string) *LoadError {
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s: %v", where, err)}
	}
	code := MapFieldToErrorCode(ce.Field)
	if strings.Contains(ce.Message, "float") {
		code = ErrCodeFloat
	}
	return &LoadError{Code: code, Message: where + ": " + ce.Message, Pos: ce.Pos}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeSchemaHash   = "E008" // Log was written with another schema
	ErrCodeNestingCycle = "E009" // Class contains itself

	// Class compile errors share codes with compiler validation
	ErrCodeClassPurpose = compiler.ErrClassPurposeEmpty
	ErrCodeInvalidType  = compiler.ErrInvalidPropertyType
	ErrCodeFloat        = compiler.ErrFloatTypeForbidden
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "purpose":
		return ErrCodeClassPurpose
	case field == "cue":
		return ErrCodeBuildFailed
	case strings.HasPrefix(field, "property."):
		return ErrCodeInvalidType
	default:
		return ErrCodeGeneric
	}
}
