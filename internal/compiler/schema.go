package compiler

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/repgraph/internal/ir"
)

// CompileSchema compiles every class under the top-level "class" field of v.
// Classes are returned in declaration order. Compile errors are collected;
// a class that fails to compile is left out of the result.
func CompileSchema(v cue.Value) ([]ir.ClassSpec, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	classesVal := v.LookupPath(cue.ParsePath("class"))
	if !classesVal.Exists() {
		return nil, []error{&CompileError{Field: "class", Message: "no classes declared"}}
	}

	iter, err := classesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		classes []ir.ClassSpec
		errs    []error
	)
	for iter.Next() {
		spec, err := CompileClass(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("class %s: %w", iter.Label(), err))
			continue
		}
		classes = append(classes, *spec)
	}
	return classes, errs
}

// CompileSource compiles a schema held in memory. name is used in error
// positions.
func CompileSource(name, src string) ([]ir.ClassSpec, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(name))
	classes, errs := CompileSchema(v)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return classes, nil
}

// LoadFiles compiles each CUE file on its own and concatenates the classes
// in file order. Files must not depend on each other.
func LoadFiles(paths ...string) ([]ir.ClassSpec, error) {
	var all []ir.ClassSpec
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec: %w", err)
		}
		classes, err := CompileSource(path, string(data))
		if err != nil {
			return nil, err
		}
		all = append(all, classes...)
	}
	return all, nil
}

// Check runs validation and nesting analysis over a whole schema and
// returns every problem as an error.
func Check(classes []ir.ClassSpec) []error {
	var errs []error
	for _, e := range Validate(classes) {
		errs = append(errs, e)
	}
	for _, e := range AnalyzeNesting(classes) {
		errs = append(errs, e)
	}
	return errs
}
