package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RenderLog formats a packet log one packet per line:
//
//	<follower> (<from>,<to>] <canonical payload>
//
// Payloads are canonical JSON, so the rendering is byte-stable.
func RenderLog(packets []PacketTrace) []byte {
	var buf bytes.Buffer
	for _, p := range packets {
		fmt.Fprintf(&buf, "%s (%d,%d] %s\n", p.Follower, p.From, p.To, p.Payload)
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares its packet log against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the log doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's packet log against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, RenderLog(result.Packets))
}
