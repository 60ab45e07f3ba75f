package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files declaring the classes. Relative paths are
	// resolved against the scenario file's directory by LoadScenario.
	Specs []string `yaml:"specs,omitempty"`

	// Schema is an inline CUE schema, used instead of Specs.
	Schema string `yaml:"schema,omitempty"`

	// Followers are registered with the authority before the first step.
	Followers []string `yaml:"followers"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and packet log.
	// Supported types: follower_state, in_sync, packet_count
	Assertions []Assertion `yaml:"assertions"`
}

// Step is exactly one of its fields.
type Step struct {
	Spawn   *SpawnStep   `yaml:"spawn,omitempty"`
	Set     *SetStep     `yaml:"set,omitempty"`
	Despawn *DespawnStep `yaml:"despawn,omitempty"`
	Sync    *SyncStep    `yaml:"sync,omitempty"`
	Tick    *TickStep    `yaml:"tick,omitempty"`
}

// SpawnStep creates a root entity.
type SpawnStep struct {
	Class string `yaml:"class"`

	// As names the entity for later steps and assertions.
	As string `yaml:"as,omitempty"`

	// Queued submits the spawn through the mutation queue; it takes effect
	// on the next tick step.
	Queued bool `yaml:"queued,omitempty"`

	// ExpectError is the RuntimeErrorCode the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SetStep writes a property. Entity is an alias or a raw entity ID.
type SetStep struct {
	Entity      string `yaml:"entity"`
	Path        string `yaml:"path"`
	Value       any    `yaml:"value"`
	Queued      bool   `yaml:"queued,omitempty"`
	ExpectError string `yaml:"expect_error,omitempty"`
}

// DespawnStep removes a root entity.
type DespawnStep struct {
	Entity      string `yaml:"entity"`
	Queued      bool   `yaml:"queued,omitempty"`
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SyncStep generates one packet for a follower and applies it.
type SyncStep struct {
	Follower string `yaml:"follower"`

	// Ack defaults to true. With ack: false the follower applies the packet
	// but the authority never hears about it, so the next packet resends.
	Ack *bool `yaml:"ack,omitempty"`

	Expect *PacketExpect `yaml:"expect,omitempty"`
}

// TickStep drains the mutation queue and delivers every follower's packet.
type TickStep struct {
	// Packets is the expected number of non-empty packets, if set.
	Packets *int `yaml:"packets,omitempty"`
}

// PacketExpect validates a generated packet. Unset fields are not checked.
type PacketExpect struct {
	From  *int64 `yaml:"from,omitempty"`
	To    *int64 `yaml:"to,omitempty"`
	Empty *bool  `yaml:"empty,omitempty"`

	// Spawns and Despawns list entities (aliases or IDs) in packet order.
	Spawns   []string `yaml:"spawns,omitempty"`
	Despawns []string `yaml:"despawns,omitempty"`

	// Updates maps entity -> expected diff in plain form: leaves as values,
	// nested diffs as maps. Compared exactly.
	Updates map[string]map[string]any `yaml:"updates,omitempty"`
}

// Assertion validates final state or the packet log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "follower_state": follower's copy of Entity matches Expect (subset)
	//   or, with Absent, the follower has no such entity
	// - "in_sync": follower mirrors every live entity exactly
	// - "packet_count": Count packets were logged for Follower
	Type string `yaml:"type"`

	Follower string         `yaml:"follower"`
	Entity   string         `yaml:"entity,omitempty"`
	Expect   map[string]any `yaml:"expect,omitempty"`
	Absent   bool           `yaml:"absent,omitempty"`
	Count    int            `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFollowerState = "follower_state"
	AssertInSync        = "in_sync"
	AssertPacketCount   = "packet_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative spec paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) {
			scenario.Specs[i] = filepath.Join(base, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without resolving or checking spec
// paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 && s.Schema == "" {
		return fmt.Errorf("specs or schema is required")
	}
	if len(s.Specs) > 0 && s.Schema != "" {
		return fmt.Errorf("specs and schema are mutually exclusive")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	followers := make(map[string]bool, len(s.Followers))
	for i, f := range s.Followers {
		if f == "" {
			return fmt.Errorf("followers[%d]: name is required", i)
		}
		if followers[f] {
			return fmt.Errorf("followers[%d]: duplicate follower %q", i, f)
		}
		followers[f] = true
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step, followers); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, followers); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateStep(step Step, followers map[string]bool) error {
	set := 0
	if step.Spawn != nil {
		set++
		if step.Spawn.Class == "" {
			return fmt.Errorf("spawn: class is required")
		}
	}
	if step.Set != nil {
		set++
		if step.Set.Entity == "" || step.Set.Path == "" {
			return fmt.Errorf("set: entity and path are required")
		}
	}
	if step.Despawn != nil {
		set++
		if step.Despawn.Entity == "" {
			return fmt.Errorf("despawn: entity is required")
		}
	}
	if step.Sync != nil {
		set++
		if !followers[step.Sync.Follower] {
			return fmt.Errorf("sync: unknown follower %q", step.Sync.Follower)
		}
	}
	if step.Tick != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of spawn, set, despawn, sync, tick is required (got %d)", set)
	}
	return nil
}

func validateAssertion(a Assertion, followers map[string]bool) error {
	switch a.Type {
	case AssertFollowerState:
		if a.Entity == "" {
			return fmt.Errorf("follower_state: entity is required")
		}
		if a.Expect == nil && !a.Absent {
			return fmt.Errorf("follower_state: expect or absent is required")
		}
	case AssertInSync, AssertPacketCount:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if !followers[a.Follower] {
		return fmt.Errorf("%s: unknown follower %q", a.Type, a.Follower)
	}
	return nil
}
