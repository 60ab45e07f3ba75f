package harness

import "github.com/roach88/repgraph/internal/ir"

// PacketTrace is one packet from the persisted log.
type PacketTrace struct {
	Follower string `json:"follower"`
	From     int64  `json:"from"`
	To       int64  `json:"to"`
	Payload  string `json:"payload"` // canonical JSON
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion holds.
	Pass bool `json:"pass"`

	// Packets is the packet log after the run, grouped by follower (ordered
	// by ID) and ordered by version within a follower. Empty packets are
	// never logged.
	Packets []PacketTrace `json:"packets"`

	// Deliveries counts packets applied by followers, empty ones included.
	Deliveries int `json:"deliveries"`

	// Entities is the authority's entity registry after the run.
	Entities []ir.EntityRecord `json:"entities"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Packets:  []PacketTrace{},
		Entities: []ir.EntityRecord{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// PacketsFor returns the logged packets of one follower.
func (r *Result) PacketsFor(follower string) []PacketTrace {
	var out []PacketTrace
	for _, p := range r.Packets {
		if p.Follower == follower {
			out = append(out, p)
		}
	}
	return out
}
