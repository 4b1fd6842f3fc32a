// Package events models the out-of-scope IPC bus as a Go interface: the
// Reconciler publishes a ChangeEvent for every archive disposition it
// decides, and a Publisher implementation forwards it wherever the
// deployment wants (log, message queue, ...). The shape and the
// Listener/fmt.Stringer split mirror how the teacher's manifest package
// reported build-pipeline events, collapsed here to the single six-field
// event the reconciler needs.
package events

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Kind classifies a ChangeEvent.
type Kind string

const (
	KindNew       Kind = "new"
	KindUpgrade   Kind = "upgrade"
	KindOverwrite Kind = "overwrite"
	KindDelete    Kind = "delete"
)

// ChangeEvent is published synchronously, before the reconciler's database
// insert returns to its caller, for every new/upgrade/overwrite/delete
// disposition (same-version collisions, OLD warnings and degraded records
// publish nothing).
type ChangeEvent struct {
	ComponentLabel string `json:"component_label"`
	Package        string `json:"package"`
	Architecture   string `json:"architecture"`
	Kind           Kind   `json:"kind"`
	OldVersion     string `json:"old_version"`
	NewVersion     string `json:"new_version"`
}

// String renders the event as a JSON object, matching the teacher's
// jsonString event-rendering convention.
func (e ChangeEvent) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}", err.Error())
	}
	return string(b)
}

// Publisher receives ChangeEvents as the reconciler decides them.
type Publisher interface {
	Publish(ChangeEvent)
}

// LogPublisher publishes every event as a structured log line, for
// standalone operation with no external bus configured.
type LogPublisher struct {
	Logger *zap.SugaredLogger
}

// NewLogPublisher returns a Publisher that logs each event at info level.
func NewLogPublisher(logger *zap.SugaredLogger) *LogPublisher {
	return &LogPublisher{Logger: logger}
}

func (p *LogPublisher) Publish(e ChangeEvent) {
	p.Logger.Infow("change event",
		"component", e.ComponentLabel,
		"package", e.Package,
		"architecture", e.Architecture,
		"kind", string(e.Kind),
		"old_version", e.OldVersion,
		"new_version", e.NewVersion,
	)
}

// MultiPublisher fans a single event out to every wrapped Publisher.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(e ChangeEvent) {
	for _, p := range m {
		p.Publish(e)
	}
}
