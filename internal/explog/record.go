// Package explog persists the append-only experience log: one record per
// evaluation, readable by the surrogate trainer and by external analysis
// tooling. Records are never mutated after append and are identified by
// their sequence number.
package explog

import (
	"time"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/reward"
	"github.com/qdsearch/search-core/internal/structure"
)

// Record is the unit of persisted history. The backend identifier is a
// field, not a separate file format, so the log schema is stable across
// backend types.
type Record struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Backend   string          `json:"backend"`
	Spec      *structure.Spec `json:"spec"`
	Metrics   *device.Metrics `json:"metrics"`
	// Reward is nil for records written outside a decision loop (e.g. the
	// single-structure evaluation command).
	Reward *reward.Result `json:"reward,omitempty"`
}
