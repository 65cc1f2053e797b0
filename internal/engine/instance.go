package engine

import (
	"maps"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// Instance is the live state of one capability in a session.
type Instance struct {
	Value  int64       `json:"value"`
	Bounds caps.Bounds `json:"bounds"`
	Dirty  bool        `json:"dirty"`
}

// ValueReader gives strategies read access to the other capabilities of a
// session. ok is false when the capability is absent for the session.
type ValueReader interface {
	Value(id caps.ID) (v int64, ok bool)
}

// instances is the working state a Set or open pass mutates. Sets run on
// a copy that replaces the session state only on success.
type instances map[caps.ID]Instance

func (in instances) Value(id caps.ID) (int64, bool) {
	i, ok := in[id]
	return i.Value, ok
}

func (in instances) clone() instances {
	return maps.Clone(in)
}

// valueOr reads id, falling back to def when the session lacks it.
func valueOr(r ValueReader, id caps.ID, def int64) int64 {
	if v, ok := r.Value(id); ok {
		return v
	}
	return def
}

// CapState is one row of a session snapshot.
type CapState struct {
	Cap    caps.ID     `json:"cap"`
	Value  int64       `json:"value"`
	Bounds caps.Bounds `json:"bounds"`
	Dirty  bool        `json:"dirty"`
}
