package store

import (
	"encoding/json"
	"fmt"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// marshalChanged converts a changed list to canonical JSON TEXT. Capabilities
// are stored by name so the journal survives id renumbering.
func marshalChanged(ids []caps.ID) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := caps.MarshalCanonical(ids)
	if err != nil {
		return "", fmt.Errorf("marshal changed: %w", err)
	}
	return string(data), nil
}

// unmarshalChanged parses a changed list. An empty list decodes to nil.
func unmarshalChanged(data string) ([]caps.ID, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ids []caps.ID
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal changed: %w", err)
	}
	return ids, nil
}

func capName(id caps.ID) string {
	if !id.Valid() {
		return ""
	}
	return id.String()
}

func parseCap(name string) (caps.ID, error) {
	if name == "" {
		return caps.InvalidID, nil
	}
	id, err := caps.ParseID(name)
	if err != nil {
		return caps.InvalidID, fmt.Errorf("stored capability: %w", err)
	}
	return id, nil
}
