package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var requiredFields = []string{"latest_image", "first_image", "vegetation_area_change"}

// Load reads the whole state file. A missing file is an empty store: no timeframe
// has produced a report yet. Anything else that is not a mapping of timeframe to
// complete record is ErrCorruptState.
func Load(path string) (Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Store{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses and validates a serialized store.
func Decode(data []byte) (Store, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrCorruptState)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is not a mapping", ErrCorruptState)
	}

	store := make(Store, len(raw))
	for name, entry := range raw {
		rec, err := decodeRecord(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: timeframe %q: %v", ErrCorruptState, name, err)
		}
		store[name] = rec
	}
	if err := store.Validate(); err != nil {
		return nil, err
	}
	return store, nil
}

func decodeRecord(entry json.RawMessage) (TimeframeRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return TimeframeRecord{}, err
	}
	if fields == nil {
		return TimeframeRecord{}, errors.New("record is not a mapping")
	}
	for _, name := range requiredFields {
		v, ok := fields[name]
		if !ok {
			return TimeframeRecord{}, fmt.Errorf("missing field %s", name)
		}
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return TimeframeRecord{}, fmt.Errorf("field %s is null", name)
		}
	}

	var rec TimeframeRecord
	if err := json.Unmarshal(fields["latest_image"], &rec.LatestImage); err != nil {
		return TimeframeRecord{}, fmt.Errorf("latest_image: %v", err)
	}
	if err := json.Unmarshal(fields["first_image"], &rec.FirstImage); err != nil {
		return TimeframeRecord{}, fmt.Errorf("first_image: %v", err)
	}
	if err := json.Unmarshal(fields["vegetation_area_change"], &rec.VegetationAreaChange); err != nil {
		return TimeframeRecord{}, fmt.Errorf("vegetation_area_change: %v", err)
	}
	return rec, nil
}

// Save replaces the state file with the full store. The document is written to a
// temporary file first and renamed over the old one.
func Save(path string, store Store) error {
	if err := store.Validate(); err != nil {
		return err
	}
	if store == nil {
		store = Store{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp state file: %w", err)
	}
	return nil
}
