package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

// decodeMetadata accepts any JSON object. Older rows written by hand may
// hold numbers or booleans; they are converted to strings.
func decodeMetadata(raw string) (map[string]string, error) {
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	out := make(map[string]string, len(loose))
	cfg := &mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &out}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(loose); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return out, nil
}
