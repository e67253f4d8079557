package kitchen

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseSeed decodes a seed pantry written in the extraction payload shape, in YAML or JSON:
//
//	ingredients:
//	  - {item: eggs, qty: "6", expiry: soon}
//	preferences: [vegetarian]
//	people: "2"
func ParseSeed(data []byte) (Extraction, error) {
	var rec Extraction
	if len(bytes.TrimSpace(data)) == 0 {
		return rec, nil
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Extraction{}, fmt.Errorf("decode seed pantry: %w", err)
	}
	return rec, nil
}
