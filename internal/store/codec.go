package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/siteintel/internal/analytics"
)

// EncodeResults serialises results as a JSON array.
func EncodeResults(results []analytics.AnalysisResult) ([]byte, error) {
	if results == nil {
		results = []analytics.AnalysisResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return payload, nil
}

// DecodeResults parses a stored payload. Besides a plain JSON array it accepts
// a JSON string whose contents are the array, which is how older rows were
// written. An empty or null payload yields found=false.
func DecodeResults(payload []byte) ([]analytics.AnalysisResult, bool, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, false, nil
	}
	if payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, false, fmt.Errorf("decode stored results: %w", err)
		}
		return DecodeResults([]byte(inner))
	}
	var results []analytics.AnalysisResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, false, fmt.Errorf("decode stored results: %w", err)
	}
	return results, true, nil
}
