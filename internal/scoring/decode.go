package scoring

import (
	"bytes"
	"encoding/json"

	"firealert/internal/models"
)

// DecodeRecord parses one JSON value into a FeatureRecord. Anything other
// than a JSON object yields an InvalidInputError carrying index.
func DecodeRecord(raw json.RawMessage, index int) (models.FeatureRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &InvalidInputError{Index: index, Reason: "record is not an object"}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	rec := models.FeatureRecord{}
	if err := dec.Decode(&rec); err != nil {
		return nil, &InvalidInputError{Index: index, Reason: "malformed record: " + err.Error()}
	}
	return rec, nil
}

// DecodeRecords parses each element of raws, stopping at the first failure.
func DecodeRecords(raws []json.RawMessage) ([]models.FeatureRecord, error) {
	out := make([]models.FeatureRecord, len(raws))
	for i, raw := range raws {
		rec, err := DecodeRecord(raw, i)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}
