package store

import (
	"encoding/json"
	"fmt"

	"github.com/brainytots/wa-connect/internal/domain"
)

// Durable stores persist the record as a JSON document next to a few
// indexed columns (state, last activity).

func encodeRecord(rec *domain.SessionRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}
