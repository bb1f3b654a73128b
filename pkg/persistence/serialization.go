package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalSignerRecord serializes a SignerRecord to JSON bytes.
func MarshalSignerRecord(r *SignerRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil SignerRecord")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SignerRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSignerRecord deserializes a SignerRecord from JSON bytes.
func UnmarshalSignerRecord(data []byte) (*SignerRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var r SignerRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SignerRecord: %w", err)
	}

	return &r, nil
}

// MarshalOwnershipRecord serializes an OwnershipRecord to JSON bytes.
func MarshalOwnershipRecord(r *OwnershipRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil OwnershipRecord")
	}

	return json.Marshal(r)
}

// UnmarshalOwnershipRecord deserializes an OwnershipRecord from JSON bytes.
func UnmarshalOwnershipRecord(data []byte) (*OwnershipRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var r OwnershipRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to OwnershipRecord: %w", err)
	}

	return &r, nil
}
