package types

import "github.com/google/uuid"

// RequestID uniquely identifies one InferenceRequest as it moves through
// the pipeline. Generated with google/uuid, the same library the pack's
// aibrix gateway uses to tag inbound requests.
type RequestID string

// NewRequestID generates a fresh random request ID.
func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}
