package types

// InferenceResponse is what a worker produces for one request: either a
// set of output tensors, or an error, never both (isError implies Outputs
// is empty).
type InferenceResponse struct {
	ID     RequestID
	Model  string
	Outputs []Tensor
	Err    error
}

// IsError reports whether this response carries an error rather than outputs.
func (r InferenceResponse) IsError() bool { return r.Err != nil }

// NewErrorResponse builds an error-bearing response for id/model.
func NewErrorResponse(id RequestID, model string, err error) InferenceResponse {
	return InferenceResponse{ID: id, Model: model, Err: err}
}
