package types

import (
	"fmt"
	"sync"
	"time"
)

// ResponseCallback receives zero, one, or many InferenceResponses for a
// single request. Streaming workers may invoke it repeatedly. It is a
// plain function, not a channel; InferenceRequest invokes it through the
// RunCallback, RunCallbackOnce and RunCallbackError helpers.
type ResponseCallback func(InferenceResponse)

// InferenceRequest is the core request object a front-end builds: inputs
// (non-empty at inference time), optional requested outputs, parameters,
// an id and an optional callback. It is consumed once as it flows through
// the batcher and worker.
type InferenceRequest struct {
	ID         RequestID
	Model      string
	Inputs     []Tensor
	Outputs    []Tensor // requested outputs; optional hints only, per spec
	Parameters ParameterMap

	once     sync.Once
	callback ResponseCallback
}

// NewInferenceRequest builds a request with a fresh ID if none is given.
func NewInferenceRequest(model string, inputs []Tensor, cb ResponseCallback) *InferenceRequest {
	return &InferenceRequest{
		ID:       NewRequestID(),
		Model:    model,
		Inputs:   inputs,
		callback: cb,
	}
}

// SetCallback installs or replaces the response callback. Used by workers
// like echo_multi that forward a synthesized sub-request's callback back
// to the original request.
func (r *InferenceRequest) SetCallback(cb ResponseCallback) { r.callback = cb }

// Callback returns the installed callback, or nil if none was set.
func (r *InferenceRequest) Callback() ResponseCallback { return r.callback }

// Validate checks the invariants an InferenceRequest must hold:
// non-empty inputs, and that every input tensor is itself well formed.
func (r *InferenceRequest) Validate() error {
	if len(r.Inputs) == 0 {
		return fmt.Errorf("request %s: empty inputs: %w", r.ID, ErrInvalidArgument)
	}
	for _, in := range r.Inputs {
		if err := in.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RunCallback invokes the callback if set; may be called any number of
// times (streaming workers). No-op if no callback was installed.
func (r *InferenceRequest) RunCallback(resp InferenceResponse) {
	if r.callback != nil {
		r.callback(resp)
	}
}

// RunCallbackOnce guarantees a single invocation of the callback for this
// request, enforced here with sync.Once. Subsequent calls are silently
// dropped, matching the "exactly once" discipline non-streaming workers
// must follow.
func (r *InferenceRequest) RunCallbackOnce(resp InferenceResponse) {
	r.once.Do(func() {
		r.RunCallback(resp)
	})
}

// RunCallbackError is a convenience for RunCallbackOnce with an
// error-bearing response.
func (r *InferenceRequest) RunCallbackError(err error) {
	r.RunCallbackOnce(NewErrorResponse(r.ID, r.Model, err))
}

// IngressTime records when this request entered the batcher, used for
// timing metadata carried on a Batch when metrics are enabled.
type IngressTime = time.Time
