package types

// TensorMetadata describes one input or output tensor a worker declares
// during acquire(): its name, shape and data type. The batcher sizes
// buffer sets from this, and modelMetadata surfaces it to front-ends.
type TensorMetadata struct {
	Name  string
	Shape []int64
	Dtype DataType
}

// ModelMetadata is what modelMetadata() returns for a ready endpoint:
// name, platform (worker kind) and declared input/output tensors.
type ModelMetadata struct {
	Name     string
	Platform string
	Inputs   []TensorMetadata
	Outputs  []TensorMetadata
}
