package types

import "fmt"

// DataType is a tagged enum of the primitive tensor element types the
// dataplane understands. The set is closed and small, so a tagged value
// is used instead of per-kind struct types.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeBool
	DataTypeUint8
	DataTypeUint16
	DataTypeUint32
	DataTypeUint64
	DataTypeInt8
	DataTypeInt16
	DataTypeInt32
	DataTypeInt64
	DataTypeFp16
	DataTypeFp32
	DataTypeFp64
	DataTypeString
)

var dataTypeNames = map[DataType]string{
	DataTypeUnknown: "UNKNOWN",
	DataTypeBool:    "BOOL",
	DataTypeUint8:   "UINT8",
	DataTypeUint16:  "UINT16",
	DataTypeUint32:  "UINT32",
	DataTypeUint64:  "UINT64",
	DataTypeInt8:    "INT8",
	DataTypeInt16:   "INT16",
	DataTypeInt32:   "INT32",
	DataTypeInt64:   "INT64",
	DataTypeFp16:    "FP16",
	DataTypeFp32:    "FP32",
	DataTypeFp64:    "FP64",
	DataTypeString:  "STRING",
}

// sizeInBytes is fixed per kind; DataTypeString has no fixed extent since
// its on-wire representation is a length-prefixed byte run.
var dataTypeSizes = map[DataType]int{
	DataTypeBool:   1,
	DataTypeUint8:  1,
	DataTypeUint16: 2,
	DataTypeUint32: 4,
	DataTypeUint64: 8,
	DataTypeInt8:   1,
	DataTypeInt16:  2,
	DataTypeInt32:  4,
	DataTypeInt64:  8,
	DataTypeFp16:   2,
	DataTypeFp32:   4,
	DataTypeFp64:   8,
}

// String returns the wire name of the data type, e.g. "UINT32".
func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", uint8(d))
}

// Size returns the fixed byte size of one element of this type. Strings
// have no fixed size and return 0; callers must special-case them.
func (d DataType) Size() int {
	return dataTypeSizes[d]
}

// Valid reports whether d is a recognized, non-unknown data type.
func (d DataType) Valid() bool {
	if d == DataTypeUnknown {
		return false
	}
	_, ok := dataTypeNames[d]
	return ok
}

// ParseDataType maps a wire name like "UINT32" back to a DataType.
func ParseDataType(name string) (DataType, bool) {
	for dt, n := range dataTypeNames {
		if n == name {
			return dt, true
		}
	}
	return DataTypeUnknown, false
}
