package types

// ParameterValue is one of {bool, int, double, string}; the zero value
// holds no kind, which ParameterMap.Get treats as absent.
type ParameterValue struct {
	kind ParameterKind
	b    bool
	i    int64
	d    float64
	s    string
}

type ParameterKind uint8

const (
	ParameterNone ParameterKind = iota
	ParameterBool
	ParameterInt
	ParameterDouble
	ParameterString
)

func BoolParameter(v bool) ParameterValue     { return ParameterValue{kind: ParameterBool, b: v} }
func IntParameter(v int64) ParameterValue     { return ParameterValue{kind: ParameterInt, i: v} }
func DoubleParameter(v float64) ParameterValue {
	return ParameterValue{kind: ParameterDouble, d: v}
}
func StringParameter(v string) ParameterValue { return ParameterValue{kind: ParameterString, s: v} }

func (p ParameterValue) Kind() ParameterKind { return p.kind }
func (p ParameterValue) Bool() bool          { return p.b }
func (p ParameterValue) Int() int64          { return p.i }
func (p ParameterValue) Double() float64     { return p.d }
func (p ParameterValue) String() string      { return p.s }

// ParameterMap is a name -> value map with unique keys, used on requests,
// inputs, outputs and worker-load parameter sets.
type ParameterMap map[string]ParameterValue

// Get returns the value at key and whether it was present.
func (m ParameterMap) Get(key string) (ParameterValue, bool) {
	v, ok := m[key]
	return v, ok
}

// Has reports whether key is set.
func (m ParameterMap) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// IntOr returns the int parameter at key, or def if absent or not an int.
func (m ParameterMap) IntOr(key string, def int64) int64 {
	v, ok := m[key]
	if !ok || v.kind != ParameterInt {
		return def
	}
	return v.i
}

// StringOr returns the string parameter at key, or def if absent or not a string.
func (m ParameterMap) StringOr(key string, def string) string {
	v, ok := m[key]
	if !ok || v.kind != ParameterString {
		return def
	}
	return v.s
}

// BoolOr returns the bool parameter at key, or def if absent or not a bool.
func (m ParameterMap) BoolOr(key string, def bool) bool {
	v, ok := m[key]
	if !ok || v.kind != ParameterBool {
		return def
	}
	return v.b
}
