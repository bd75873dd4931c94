// Package paravision reads Bruker ParaVision parameter files (acqp, method,
// reco, visu_pars, subject) into typed parameter maps.
package paravision

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueType tags the encoding a parameter value was classified into.
type ValueType int

const (
	Scalar ValueType = iota
	String
	StringList
	Array
)

func (t ValueType) String() string {
	switch t {
	case Scalar:
		return "scalar"
	case String:
		return "string"
	case StringList:
		return "list"
	case Array:
		return "array"
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// Value is a single parsed parameter.
type Value struct {
	Type ValueType

	// Num is set for Scalar values
	Num float64

	// Str is set for String values
	Str string

	// List is set for StringList values
	List []string

	// Data and Shape are set for Array values. Data is row-major.
	Data  []float64
	Shape []int
}

// ScalarValue returns a Scalar value
func ScalarValue(f float64) Value { return Value{Type: Scalar, Num: f} }

// StringValue returns a String value
func StringValue(s string) Value { return Value{Type: String, Str: s} }

// ListValue returns a StringList value
func ListValue(l []string) Value { return Value{Type: StringList, List: l} }

// ArrayValue returns an Array value. A nil or mismatched shape is replaced
// by the flat length.
func ArrayValue(data []float64, shape []int) Value {
	if len(shape) == 0 || product(shape) != len(data) {
		shape = []int{len(data)}
	}
	return Value{Type: Array, Data: data, Shape: shape}
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Floats returns the numeric content of a Scalar or Array value.
func (v Value) Floats() ([]float64, bool) {
	switch v.Type {
	case Scalar:
		return []float64{v.Num}, true
	case Array:
		return v.Data, true
	}
	return nil, false
}

// Float returns a Scalar value, or the first element of an Array.
func (v Value) Float() (float64, bool) {
	switch v.Type {
	case Scalar:
		return v.Num, true
	case Array:
		if len(v.Data) > 0 {
			return v.Data[0], true
		}
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// Ints converts the numeric content to integers.
func (v Value) Ints() ([]int, bool) {
	fs, ok := v.Floats()
	if !ok {
		return nil, false
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(math.Round(f))
	}
	return out, true
}

// Rows splits the numeric content into rows of the given width.
func (v Value) Rows(width int) ([][]float64, bool) {
	fs, ok := v.Floats()
	if !ok || width <= 0 || len(fs)%width != 0 {
		return nil, false
	}
	rows := make([][]float64, 0, len(fs)/width)
	for i := 0; i < len(fs); i += width {
		rows = append(rows, fs[i:i+width])
	}
	return rows, true
}

// Strings returns a StringList, or a String as a one-element list.
func (v Value) Strings() ([]string, bool) {
	switch v.Type {
	case StringList:
		return v.List, true
	case String:
		return []string{v.Str}, true
	}
	return nil, false
}

// Text returns the value rendered as a single string.
func (v Value) Text() string {
	switch v.Type {
	case String:
		return v.Str
	case StringList:
		return strings.Join(v.List, " ")
	}
	return v.String()
}

// HasInf reports whether any numeric element is infinite.
func (v Value) HasInf() bool {
	fs, _ := v.Floats()
	for _, f := range fs {
		if math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// Len is the number of elements: 1 for scalars and strings.
func (v Value) Len() int {
	switch v.Type {
	case StringList:
		return len(v.List)
	case Array:
		return len(v.Data)
	}
	return 1
}

func (v Value) String() string {
	switch v.Type {
	case Scalar:
		return formatFloat(v.Num)
	case String:
		return v.Str
	case StringList:
		quoted := make([]string, len(v.List))
		for i, s := range v.List {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	case Array:
		return formatArray(v.Data, v.Shape)
	}
	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatArray renders nested brackets following the row-major shape.
func formatArray(data []float64, shape []int) string {
	if len(shape) <= 1 {
		parts := make([]string, len(data))
		for i, f := range data {
			parts[i] = formatFloat(f)
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	step := product(shape[1:])
	parts := make([]string, 0, shape[0])
	for i := 0; i < shape[0]; i++ {
		parts = append(parts, formatArray(data[i*step:(i+1)*step], shape[1:]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// ParameterMap maps cleaned variable names to values for one parameter file.
// It is immutable once built.
type ParameterMap struct {
	kind    Kind
	path    string
	present bool
	values  map[string]Value
}

// NewParameterMap builds a map from values. The input map is copied.
func NewParameterMap(kind Kind, values map[string]Value) ParameterMap {
	m := ParameterMap{kind: kind, present: true, values: make(map[string]Value, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// emptyMap is the map returned for a file that does not exist.
func emptyMap(kind Kind, path string) ParameterMap {
	return ParameterMap{kind: kind, path: path}
}

// Kind returns the parameter file kind the map was read from
func (m ParameterMap) Kind() Kind { return m.kind }

// Path returns the file the map was read from, if any
func (m ParameterMap) Path() string { return m.path }

// Present reports whether the backing file existed. A present file can
// still declare no parameters.
func (m ParameterMap) Present() bool { return m.present }

// Len returns the number of parameters
func (m ParameterMap) Len() int { return len(m.values) }

// Get returns the value for name.
func (m ParameterMap) Get(name string) (Value, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Has reports whether name is declared
func (m ParameterMap) Has(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Keys returns the parameter names in sorted order.
func (m ParameterMap) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns a numeric parameter.
func (m ParameterMap) Float(name string) (float64, error) {
	v, ok := m.values[name]
	if !ok {
		return 0, missing(m.kind, name)
	}
	f, ok := v.Float()
	if !ok {
		return 0, mistyped(m.kind, name, "number", v)
	}
	return f, nil
}

// FloatOr returns a numeric parameter, or def when it is absent or not numeric.
func (m ParameterMap) FloatOr(name string, def float64) float64 {
	f, err := m.Float(name)
	if err != nil {
		return def
	}
	return f
}

// Floats returns the numeric content of a parameter.
func (m ParameterMap) Floats(name string) ([]float64, error) {
	v, ok := m.values[name]
	if !ok {
		return nil, missing(m.kind, name)
	}
	fs, ok := v.Floats()
	if !ok {
		return nil, mistyped(m.kind, name, "numeric array", v)
	}
	return fs, nil
}

// Ints returns the numeric content of a parameter rounded to integers.
func (m ParameterMap) Ints(name string) ([]int, error) {
	v, ok := m.values[name]
	if !ok {
		return nil, missing(m.kind, name)
	}
	is, ok := v.Ints()
	if !ok {
		return nil, mistyped(m.kind, name, "numeric array", v)
	}
	return is, nil
}

// Text returns a parameter rendered as a string.
func (m ParameterMap) Text(name string) (string, error) {
	v, ok := m.values[name]
	if !ok {
		return "", missing(m.kind, name)
	}
	return v.Text(), nil
}

// TextOr returns a parameter as a string, or def when it is absent.
func (m ParameterMap) TextOr(name, def string) string {
	s, err := m.Text(name)
	if err != nil {
		return def
	}
	return s
}
