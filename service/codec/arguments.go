package codec

import (
	"fmt"

	"github.com/viant/structology/conv"
)

// Arguments carries the positional and keyword arguments of a decoded call,
// with the captured environment already merged into the keyword set.
type Arguments struct {
	Positional []interface{}
	Kwargs     map[string]interface{}
	converter  *conv.Converter
}

// Bind converts the keyword arguments into the supplied typed struct.
func (a *Arguments) Bind(target interface{}) error {
	return a.converter.Convert(a.Kwargs, target)
}

// Int returns the i-th positional argument as int.
func (a *Arguments) Int(i int) (int, error) {
	var out int
	err := a.positional(i, &out)
	return out, err
}

// Float64 returns the i-th positional argument as float64.
func (a *Arguments) Float64(i int) (float64, error) {
	var out float64
	err := a.positional(i, &out)
	return out, err
}

// String returns the i-th positional argument as string.
func (a *Arguments) String(i int) (string, error) {
	var out string
	err := a.positional(i, &out)
	return out, err
}

// Kwarg returns a keyword argument converted into target; missing keys leave
// target untouched and report false.
func (a *Arguments) Kwarg(name string, target interface{}) (bool, error) {
	value, ok := a.Kwargs[name]
	if !ok {
		return false, nil
	}
	return true, a.converter.Convert(value, target)
}

func (a *Arguments) positional(i int, target interface{}) error {
	if i < 0 || i >= len(a.Positional) {
		return fmt.Errorf("positional argument %v out of range (%v present)", i, len(a.Positional))
	}
	return a.converter.Convert(a.Positional[i], target)
}
