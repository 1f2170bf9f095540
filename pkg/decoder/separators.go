package decoder

import "errors"

// Delimiters of the complex payload format.
const (
	ValueSeparator   = ","
	ReadingSeparator = "+"
	AddressSeparator = "/"
)

// uriSeparator joins topic, address and sensor name into a reading URI.
const uriSeparator = "/"

// Separators holds the delimiters used to split a complex payload.
type Separators struct {
	// Value splits a sensor name from its value: "temp,18.36".
	Value string `yaml:"value"`
	// Reading splits consecutive sensor records: "temp,18.36+light,75+".
	Reading string `yaml:"reading"`
	// Address splits the device address from its records: "0xa97/temp,18.36".
	Address string `yaml:"address"`
}

// DefaultSeparators returns the delimiters deployed sensors publish with.
func DefaultSeparators() Separators {
	return Separators{
		Value:   ValueSeparator,
		Reading: ReadingSeparator,
		Address: AddressSeparator,
	}
}

// Validate checks that every separator is set and that they are distinct.
func (s Separators) Validate() error {
	if s.Value == "" || s.Reading == "" || s.Address == "" {
		return errors.New("separators must not be empty")
	}
	if s.Value == s.Reading || s.Value == s.Address || s.Reading == s.Address {
		return errors.New("separators must be distinct")
	}
	return nil
}
