package decoder

import (
	"math"
	"strconv"
	"strings"
)

// DecodePlain parses the whole payload as one number published under topic.
func DecodePlain(topic, payload string) ([]Reading, error) {
	v, err := parseValue(topic, "", payload)
	if err != nil {
		return nil, err
	}
	return []Reading{{URI: topic, Value: v}}, nil
}

// parseValue parses a finite decimal number, ignoring surrounding whitespace.
func parseValue(topic, sensor, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err == nil && (math.IsInf(v, 0) || math.IsNaN(v)) {
		err = errNotFinite
	}
	if err != nil {
		return 0, &MalformedValueError{Topic: topic, Sensor: sensor, Value: raw, Err: err}
	}
	return v, nil
}
