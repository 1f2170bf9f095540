package decoder

import "strings"

// TrimTrailingFragment drops everything after the last reading separator, so
// a partial record left dangling at the end of a payload is ignored. Payloads
// without a separator are returned unchanged.
func TrimTrailingFragment(payload, readingSep string) string {
	if i := strings.LastIndex(payload, readingSep); i >= 0 {
		return payload[:i+len(readingSep)]
	}
	return payload
}

// DecodeComplex decodes an address/name,value+name,value+ payload. Payloads
// the format does not accept yield no readings and no error. A value that is
// not a number fails the whole call.
func DecodeComplex(topic, payload string, seps Separators) ([]Reading, error) {
	if !strings.Contains(payload, seps.Value) {
		return nil, nil
	}
	if !passesSegmentGate(payload, seps.Reading) {
		return nil, nil
	}

	address, sensors, found := strings.Cut(payload, seps.Address)
	if !found {
		sensors = payload
	}

	var readings []Reading
	for _, part := range splitDropTrailing(sensors, seps.Reading) {
		name, rest, ok := strings.Cut(part, seps.Value)
		if !ok {
			continue
		}
		// Only the first two fields of a record are significant.
		value, _, _ := strings.Cut(rest, seps.Value)
		v, err := parseValue(topic, name, value)
		if err != nil {
			return nil, err
		}
		readings = append(readings, Reading{
			URI:   topic + uriSeparator + address + uriSeparator + name,
			Value: v,
		})
	}
	return readings, nil
}

// passesSegmentGate reports whether the record layout of payload is accepted:
// no reading separator at all, exactly one segment, or three and more.
// Payloads that split into exactly two segments are rejected, well formed two
// sensor payloads included.
func passesSegmentGate(payload, readingSep string) bool {
	if !strings.Contains(payload, readingSep) {
		return true
	}
	n := len(splitDropTrailing(payload, readingSep))
	return n >= 3 || n == 1
}

// splitDropTrailing splits s around sep and drops trailing empty fields.
// An empty s yields a single empty field.
func splitDropTrailing(s, sep string) []string {
	if s == "" {
		return []string{""}
	}
	parts := strings.Split(s, sep)
	end := len(parts)
	for end > 0 && parts[end-1] == "" {
		end--
	}
	return parts[:end]
}
