package decoder

// Decode classifies topic and, unless it is ignored, sanitizes and decodes
// payload with the family the topic belongs to. The class is returned so
// callers can tell an ignored topic from a payload that held no readings.
func Decode(topic, payload string, seps Separators) ([]Reading, TopicClass, error) {
	class := Classify(topic)
	switch class {
	case TopicIgnored:
		return nil, class, nil
	case TopicPlain:
		readings, err := DecodePlain(topic, Sanitize(payload))
		return readings, class, err
	default:
		clean := TrimTrailingFragment(Sanitize(payload), seps.Reading)
		readings, err := DecodeComplex(topic, clean, seps)
		return readings, class, err
	}
}
