package decoder

import "strings"

// TopicClass says how the payloads of a topic are decoded.
type TopicClass int

const (
	// TopicComplex payloads carry an address and a list of name,value records.
	TopicComplex TopicClass = iota
	// TopicPlain payloads carry a single number.
	TopicPlain
	// TopicIgnored payloads are dropped without being parsed.
	TopicIgnored
)

const (
	ignoredPrefix  = "s"
	plainPrefix    = "flare"
	heartbeatTopic = "heartbeat"
	statsTopic     = "stats"
)

func (c TopicClass) String() string {
	switch c {
	case TopicComplex:
		return "complex"
	case TopicPlain:
		return "plain"
	case TopicIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Classify decides the decoding family of topic.
func Classify(topic string) TopicClass {
	switch {
	case strings.HasPrefix(topic, ignoredPrefix), topic == heartbeatTopic, topic == statsTopic:
		return TopicIgnored
	case strings.HasPrefix(topic, plainPrefix):
		return TopicPlain
	default:
		return TopicComplex
	}
}
