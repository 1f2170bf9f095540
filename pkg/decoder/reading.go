package decoder

// Reading is a single decoded measurement. It holds no timestamp; the receipt
// time is attached when the reading is handed to a sink.
type Reading struct {
	// URI is the measurement path: the topic for plain payloads,
	// topic/address/sensor for complex ones.
	URI   string  `json:"uri"`
	Value float64 `json:"value"`
}
