// Package decoder turns the ASCII payloads published by field sensors into
// canonical scalar readings.
//
// Two payload families exist. Plain payloads, published on "flare" topics,
// carry one number. Complex payloads carry a device address followed by a
// list of name,value records:
//
//	0xa97/temp,18.36+light,75+pir,0+
//
// Decoding is a pure function of topic and payload. A call either returns
// every reading of the payload, in the order they were encountered, or an
// error and no readings at all.
package decoder
