package sink

import (
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
)

// Record is a Reading stamped with its receipt time. It is the unit written
// to every destination.
type Record struct {
	URI       string    `json:"uri" bigquery:"uri"`
	Value     float64   `json:"value" bigquery:"value"`
	Timestamp time.Time `json:"timestamp" bigquery:"timestamp"`
}

// NewRecord stamps reading with ts in UTC.
func NewRecord(reading decoder.Reading, ts time.Time) Record {
	return Record{URI: reading.URI, Value: reading.Value, Timestamp: ts.UTC()}
}

// Encode renders the record as "<uri>,<value>,<unix millis>" with six
// fractional digits on the value.
func (r Record) Encode() string {
	var b strings.Builder
	b.Grow(len(r.URI) + 32)
	b.WriteString(r.URI)
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(r.Value, 'f', 6, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(r.Timestamp.UnixMilli(), 10))
	return b.String()
}

// Bytes is Encode as a byte slice.
func (r Record) Bytes() []byte {
	return []byte(r.Encode())
}
