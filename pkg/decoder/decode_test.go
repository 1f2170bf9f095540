package decoder_test

import (
	"errors"
	"testing"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Scenarios(t *testing.T) {
	seps := decoder.DefaultSeparators()

	testCases := []struct {
		name     string
		topic    string
		payload  string
		class    decoder.TopicClass
		expected []decoder.Reading
	}{
		{
			name:    "single sensor without separator",
			topic:   "0013a200409c1683",
			payload: "0xd19/pir,0",
			class:   decoder.TopicComplex,
			expected: []decoder.Reading{
				{URI: "0013a200409c1683/0xd19/pir", Value: 0},
			},
		},
		{
			name:    "single sensor with trailing separator",
			topic:   "0013a200409c1683",
			payload: "0xd19/pir,0+",
			class:   decoder.TopicComplex,
			expected: []decoder.Reading{
				{URI: "0013a200409c1683/0xd19/pir", Value: 0},
			},
		},
		{
			name:    "current channels with slashes in sensor names",
			topic:   "0013a20040a1d47f",
			payload: "0xc55/cur/1,8069+cur/2,13804+cur/3,420+",
			class:   decoder.TopicComplex,
			expected: []decoder.Reading{
				{URI: "0013a20040a1d47f/0xc55/cur/1", Value: 8069},
				{URI: "0013a20040a1d47f/0xc55/cur/2", Value: 13804},
				{URI: "0013a20040a1d47f/0xc55/cur/3", Value: 420},
			},
		},
		{
			name:    "environmental node",
			topic:   "0013a20040a1d47f",
			payload: "0xa97/temp,18.36+light,75+pir,0+sound,61+humid,49.40+",
			class:   decoder.TopicComplex,
			expected: []decoder.Reading{
				{URI: "0013a20040a1d47f/0xa97/temp", Value: 18.36},
				{URI: "0013a20040a1d47f/0xa97/light", Value: 75},
				{URI: "0013a20040a1d47f/0xa97/pir", Value: 0},
				{URI: "0013a20040a1d47f/0xa97/sound", Value: 61},
				{URI: "0013a20040a1d47f/0xa97/humid", Value: 49.40},
			},
		},
		{
			name:    "lora gateway",
			topic:   "dragino-191078",
			payload: "4/temp,22.90+humid,96.50+light,57+sound,47+pir,0+vcc,5051+rssin,-95+snrn,-56+rssi,-88+snr,-55+pl,58+",
			class:   decoder.TopicComplex,
			expected: []decoder.Reading{
				{URI: "dragino-191078/4/temp", Value: 22.90},
				{URI: "dragino-191078/4/humid", Value: 96.50},
				{URI: "dragino-191078/4/light", Value: 57},
				{URI: "dragino-191078/4/sound", Value: 47},
				{URI: "dragino-191078/4/pir", Value: 0},
				{URI: "dragino-191078/4/vcc", Value: 5051},
				{URI: "dragino-191078/4/rssin", Value: -95},
				{URI: "dragino-191078/4/snrn", Value: -56},
				{URI: "dragino-191078/4/rssi", Value: -88},
				{URI: "dragino-191078/4/snr", Value: -55},
				{URI: "dragino-191078/4/pl", Value: 58},
			},
		},
		{
			name:    "lora power meter",
			topic:   "dragino-18ea50",
			payload: "8/cur/1,50811.49+cur/2,378.16+cur/3,911.14+rssi,-50+",
			class:   decoder.TopicComplex,
			expected: []decoder.Reading{
				{URI: "dragino-18ea50/8/cur/1", Value: 50811.49},
				{URI: "dragino-18ea50/8/cur/2", Value: 378.16},
				{URI: "dragino-18ea50/8/cur/3", Value: 911.14},
				{URI: "dragino-18ea50/8/rssi", Value: -50},
			},
		},
		{
			name:    "flare topic",
			topic:   "flare/zone1",
			payload: "21.5",
			class:   decoder.TopicPlain,
			expected: []decoder.Reading{
				{URI: "flare/zone1", Value: 21.5},
			},
		},
		{
			name:    "control characters are stripped before parsing",
			topic:   "flare/zone2",
			payload: "\x0021.5\r\n",
			class:   decoder.TopicPlain,
			expected: []decoder.Reading{
				{URI: "flare/zone2", Value: 21.5},
			},
		},
		{
			name:    "dangling fragment after the last separator is dropped",
			topic:   "0013a200409c1683",
			payload: "0xd19/pir,0+temp,1",
			class:   decoder.TopicComplex,
			expected: []decoder.Reading{
				{URI: "0013a200409c1683/0xd19/pir", Value: 0},
			},
		},
		{
			name:    "two segment payload is rejected",
			topic:   "0013a200409c1683",
			payload: "0xd19/pir,0+temp,21+",
			class:   decoder.TopicComplex,
		},
		{
			name:    "payload without value separator",
			topic:   "0013a200409c1683",
			payload: "0xd19/pir",
			class:   decoder.TopicComplex,
		},
		{
			name:    "ignored topic is not parsed",
			topic:   "sensors/raw",
			payload: "not a number",
			class:   decoder.TopicIgnored,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			readings, class, err := decoder.Decode(tc.topic, tc.payload, seps)
			require.NoError(t, err)
			assert.Equal(t, tc.class, class)
			if len(tc.expected) == 0 {
				assert.Empty(t, readings)
				return
			}
			require.Len(t, readings, len(tc.expected))
			for i, want := range tc.expected {
				assert.Equal(t, want.URI, readings[i].URI)
				assert.InDelta(t, want.Value, readings[i].Value, 1e-9)
			}
		})
	}
}

func TestDecode_IgnoredTopics(t *testing.T) {
	payloads := []string{"", "0xd19/pir,0", "garbage", "0xd19/pir,x+"}
	for _, topic := range []string{"s", "stats", "heartbeat", "sensor/1", "something"} {
		for _, payload := range payloads {
			readings, class, err := decoder.Decode(topic, payload, decoder.DefaultSeparators())
			require.NoError(t, err, "topic %q payload %q", topic, payload)
			assert.Equal(t, decoder.TopicIgnored, class)
			assert.Empty(t, readings)
		}
	}
}

func TestDecode_MalformedValueIsAtomic(t *testing.T) {
	readings, class, err := decoder.Decode("0013a20040a1d47f", "0xa97/temp,18.36+light,75+pir,oops+sound,61+", decoder.DefaultSeparators())
	require.Error(t, err)
	assert.Equal(t, decoder.TopicComplex, class)
	assert.Nil(t, readings, "no partial readings may be returned")
	assert.True(t, errors.Is(err, decoder.ErrMalformedValue))

	var malformed *decoder.MalformedValueError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "0013a20040a1d47f", malformed.Topic)
	assert.Equal(t, "pir", malformed.Sensor)
	assert.Equal(t, "oops", malformed.Value)
}

func TestDecode_PlainMalformed(t *testing.T) {
	for _, payload := range []string{"", "abc", "21.5+", "NaN", "Inf", "1e999"} {
		readings, class, err := decoder.Decode("flare/zone1", payload, decoder.DefaultSeparators())
		assert.ErrorIs(t, err, decoder.ErrMalformedValue, "payload %q", payload)
		assert.Equal(t, decoder.TopicPlain, class)
		assert.Nil(t, readings)
	}
}

func TestDecode_TrailingFragmentEquivalence(t *testing.T) {
	seps := decoder.DefaultSeparators()
	prefix := "0xc55/cur/1,8069+cur/2,13804+cur/3,420+"

	want, _, err := decoder.Decode("0013a20040a1d47f", prefix, seps)
	require.NoError(t, err)

	for _, fragment := range []string{"cur/4", "cur/4,12", "garbage,,", "x,notanumber"} {
		got, _, err := decoder.Decode("0013a20040a1d47f", prefix+fragment, seps)
		require.NoError(t, err, "fragment %q", fragment)
		assert.Equal(t, want, got, "fragment %q", fragment)
	}
}

func TestDecode_Idempotent(t *testing.T) {
	seps := decoder.DefaultSeparators()
	topic := "dragino-191078"
	payload := "4/temp,22.90+humid,96.50+light,57+"

	first, _, err := decoder.Decode(topic, payload, seps)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, _, err := decoder.Decode(topic, payload, seps)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDecode_AlternateSeparators(t *testing.T) {
	seps := decoder.Separators{Value: "=", Reading: ";", Address: "|"}
	require.NoError(t, seps.Validate())

	readings, _, err := decoder.Decode("node-7", "0xa97|temp=18.5;light=75;pir=0;", seps)
	require.NoError(t, err)
	assert.Equal(t, []decoder.Reading{
		{URI: "node-7/0xa97/temp", Value: 18.5},
		{URI: "node-7/0xa97/light", Value: 75},
		{URI: "node-7/0xa97/pir", Value: 0},
	}, readings)
}

func TestSeparators_Validate(t *testing.T) {
	assert.NoError(t, decoder.DefaultSeparators().Validate())
	assert.Error(t, decoder.Separators{Value: ",", Reading: "+"}.Validate())
	assert.Error(t, decoder.Separators{Value: ",", Reading: ",", Address: "/"}.Validate())
}
