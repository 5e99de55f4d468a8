package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `[
  {
    "Results": {
      "Refuse_Collection": {"_": "Your next collection is Monday, 3 March 2025", "collectday": "Monday"},
      "Recycling": {"collectionroute": "Route A", "Info": "See leaflet"},
      "Garden_Waste": "Collections happen on Tuesday",
      "Bulky": 42,
      "Clinical": {"_": 7, "CollectionDay": "Friday"}
    }
  },
  {"Error": "no data"},
  "not an object",
  {"Results": ["wrong", "shape"]},
  {"Results": {"Food_Waste": {"collectionday": "Thursday", "collectday": null}}}
]`

func TestDecodeRecords(t *testing.T) {
	records, err := DecodeRecords([]byte(samplePayload))
	require.NoError(t, err)
	require.Len(t, records, 5)

	first := records[0].Services
	require.Len(t, first, 5)
	assert.Equal(t, "Refuse_Collection", first[0].Key)
	assert.Equal(t, StructuredDetails{
		CatchAll:  "Your next collection is Monday, 3 March 2025",
		DayFields: []string{"Monday"},
	}, first[0].Details)
	assert.Equal(t, StructuredDetails{DayFields: []string{"Route A"}, Info: "See leaflet"}, first[1].Details)
	assert.Equal(t, TextDetails("Collections happen on Tuesday"), first[2].Details)
	assert.Equal(t, OpaqueDetails{}, first[3].Details)
	assert.Equal(t, StructuredDetails{DayFields: []string{"Friday"}}, first[4].Details)

	assert.Nil(t, records[1].Services)
	assert.Nil(t, records[2].Services)
	assert.Nil(t, records[3].Services)

	require.Len(t, records[4].Services, 1)
	assert.Equal(t, StructuredDetails{DayFields: []string{"Thursday"}}, records[4].Services[0].Details)
}

func TestDecodeRecordsKeepsKeyOrder(t *testing.T) {
	payload := `[{"Results": {"zeta": "Monday", "alpha": "Tuesday", "mid": "Wednesday"}}]`

	records, err := DecodeRecords([]byte(payload))
	require.NoError(t, err)
	entries, err := Normalize(records, wednesday)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "zeta", entries[0].Service)
	assert.Equal(t, "alpha", entries[1].Service)
	assert.Equal(t, "mid", entries[2].Service)
}

func TestDecodeRecordsNonArrayRoot(t *testing.T) {
	records, err := DecodeRecords([]byte(`{"Results": {"Refuse": "Monday"}}`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeRecordsInvalidJSON(t *testing.T) {
	_, err := DecodeRecords([]byte(`<html>Service unavailable</html>`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = DecodeRecords(nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeAndNormalizeSample(t *testing.T) {
	records, err := DecodeRecords([]byte(samplePayload))
	require.NoError(t, err)

	entries, err := Normalize(records, wednesday)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, "Refuse Collection", entries[0].Service)
	assert.Equal(t, "2025-03-03", entries[0].DateString())

	assert.Equal(t, "Recycling", entries[1].Service)
	assert.Equal(t, "Route A", entries[1].Day)
	assert.Equal(t, "See leaflet", entries[1].Message)
	assert.False(t, entries[1].HasDate())

	assert.Equal(t, "Garden Waste", entries[2].Service)
	assert.Equal(t, "2025-06-10", entries[2].DateString())

	assert.Equal(t, "Clinical", entries[3].Service)
	assert.Equal(t, "Friday", entries[3].Day)
	assert.Equal(t, "2025-06-06", entries[3].DateString())

	assert.Equal(t, "Food Waste", entries[4].Service)
	assert.Equal(t, "2025-06-05", entries[4].DateString())
}
