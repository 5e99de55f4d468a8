package schedule

import (
	"errors"

	"github.com/tidwall/gjson"
)

// Upstream field names inside a collection group payload.
const (
	ResultsKey  = "Results"
	CatchAllKey = "_"
	InfoKey     = "Info"
)

// AltDayKeys lists, in priority order, the spellings upstream uses for the
// "collection day" or "collection route" field of a structured detail.
var AltDayKeys = []string{"collectday", "collectionroute", "CollectionDay", "collectionday"}

// ErrMalformedPayload is returned by DecodeRecords when the payload is not
// JSON at all.
var ErrMalformedPayload = errors.New("schedule: payload is not valid JSON")

// RawRecord is one upstream collection group. Services is nil when the group
// carried no usable Results mapping.
type RawRecord struct {
	Services []Service
}

// Service is one (service key, details) pair in upstream order.
type Service struct {
	Key     string
	Details Details
}

// Details is the closed set of shapes a service value can take:
// TextDetails, StructuredDetails or OpaqueDetails.
type Details interface {
	isDetails()
}

// TextDetails is a service value that is a bare free-text string.
type TextDetails string

// StructuredDetails is a service value that is a mapping. Empty strings
// stand for absent or non-string fields.
type StructuredDetails struct {
	// CatchAll is the generic free-text field.
	CatchAll string
	// DayFields holds the string values of AltDayKeys that were present,
	// in AltDayKeys order.
	DayFields []string
	Info      string
}

// OpaqueDetails is any other shape (number, list, null). It never yields an
// entry.
type OpaqueDetails struct{}

func (TextDetails) isDetails()       {}
func (StructuredDetails) isDetails() {}
func (OpaqueDetails) isDetails()     {}

// DecodeRecords turns a waste-info payload into raw records, keeping the
// key order of every JSON object. Shape irregularities never fail; only
// bytes that are not JSON return ErrMalformedPayload.
func DecodeRecords(payload []byte) ([]RawRecord, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrMalformedPayload
	}
	root := gjson.ParseBytes(payload)
	if !root.IsArray() {
		return []RawRecord{}, nil
	}

	records := make([]RawRecord, 0)
	root.ForEach(func(_, item gjson.Result) bool {
		records = append(records, decodeRecord(item))
		return true
	})
	return records, nil
}

func decodeRecord(item gjson.Result) RawRecord {
	if !item.IsObject() {
		return RawRecord{}
	}
	results, ok := field(item, ResultsKey)
	if !ok || !results.IsObject() {
		return RawRecord{}
	}

	var rec RawRecord
	results.ForEach(func(key, value gjson.Result) bool {
		rec.Services = append(rec.Services, Service{
			Key:     key.String(),
			Details: decodeDetails(value),
		})
		return true
	})
	return rec
}

func decodeDetails(v gjson.Result) Details {
	switch {
	case v.Type == gjson.String:
		return TextDetails(v.Str)
	case v.IsObject():
		fields := stringFields(v)
		sd := StructuredDetails{
			CatchAll: fields[CatchAllKey],
			Info:     fields[InfoKey],
		}
		for _, k := range AltDayKeys {
			if s, ok := fields[k]; ok {
				sd.DayFields = append(sd.DayFields, s)
			}
		}
		return sd
	default:
		return OpaqueDetails{}
	}
}

// stringFields collects the string-valued members of an object. A repeated
// key keeps its last value.
func stringFields(obj gjson.Result) map[string]string {
	out := make(map[string]string)
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			out[key.String()] = value.Str
		} else {
			delete(out, key.String())
		}
		return true
	})
	return out
}

// field looks up an exact member name without gjson path syntax, so keys
// containing dots or wildcards are safe.
func field(obj gjson.Result, name string) (gjson.Result, bool) {
	var (
		found gjson.Result
		ok    bool
	)
	obj.ForEach(func(key, value gjson.Result) bool {
		if key.String() == name {
			found, ok = value, true
		}
		return true
	})
	return found, ok
}
