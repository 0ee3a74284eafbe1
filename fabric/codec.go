package fabric

import "encoding/json"

// Encode marshals v to its wire form. Values travel as JSON scalars
// and arrays; Go emits float64 in shortest round-trip form, so finite
// values survive encode/decode bit-exactly.
func Encode[T Value](v T) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals data into T, falling back to def when the payload
// is empty or does not parse as T. Reads never fail: a malformed
// payload reads the same as an absent one.
func Decode[T Value](data []byte, def T) T {
	if len(data) == 0 {
		return def
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def
	}
	return v
}
