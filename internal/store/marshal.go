package store

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/text/unicode/norm"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode decodes any-typed maps as map[string]any so decoded values can
// be rendered as JSON.
var decMode cbor.DecMode

func init() {
	var err error

	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err = opts.EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// marshalValue encodes a log value to CBOR.
func marshalValue(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

// unmarshalValue decodes a CBOR log value into its generic form.
func unmarshalValue(data []byte) (any, error) {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// diagnose renders a CBOR blob in diagnostic notation (RFC 8949 §8).
func diagnose(data []byte) string {
	s, err := cbor.Diagnose(data)
	if err != nil {
		return fmt.Sprintf("<invalid cbor: %v>", err)
	}
	return s
}

// normalizeName returns the NFC form of a group or field name so that
// visually identical names compare equal in queries.
func normalizeName(s string) string {
	return norm.NFC.String(s)
}
