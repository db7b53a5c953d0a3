// Package codec centralizes how document records and manifests are encoded.
//
// Persisted files are self-describing: the manifest stores the codec name
// used at save time, and loading selects the codec by that name. Changing
// the default codec therefore never breaks existing data.
package codec

// Codec encodes and decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
