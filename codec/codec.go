// Package codec centralizes metadata encoding.
//
// The store file does not record which codec wrote a payload. Codec selection
// is therefore fixed for the lifetime of a store: opening a store with a
// different codec than the one that wrote it makes existing metadata
// undecodable.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
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
	case "go-json+lz4":
		return NewCompressed(GoJSON{}, CompressionLZ4), true
	case "go-json+zstd":
		return NewCompressed(GoJSON{}, CompressionZSTD), true
	default:
		return nil, false
	}
}
