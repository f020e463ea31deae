package codec

import (
	"bytes"
	"encoding/json"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// HTML escaping is off so tokens, URLs and descriptions go out verbatim.
type JSONCodec struct {
	Indent string // Non-empty for human-readable output
}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if c.Indent != "" {
		enc.SetIndent("", c.Indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder terminates each value with a newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	if c.Indent != "" {
		return CodecTypeJSONIndent
	}
	return CodecTypeJSON
}
