// Package codec serializes envelopes for the wire.
//
// The service only speaks JSON, so there is one wire codec; the indented
// variant exists for human-facing output such as the command line tool.
package codec

import (
	"github.com/juju/errors"

	"ujs-rpc/message"
)

type CodecType byte

const (
	CodecTypeJSON       CodecType = 0
	CodecTypeJSONIndent CodecType = 1
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSONIndent {
		return &JSONCodec{Indent: "  "}
	}

	return &JSONCodec{}
}

// EncodeRequest serializes a request envelope.
func EncodeRequest(c Codec, req *message.Request) ([]byte, error) {
	body, err := c.Encode(req)
	if err != nil {
		return nil, errors.Annotatef(err, "encoding %s request", req.Method)
	}
	return body, nil
}

// DecodeResponse parses a response body. The body is treated as opaque text
// until here, so anything that is not a JSON object fails.
func DecodeResponse(c Codec, body []byte) (*message.Response, error) {
	var resp message.Response
	if err := c.Decode(body, &resp); err != nil {
		return nil, errors.Trace(err)
	}
	return &resp, nil
}
