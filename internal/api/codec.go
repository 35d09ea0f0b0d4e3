package api

import (
	"encoding/base64"
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype the vault messages travel in.
const CodecName = "json"

// uploadEnvelope bounds everything in an encoded UploadRequest besides the
// three byte fields: keys, punctuation and a filename and content type of up
// to 255 bytes each, even if every byte needs a \u escape.
const uploadEnvelope = 4096

// MaxUploadMessageSize returns the largest encoded UploadRequest carrying
// documents of maxDocument bytes and a password of maxPassword bytes. Byte
// fields travel as base64.
func MaxUploadMessageSize(maxDocument, maxPassword int) int {
	enc := base64.StdEncoding
	return 2*enc.EncodedLen(maxDocument) + enc.EncodedLen(maxPassword) + uploadEnvelope
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
