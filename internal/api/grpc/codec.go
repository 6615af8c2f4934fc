package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName передается клиентом в content-type: application/grpc+json
const codecName = "json"

// Codec кодек сообщений NotesService. Сообщения - обычные Go структуры с json тегами.
var Codec encoding.Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
