package eventbus

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// EncodingZstd - значение Metadata["encoding"] для сжатого payload
const EncodingZstd = "zstd"

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// codecs лениво создаёт общие кодеки: EncodeAll/DecodeAll безопасны для
// параллельного вызова
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// compressPayload сжимает данные zstd
func compressPayload(data []byte) ([]byte, error) {
	enc, _, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// decompressPayload распаковывает данные zstd
func decompressPayload(data []byte) ([]byte, error) {
	_, dec, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// PlainPayload возвращает полезную нагрузку события, распакованную при необходимости
func (ev *Envelope) PlainPayload() ([]byte, error) {
	switch enc := ev.Metadata["encoding"]; enc {
	case "", "json":
		return ev.Payload, nil
	case EncodingZstd:
		return decompressPayload(ev.Payload)
	default:
		return nil, fmt.Errorf("eventbus: unknown payload encoding %q", enc)
	}
}
