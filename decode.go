package meadow

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compression names accepted in LayerDefinition.Compression.
const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZlib = "zlib"
	CompressionZstd = "zstd"
)

// DecodeLayer returns the layer's GIDs as a flat row-major slice of length
// Width*Height. Pre-decoded Tiles are validated and returned as is.
func DecodeLayer(layer *LayerDefinition) ([]uint32, error) {
	want := layer.Width * layer.Height
	if len(layer.Tiles) > 0 {
		if len(layer.Tiles) != want {
			return nil, fmt.Errorf("meadow: layer %q: %w: got %d tiles, want %d",
				layer.ID, ErrTileDataLength, len(layer.Tiles), want)
		}
		return layer.Tiles, nil
	}
	if strings.TrimSpace(layer.TileData) == "" {
		return nil, fmt.Errorf("meadow: layer %q: %w", layer.ID, ErrTileDataEmpty)
	}
	gids, err := DecodeTileData(layer.TileData, layer.Compression)
	if err != nil {
		return nil, fmt.Errorf("meadow: layer %q: %w", layer.ID, err)
	}
	if len(gids) != want {
		return nil, fmt.Errorf("meadow: layer %q: %w: got %d tiles, want %d",
			layer.ID, ErrTileDataLength, len(gids), want)
	}
	return gids, nil
}

// DecodeTileData decodes base64 tile data with the given compression into
// little-endian uint32 GIDs.
func DecodeTileData(data, compression string) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	raw, err = decompress(raw, compression)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of GIDs", ErrTileDataLength, len(raw))
	}
	gids := make([]uint32, len(raw)/4)
	for i := range gids {
		gids[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return gids, nil
}

// EncodeTileData is the inverse of DecodeTileData. Used by generators and
// tests to author layer data.
func EncodeTileData(gids []uint32, compression string) (string, error) {
	raw := make([]byte, len(gids)*4)
	for i, g := range gids {
		binary.LittleEndian.PutUint32(raw[i*4:], g)
	}
	var buf bytes.Buffer
	switch strings.ToLower(compression) {
	case CompressionNone:
		buf.Write(raw)
	case CompressionGzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return "", fmt.Errorf("gzip: %w", err)
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("gzip: %w", err)
		}
	case CompressionZlib:
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return "", fmt.Errorf("zlib: %w", err)
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("zlib: %w", err)
		}
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return "", fmt.Errorf("zstd: %w", err)
		}
		buf.Write(enc.EncodeAll(raw, nil))
		_ = enc.Close()
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decompress(raw []byte, compression string) ([]byte, error) {
	switch strings.ToLower(compression) {
	case CompressionNone:
		return raw, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return out, nil
	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		return out, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}
}
