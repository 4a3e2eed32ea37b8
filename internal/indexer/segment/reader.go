package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
)

// ErrCorrupt marks a cache file that exists but cannot be trusted. Callers
// treat it like a missing file and rematerialize.
var ErrCorrupt = errors.New("corrupt cache file")

// ReadHeader parses and checks the fixed header.
func ReadHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrCorrupt, len(buf), HeaderSize)
	}
	h := Header{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint32(buf[4:8]),
		Kind:        Kind(buf[8]),
		Compression: Compression(buf[9]),
		EntryCount:  binary.LittleEndian.Uint32(buf[12:16]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(buf[16:24])),
		PayloadSize: int64(binary.LittleEndian.Uint64(buf[24:32])),
		Checksum:    binary.LittleEndian.Uint32(buf[32:36]),
	}
	if h.Magic != MagicBytes {
		return h, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, h.Magic)
	}
	if h.Version != FormatVersion {
		return h, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	nameLen := binary.LittleEndian.Uint32(buf[36:40])
	if nameLen > uint32(maxNameLen) {
		return h, fmt.Errorf("%w: name length %d", ErrCorrupt, nameLen)
	}
	h.Name = string(buf[40 : 40+nameLen])
	return h, nil
}

// ReadShard loads a partition's rows from path. A missing file yields an
// error matching fs.ErrNotExist.
func ReadShard(path string) ([]index.TermEntry, error) {
	var entries []index.TermEntry
	if _, err := read(path, KindShard, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadContent loads the content store from path.
func ReadContent(path string) ([]ingestion.Document, error) {
	var docs []ingestion.Document
	if _, err := read(path, KindContent, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func read(path string, kind Kind, into any) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, fmt.Errorf("reading cache file: %w", err)
	}
	h, err := ReadHeader(data)
	if err != nil {
		return h, fmt.Errorf("%s: %w", path, err)
	}
	if h.Kind != kind {
		return h, fmt.Errorf("%s: %w: kind %d, want %d", path, ErrCorrupt, h.Kind, kind)
	}
	block := data[HeaderSize:]
	if int64(len(block)) != h.PayloadSize {
		return h, fmt.Errorf("%s: %w: payload is %d bytes, header says %d", path, ErrCorrupt, len(block), h.PayloadSize)
	}
	if crc32.ChecksumIEEE(block) != h.Checksum {
		return h, fmt.Errorf("%s: %w: checksum mismatch", path, ErrCorrupt)
	}
	raw, err := decompressBlock(block, h.Compression)
	if err != nil {
		return h, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return h, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}
	return h, nil
}
