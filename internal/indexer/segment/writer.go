// Package segment reads and writes the materialized cache files the shard
// cache keeps on local disk: one per term partition and one for the content
// store. Each file is a fixed header followed by a JSON payload, optionally
// compressed, guarded by a CRC32 of the stored bytes.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
)

const (
	MagicBytes    uint32 = 0x54534846 // "TSHF"
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	fileExt              = ".tsc"
)

// Kind says what a cache file holds.
type Kind uint8

const (
	KindShard   Kind = 1
	KindContent Kind = 2
)

// Header is the fixed prefix of every cache file.
//
//	0:4   magic           4:8   version
//	8     kind            9     compression
//	12:16 entry count     16:24 created (unix nanos)
//	24:32 payload size    32:36 payload crc32
//	36:40 name length     40:64 name
type Header struct {
	Magic       uint32
	Version     uint32
	Kind        Kind
	Compression Compression
	EntryCount  uint32
	CreatedAt   int64
	PayloadSize int64
	Checksum    uint32
	Name        string
}

const maxNameLen = HeaderSize - 40

func (h Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	buf[8] = byte(h.Kind)
	buf[9] = byte(h.Compression)
	binary.LittleEndian.PutUint32(buf[12:16], h.EntryCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.PayloadSize))
	binary.LittleEndian.PutUint32(buf[32:36], h.Checksum)
	binary.LittleEndian.PutUint32(buf[36:40], uint32(len(h.Name)))
	copy(buf[40:], h.Name)
	return buf
}

// ShardPath is where partition id is cached under dir.
func ShardPath(dir, id string) string {
	return filepath.Join(dir, "shard_"+id+fileExt)
}

// ContentPath is where the content store is cached under dir.
func ContentPath(dir string) string {
	return filepath.Join(dir, "content"+fileExt)
}

// Writer materializes cache files into one directory.
type Writer struct {
	dir         string
	compression Compression
}

func NewWriter(dir string, compression Compression) *Writer {
	return &Writer{dir: dir, compression: compression}
}

func (w *Writer) Dir() string { return w.dir }

// WriteShard caches a partition's rows and returns the file path.
func (w *Writer) WriteShard(id string, entries []index.TermEntry) (string, error) {
	path := ShardPath(w.dir, id)
	return path, w.write(path, KindShard, id, len(entries), entries)
}

// WriteContent caches the content store and returns the file path.
func (w *Writer) WriteContent(docs []ingestion.Document) (string, error) {
	path := ContentPath(w.dir)
	return path, w.write(path, KindContent, "content", len(docs), docs)
}

// write goes through a temp file and a rename so readers never observe a
// partial file.
func (w *Writer) write(path string, kind Kind, name string, count int, payload any) error {
	if len(name) > maxNameLen {
		return fmt.Errorf("cache file name %q longer than %d bytes", name, maxNameLen)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", name, err)
	}
	block, err := compressBlock(raw, w.compression)
	if err != nil {
		return fmt.Errorf("compressing %s payload: %w", name, err)
	}
	header := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		Kind:        kind,
		Compression: w.compression,
		EntryCount:  uint32(count),
		CreatedAt:   time.Now().UnixNano(),
		PayloadSize: int64(len(block)),
		Checksum:    crc32.ChecksumIEEE(block),
		Name:        name,
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	f, err := os.CreateTemp(w.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := f.Name()
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}
	if _, err := f.Write(header.marshal()); err != nil {
		cleanup()
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(block); err != nil {
		cleanup()
		return fmt.Errorf("writing payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}
