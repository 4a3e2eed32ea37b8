package shardcache

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
)

// DiskCache holds materialized partitions on local disk. Reads of a
// partition that was never written return an error matching fs.ErrNotExist.
type DiskCache interface {
	ReadShard(id string) ([]index.TermEntry, error)
	WriteShard(id string, entries []index.TermEntry) error
	ReadContent() ([]ingestion.Document, error)
	WriteContent(docs []ingestion.Document) error
	Remove(id string) error
}

// Dir is the segment-file DiskCache rooted at one directory.
type Dir struct {
	writer *segment.Writer
}

func NewDir(dir string, compression segment.Compression) *Dir {
	return &Dir{writer: segment.NewWriter(dir, compression)}
}

func (d *Dir) ReadShard(id string) ([]index.TermEntry, error) {
	return segment.ReadShard(segment.ShardPath(d.writer.Dir(), id))
}

func (d *Dir) WriteShard(id string, entries []index.TermEntry) error {
	_, err := d.writer.WriteShard(id, entries)
	return err
}

func (d *Dir) ReadContent() ([]ingestion.Document, error) {
	return segment.ReadContent(segment.ContentPath(d.writer.Dir()))
}

func (d *Dir) WriteContent(docs []ingestion.Document) error {
	_, err := d.writer.WriteContent(docs)
	return err
}

// Remove deletes the file for partition id, or the content file when id is
// ContentPartition. A missing file is not an error.
func (d *Dir) Remove(id string) error {
	path := segment.ShardPath(d.writer.Dir(), id)
	if id == ContentPartition {
		path = segment.ContentPath(d.writer.Dir())
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache file %s: %w", path, err)
	}
	return nil
}
