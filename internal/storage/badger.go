package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
	"meshpipe/internal/profiling"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const (
	recordVersion = 1
	headerSize    = 1 + 2 + 8 // version, height, last-modified unix seconds
)

var (
	ErrClosed        = errors.New("storage: closed")
	ErrCorruptRecord = errors.New("storage: corrupt chunk record")
)

// BadgerSaver stores zstd-compressed chunk blocks in BadgerDB.
type BadgerSaver struct {
	db    *badger.DB
	enc   *zstd.Encoder
	dec   *zstd.Decoder
	stats *profiling.Stats
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database at path. An empty path keeps everything in
// memory, which is what tests and throwaway worlds use.
func Open(path string, stats *profiling.Stats, log *zap.Logger) (*BadgerSaver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &BadgerSaver{db: db, enc: enc, dec: dec, stats: stats, log: log.Named("storage")}, nil
}

func chunkKey(c chunk.Coord) []byte {
	return []byte(fmt.Sprintf("chunk:%d:%d", c.X, c.Z))
}

// SaveChunk writes the snapshot's blocks under its coordinate.
func (s *BadgerSaver) SaveChunk(ctx context.Context, snap *chunk.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	meta := snap.Metadata()
	raw := snap.Encode()
	record := make([]byte, headerSize, headerSize+len(raw)/4)
	record[0] = recordVersion
	binary.LittleEndian.PutUint16(record[1:], uint16(meta.Height))
	binary.LittleEndian.PutUint64(record[3:], uint64(meta.LastModified.Unix()))
	record = s.enc.EncodeAll(raw, record)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(meta.Coord), record)
	})
	if err != nil {
		return fmt.Errorf("save chunk %s: %w", meta.Coord, err)
	}
	s.stats.AddBytes(profiling.OpSerialization, len(record))
	s.log.Debug("chunk saved",
		zap.Stringer("coord", meta.Coord),
		zap.Int("raw", len(raw)),
		zap.Int("stored", len(record)))
	return nil
}

// LoadChunk returns the saved blocks for coord, or nil when none were saved.
func (s *BadgerSaver) LoadChunk(ctx context.Context, coord chunk.Coord) ([]block.Type, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var record []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(coord))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chunk %s: %w", coord, err)
	}

	blocks, _, err := s.decode(record)
	if err != nil {
		return nil, fmt.Errorf("load chunk %s: %w", coord, err)
	}
	return blocks, nil
}

// Modified reports when the saved copy of coord was last edited.
func (s *BadgerSaver) Modified(coord chunk.Coord) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return time.Time{}, false, ErrClosed
	}
	var ts time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(coord))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) < headerSize {
				return ErrCorruptRecord
			}
			ts = time.Unix(int64(binary.LittleEndian.Uint64(val[3:])), 0)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

func (s *BadgerSaver) decode(record []byte) ([]block.Type, int, error) {
	if len(record) < headerSize || record[0] != recordVersion {
		return nil, 0, ErrCorruptRecord
	}
	height := int(binary.LittleEndian.Uint16(record[1:]))
	raw, err := s.dec.DecodeAll(record[headerSize:], nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if len(raw) != 2*chunk.Width*height*chunk.Depth {
		return nil, 0, fmt.Errorf("%w: %d bytes for height %d", ErrCorruptRecord, len(raw), height)
	}
	return chunk.DecodeBlocks(raw), height, nil
}

// Delete drops the saved copy of coord.
func (s *BadgerSaver) Delete(coord chunk.Coord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chunkKey(coord))
	})
}

// Close flushes and closes the database. Further calls fail with ErrClosed.
func (s *BadgerSaver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}
