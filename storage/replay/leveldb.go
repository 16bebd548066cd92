package replay

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const claimKeyPrefix = "replay:"

// LevelDBStore is a durable Store backed by LevelDB. A process-wide mutex
// serialises the read-check-write so concurrent claims within the process see
// exactly-one semantics; LevelDB's single-writer lock extends that to one
// process per data directory.
type LevelDBStore struct {
	mu    sync.Mutex
	db    *leveldb.DB
	nowFn func() time.Time
}

// OpenLevelDBStore opens (or creates) the replay database at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("replay: leveldb path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("replay: resolve path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("replay: open leveldb: %w", err)
	}
	return &LevelDBStore{db: db, nowFn: time.Now}, nil
}

// Close releases the underlying database.
func (s *LevelDBStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetNowFunc overrides the time source, for tests.
func (s *LevelDBStore) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.mu.Lock()
	s.nowFn = now
	s.mu.Unlock()
}

func claimKey(mandateID string) []byte {
	return []byte(claimKeyPrefix + mandateID)
}

func encodeExpiry(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeExpiry(raw []byte) (time.Time, bool) {
	if len(raw) != 8 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(raw))), true
}

// Claim implements Store.
func (s *LevelDBStore) Claim(ctx context.Context, mandateID string, ttl time.Duration) (bool, error) {
	id := strings.TrimSpace(mandateID)
	if id == "" {
		return false, fmt.Errorf("replay: mandate id required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("replay: ttl must be positive")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	raw, err := s.db.Get(claimKey(id), nil)
	switch {
	case err == nil:
		if expiry, ok := decodeExpiry(raw); ok && now.Before(expiry) {
			return false, nil
		}
	case err != leveldb.ErrNotFound:
		return false, fmt.Errorf("replay: read claim: %w", err)
	}
	if err := s.db.Put(claimKey(id), encodeExpiry(now.Add(ttl)), nil); err != nil {
		return false, fmt.Errorf("replay: write claim: %w", err)
	}
	return true, nil
}

// IsClaimed implements Store.
func (s *LevelDBStore) IsClaimed(ctx context.Context, mandateID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.db.Get(claimKey(strings.TrimSpace(mandateID)), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("replay: read claim: %w", err)
	}
	expiry, ok := decodeExpiry(raw)
	return ok && s.nowFn().Before(expiry), nil
}

// GC removes expired claims and returns how many were deleted.
func (s *LevelDBStore) GC() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	iter := s.db.NewIterator(util.BytesPrefix([]byte(claimKeyPrefix)), nil)
	defer iter.Release()
	removed := 0
	batch := new(leveldb.Batch)
	for iter.Next() {
		if expiry, ok := decodeExpiry(iter.Value()); !ok || !now.Before(expiry) {
			batch.Delete(append([]byte(nil), iter.Key()...))
			removed++
		}
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("replay: gc scan: %w", err)
	}
	if removed > 0 {
		if err := s.db.Write(batch, nil); err != nil {
			return 0, fmt.Errorf("replay: gc delete: %w", err)
		}
	}
	return removed, nil
}
