package storage

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/hailam/gomokuplay/internal/pattern"
)

// Pattern memo entries live under this prefix. Key: prefix + 8-byte
// big-endian pattern.Key. Value: 8-byte score + 1 flag byte.
const patternPrefix = "pat/"

const patternValueLen = 9

// patternWeightsKey holds the pattern.Weights fingerprint the stored entries
// were scored with.
const patternWeightsKey = "pat-weights"

func patternKey(k pattern.Key) []byte {
	b := make([]byte, len(patternPrefix)+8)
	copy(b, patternPrefix)
	binary.BigEndian.PutUint64(b[len(patternPrefix):], uint64(k))
	return b
}

func encodePattern(e pattern.LineEval) []byte {
	b := make([]byte, patternValueLen)
	binary.BigEndian.PutUint64(b, uint64(e.Score))
	b[8] = byte(e.Flags)
	return b
}

func decodePattern(b []byte) (pattern.LineEval, error) {
	if len(b) != patternValueLen {
		return pattern.LineEval{}, errors.Errorf("pattern value has %d bytes", len(b))
	}
	return pattern.LineEval{
		Score: int64(binary.BigEndian.Uint64(b)),
		Flags: pattern.Flags(b[8]),
	}, nil
}

// SavePatterns writes every entry of the memo table, scored under w.
// Entries stored under other or unknown weights are dropped first. Existing
// entries are overwritten with the same values, so saving is idempotent.
func (s *Storage) SavePatterns(table *pattern.Table, w pattern.Weights) (int, error) {
	fp := w.Fingerprint()
	stored, ok, err := s.patternFingerprint()
	if err != nil {
		return 0, errors.Wrap(err, "save patterns")
	}
	if !ok || stored != fp {
		if err := s.db.DropPrefix([]byte(patternPrefix)); err != nil {
			return 0, errors.Wrap(err, "drop stale patterns")
		}
		if ok {
			log.Info().Msg("patterns-stale-dropped")
		}
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	var header [8]byte
	binary.BigEndian.PutUint64(header[:], fp)
	if err := wb.Set([]byte(patternWeightsKey), header[:]); err != nil {
		return 0, errors.Wrap(err, "save patterns")
	}

	n := 0
	var werr error
	table.Range(func(k pattern.Key, e pattern.LineEval) bool {
		if werr = wb.Set(patternKey(k), encodePattern(e)); werr != nil {
			return false
		}
		n++
		return true
	})
	if werr != nil {
		return 0, errors.Wrap(werr, "save patterns")
	}
	if err := wb.Flush(); err != nil {
		return 0, errors.Wrap(err, "save patterns")
	}
	log.Debug().Int("entries", n).Msg("patterns-saved")
	return n, nil
}

// patternFingerprint returns the stored weights fingerprint; ok is false
// when none was saved.
func (s *Storage) patternFingerprint() (fp uint64, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(patternWeightsKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return nil
			}
			fp, ok = binary.BigEndian.Uint64(val), true
			return nil
		})
	})
	return fp, ok, err
}

// LoadPatterns merges every stored entry into cache (insert-or-ignore) and
// returns the number read. Nothing is loaded when the entries were scored
// under weights other than w. Corrupt values are skipped with a warning.
func (s *Storage) LoadPatterns(cache pattern.Cache, w pattern.Weights) (int, error) {
	stored, ok, err := s.patternFingerprint()
	if err != nil {
		return 0, errors.Wrap(err, "load patterns")
	}
	if !ok || stored != w.Fingerprint() {
		log.Info().Bool("has_fingerprint", ok).Msg("patterns-stale-skipped")
		return 0, nil
	}

	n := 0
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(patternPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != len(patternPrefix)+8 {
				log.Warn().Bytes("key", key).Msg("pattern-key-skipped")
				continue
			}
			k := pattern.Key(binary.BigEndian.Uint64(key[len(patternPrefix):]))
			err := item.Value(func(val []byte) error {
				e, err := decodePattern(val)
				if err != nil {
					return err
				}
				cache.Put(k, e)
				n++
				return nil
			})
			if err != nil {
				log.Warn().Err(err).Msg("pattern-value-skipped")
			}
		}
		return nil
	})
	if err != nil {
		return n, errors.Wrap(err, "load patterns")
	}
	log.Debug().Int("entries", n).Msg("patterns-loaded")
	return n, nil
}

// PatternCount returns the number of stored pattern entries.
func (s *Storage) PatternCount() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(patternPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
