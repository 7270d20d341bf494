// Package boltdb is the reference Repository implementation (§6), grounded
// on the teacher's chain/boltdb/store.go (bolt.DB opened once, one bucket
// per table, JSON-encoded rows, a single mutex around writes).
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dal"
)

// FileName is the bolt database file name written inside the configured
// data directory.
const FileName = "randcast-node.db"

// OpenPerm is the permission used to open/create the database file.
const OpenPerm = 0o660

var (
	nodeBucket             = []byte("node_info")
	groupBucket            = []byte("group_info")
	randomnessTaskBucket   = []byte("randomness_task")
	groupIndexBucket       = []byte("randomness_task_by_group_index")
	randomnessResultPrefix = "randomness_result_chain_"
)

// Store implements dal.Repository on top of go.etcd.io/bbolt.
type Store struct {
	mu  sync.Mutex
	db  *bolt.DB
	log log.Logger
}

// Open creates (or reuses) the bolt database under folder and ensures every
// fixed bucket exists.
func Open(folder string, l log.Logger) (*Store, error) {
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", folder, err)
	}

	dbPath := path.Join(folder, FileName)
	db, err := bolt.Open(dbPath, OpenPerm, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{nodeBucket, groupBucket, randomnessTaskBucket, groupIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("initializing buckets: %w", err)
	}

	return &Store{db: db, log: l}, nil
}

var _ dal.Repository = (*Store)(nil)

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveNode(_ context.Context, n *core.Node) error {
	return s.put(nodeBucket, n.Address[:], n)
}

func (s *Store) GetNode(_ context.Context, addr core.Address) (*core.Node, error) {
	var n core.Node
	if err := s.get(nodeBucket, addr[:], &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) SaveGroup(_ context.Context, g *core.Group) error {
	return s.put(groupBucket, indexKey(g.Index), g)
}

func (s *Store) GetGroup(_ context.Context, index uint32) (*core.Group, error) {
	var g core.Group
	if err := s.get(groupBucket, indexKey(index), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGroups(_ context.Context) ([]*core.Group, error) {
	var out []*core.Group
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(groupBucket).ForEach(func(_, v []byte) error {
			var g core.Group
			if err := json.Unmarshal(v, &g); err != nil {
				return err
			}
			out = append(out, &g)
			return nil
		})
	})
	return out, err
}

func (s *Store) SaveRandomnessTask(_ context.Context, t *core.RandomnessTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := tx.Bucket(randomnessTaskBucket).Put(t.RequestID[:], data); err != nil {
			return err
		}
		// group_index index: append request id under a per-group sub-key.
		groupKey := append(indexKey(t.GroupIndex), t.RequestID[:]...)
		return tx.Bucket(groupIndexBucket).Put(groupKey, t.RequestID[:])
	})
}

func (s *Store) GetRandomnessTask(_ context.Context, id core.RequestID) (*core.RandomnessTask, error) {
	var t core.RandomnessTask
	if err := s.get(randomnessTaskBucket, id[:], &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListRandomnessTasksByGroup(_ context.Context, groupIndex uint32) ([]*core.RandomnessTask, error) {
	prefix := indexKey(groupIndex)
	var out []*core.RandomnessTask

	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(groupIndexBucket)
		tasks := tx.Bucket(randomnessTaskBucket)
		c := idx.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			raw := tasks.Get(v)
			if raw == nil {
				continue
			}
			var t core.RandomnessTask
			if err := json.Unmarshal(raw, &t); err != nil {
				return err
			}
			out = append(out, &t)
		}
		return nil
	})
	return out, err
}

func (s *Store) SaveRandomnessResult(_ context.Context, chainID uint32, r *core.RandomnessResultCache) error {
	return s.put(resultBucketName(chainID), r.RequestID[:], r)
}

func (s *Store) GetRandomnessResult(_ context.Context, chainID uint32, id core.RequestID) (*core.RandomnessResultCache, error) {
	var r core.RandomnessResultCache
	if err := s.get(resultBucketName(chainID), id[:], &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) DeleteRandomnessResult(_ context.Context, chainID uint32, id core.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(resultBucketName(chainID))
		if b == nil {
			return nil
		}
		return b.Delete(id[:])
	})
}

func resultBucketName(chainID uint32) []byte {
	return []byte(fmt.Sprintf("%s%d", randomnessResultPrefix, chainID))
}

func (s *Store) put(bucket, key []byte, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *Store) get(bucket, key []byte, v interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("%w: bucket %s", core.ErrTaskNotFound, bucket)
		}
		raw := b.Get(key)
		if raw == nil {
			return fmt.Errorf("%w: key %x", core.ErrTaskNotFound, key)
		}
		return json.Unmarshal(raw, v)
	})
}

func indexKey(index uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, index)
	return buf
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
