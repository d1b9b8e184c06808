package accounts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	log "github.com/sirupsen/logrus"
)

var (
	ErrDuplicateID   = errors.New("account already exists")
	ErrInvalidRecord = errors.New("id, name and token are required")
	ErrStorage       = errors.New("credential storage failure")
)

// Store keeps cloudflare credentials in memory, backed by a JSON file that is
// fully rewritten (atomically) on every mutation. One mutex serializes the
// modify-and-persist sequence of Add and Remove.
type Store struct {
	path  string
	mutex sync.RWMutex
	byID  map[string]Record
	order []string

	// injectable for tests
	now func() time.Time
}

// NewStore loads the store from path. A missing, unreadable or corrupt file
// results in an empty store, so the service stays bootable without credentials.
func NewStore(path string) *Store {
	s := &Store{
		path: path,
		byID: make(map[string]Record),
		now:  time.Now,
	}

	records, err := loadRecords(path)
	if err != nil {
		log.Errorf("accounts store: failed to load [%s], starting empty: %s", path, err)
		return s
	}

	for _, r := range records {
		if _, exists := s.byID[r.ID]; exists || r.ID == "" {
			log.Warnf("accounts store: skipping invalid or duplicate record [%s]", r.ID)
			continue
		}
		s.byID[r.ID] = r
		s.order = append(s.order, r.ID)
	}

	log.Debugf("accounts store: loaded %d accounts from [%s]", len(s.order), path)
	return s
}

func loadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	// current format: array in insertion order
	if data[0] == '[' {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("unmarshal accounts: %w", err)
		}
		return records, nil
	}

	// legacy format: object keyed by account id
	var byID map[string]Record
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("unmarshal legacy accounts: %w", err)
	}
	records := make([]Record, 0, len(byID))
	for id, r := range byID {
		if r.ID == "" {
			r.ID = id
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// persist writes the whole store. Caller must hold the write lock.
func (s *Store) persist() error {
	records := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.byID[id])
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal accounts: %s", ErrStorage, err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write %s: %s", ErrStorage, s.path, err)
	}

	return nil
}

// Add persists a new credential. An existing id is rejected with ErrDuplicateID.
// When the file write fails, the record is not kept.
func (s *Store) Add(id, name, token string) (Record, error) {
	if id == "" || name == "" || token == "" {
		return Record{}, ErrInvalidRecord
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.byID[id]; exists {
		return Record{}, ErrDuplicateID
	}

	record := Record{
		ID:        id,
		Name:      name,
		Token:     token,
		CreatedAt: s.now().UTC(),
	}
	s.byID[id] = record
	s.order = append(s.order, id)

	if err := s.persist(); err != nil {
		delete(s.byID, id)
		s.order = s.order[:len(s.order)-1]
		return Record{}, err
	}

	return record, nil
}

// Remove deletes the credential with the given id. It reports false, with no
// error, when there is no such id.
func (s *Store) Remove(id string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.byID[id]
	if !exists {
		return false, nil
	}

	idx := slices.Index(s.order, id)
	delete(s.byID, id)
	s.order = slices.Delete(s.order, idx, idx+1)

	if err := s.persist(); err != nil {
		s.byID[id] = record
		s.order = slices.Insert(s.order, idx, id)
		return false, err
	}

	return true, nil
}

// Get returns the full record, token included. Only for in-process use.
func (s *Store) Get(id string) (Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	r, ok := s.byID[id]
	return r, ok
}

// First returns the oldest stored record.
func (s *Store) First() (Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if len(s.order) == 0 {
		return Record{}, false
	}
	return s.byID[s.order[0]], true
}

// List returns all accounts in insertion order, without tokens.
func (s *Store) List() []Summary {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	summaries := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		summaries = append(summaries, s.byID[id].Summary())
	}
	return summaries
}

func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.order)
}
