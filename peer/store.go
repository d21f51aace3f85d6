package peer

import (
	"io/ioutil"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/go-bt/bthost"
)

// Store persists bonding records to a JSON file.
type Store struct {
	filename string
	lock     sync.RWMutex
}

// NewStore returns a store backed by filename. The file is created on
// first save.
func NewStore(filename string) *Store {
	return &Store{filename: filename}
}

// Load reads every persisted bonding record.
func (s *Store) Load() ([]bthost.BondingData, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.load()
}

// Save inserts or replaces the record for rec.Identifier.
func (s *Store) Save(rec bthost.BondingData) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range recs {
		if recs[i].Identifier == rec.Identifier {
			recs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
	}

	return s.write(recs)
}

// Delete removes the record for id. Unknown ids are not an error.
func (s *Store) Delete(id bthost.PeerID) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}

	out := recs[:0]
	for _, r := range recs {
		if r.Identifier != id {
			out = append(out, r)
		}
	}
	if len(out) == len(recs) {
		return nil
	}

	return s.write(out)
}

func (s *Store) load() ([]bthost.BondingData, error) {
	_, err := os.Stat(s.filename)
	if os.IsNotExist(err) {
		return nil, nil
	}

	in, err := ioutil.ReadFile(s.filename)
	if err != nil {
		return nil, errors.Wrap(err, "can't read bond store")
	}

	var recs []bthost.BondingData
	if len(in) > 0 {
		if err := jsoniter.Unmarshal(in, &recs); err != nil {
			return nil, errors.Wrap(err, "can't unmarshal bond store")
		}
	}
	return recs, nil
}

func (s *Store) write(recs []bthost.BondingData) error {
	out, err := jsoniter.Marshal(recs)
	if err != nil {
		return errors.Wrap(err, "can't marshal bond store")
	}

	if err := ioutil.WriteFile(s.filename, out, 0644); err != nil {
		return errors.Wrap(err, "can't update bond store")
	}
	return nil
}
