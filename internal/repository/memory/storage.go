// Package memory keeps users and refresh records in process memory.
// It is used when no database is configured and in service tests.
package memory

import (
	"context"
	"sync"

	"github.com/Mohamedseffine/01Blog/internal/models"
	"github.com/Mohamedseffine/01Blog/internal/repository"
)

type state struct {
	mu sync.Mutex

	lastUserID int64
	users      map[int64]models.User
	refresh    map[int64]models.RefreshRecord // by user id
}

// journal collects undo steps of writes made inside a transaction
// Steps are called with state lock held
type journal struct {
	undo []func(s *state)
}

// Record undo step, no-op outside transaction
func (j *journal) record(step func(s *state)) {
	if j == nil {
		return
	}
	j.undo = append(j.undo, step)
}

func (j *journal) rollback(s *state) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i](s)
	}
}

type Storage struct {
	state   *state
	txMu    *sync.Mutex
	journal *journal // nil outside transaction
}

func NewStorage() repository.Storage {
	return &Storage{
		state: &state{
			users:   make(map[int64]models.User),
			refresh: make(map[int64]models.RefreshRecord),
		},
		txMu: &sync.Mutex{},
	}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{state: s.state, journal: s.journal}
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return &RefreshTokenRepo{state: s.state, journal: s.journal}
}

// InTx runs transactions one at a time
// On error only the keys written through tx are restored, writes made outside the transaction stay
// User ids are not reused after rollback, like a database sequence
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	// Nested transaction joins the outer one
	if s.journal != nil {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &Storage{state: s.state, txMu: s.txMu, journal: &journal{}}

	err := fn(tx)
	if err != nil {
		tx.journal.rollback(s.state)
	}

	return err
}
