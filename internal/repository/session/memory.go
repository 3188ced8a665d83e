package session

import (
	"context"
	"sync"

	"crystal-bloomery/internal/domain"
)

type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]domain.CartSession
}

// NewMemory returns an in-process Repository. Used by tests and for running
// the API without a database.
func NewMemory() Repository {
	return &memoryRepo{sessions: make(map[string]domain.CartSession)}
}

func (r *memoryRepo) Load(_ context.Context, token string) (*domain.CartSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneSession(sess)
	return &out, nil
}

func (r *memoryRepo) Save(_ context.Context, token string, session *domain.CartSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = cloneSession(*session)
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

func cloneSession(in domain.CartSession) domain.CartSession {
	out := in
	if in.CartID != nil {
		v := *in.CartID
		out.CartID = &v
	}
	if in.CheckoutURL != nil {
		v := *in.CheckoutURL
		out.CheckoutURL = &v
	}
	out.Lines = make([]domain.CartLine, len(in.Lines))
	copy(out.Lines, in.Lines)
	for i, line := range out.Lines {
		if line.LineID != nil {
			v := *line.LineID
			out.Lines[i].LineID = &v
		}
	}
	return out
}
