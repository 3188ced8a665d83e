package cart

import (
	"context"
	"errors"
	"log"
	"sync"

	"crystal-bloomery/internal/commerce"
	"crystal-bloomery/internal/domain"
	sessionrepo "crystal-bloomery/internal/repository/session"
)

// Service is the single source of truth for a session's visible cart. Every
// mutation goes through the remote gateway exactly once and the local line
// list is reconciled with the server-confirmed result before persisting.
//
// Mutations on the same session token are serialized; a stale remote cart id
// (cart-not-found from the gateway) resets the session to empty so the next
// add starts a fresh remote cart.
type Service struct {
	gateway  Gateway
	sessions sessionrepo.Repository
	logger   *log.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	syncing map[string]bool
}

// Gateway is the remote cart API surface the store depends on.
type Gateway interface {
	CreateCart(ctx context.Context, variantID string, quantity int) (commerce.CartCreated, error)
	AddLine(ctx context.Context, cartID, variantID string, quantity int) (string, error)
	UpdateLineQuantity(ctx context.Context, cartID, lineID string, quantity int) error
	RemoveLine(ctx context.Context, cartID, lineID string) error
	FetchCart(ctx context.Context, cartID string) (commerce.RemoteCart, error)
}

// NewItem describes a variant being added to the cart.
type NewItem struct {
	VariantID  string
	Title      string
	ImageURL   string
	PriceCents int64
	Currency   string
	Options    map[string]string
	Quantity   int
}

// New builds a Service. The session repository receives every state change.
func New(gateway Gateway, sessions sessionrepo.Repository, logger *log.Logger) *Service {
	return &Service{
		gateway:  gateway,
		sessions: sessions,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
		syncing:  make(map[string]bool),
	}
}

// Get returns the session's cart, empty if none was persisted yet.
func (s *Service) Get(ctx context.Context, token string) (*domain.CartSession, error) {
	lock := s.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()
	return s.load(ctx, token)
}

// AddItem adds a variant to the cart. The first add creates the remote cart;
// adding a variant already present increments its line instead of
// duplicating it.
func (s *Service) AddItem(ctx context.Context, token string, item NewItem) (*domain.CartSession, error) {
	if item.Quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}
	lock := s.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}

	if sess.CartID == nil {
		created, err := s.gateway.CreateCart(ctx, item.VariantID, item.Quantity)
		if err != nil {
			return nil, err
		}
		line := lineFromItem(item)
		if created.LineID != "" {
			line.LineID = &created.LineID
		}
		sess.CartID = &created.CartID
		if created.CheckoutURL != "" {
			sess.CheckoutURL = &created.CheckoutURL
		}
		sess.Lines = []domain.CartLine{line}
		return sess, s.save(ctx, token, sess)
	}

	if idx := sess.FindLine(item.VariantID); idx >= 0 {
		existing := sess.Lines[idx]
		if !existing.Synced() {
			return nil, domain.ErrLineNotSynced
		}
		newQty := existing.Quantity + item.Quantity
		err := s.gateway.UpdateLineQuantity(ctx, *sess.CartID, *existing.LineID, newQty)
		if errors.Is(err, domain.ErrCartNotFound) {
			return s.reset(ctx, token, sess)
		}
		if err != nil {
			return nil, err
		}
		sess.Lines[idx].Quantity = newQty
		return sess, s.save(ctx, token, sess)
	}

	lineID, err := s.gateway.AddLine(ctx, *sess.CartID, item.VariantID, item.Quantity)
	if errors.Is(err, domain.ErrCartNotFound) {
		return s.reset(ctx, token, sess)
	}
	if err != nil {
		return nil, err
	}
	line := lineFromItem(item)
	if lineID != "" {
		line.LineID = &lineID
	} else {
		// Degraded outcome: the mutation succeeded but the response did not
		// include the new line, so later edits to it will be rejected until
		// the line is re-confirmed.
		s.logger.Printf("add line for %s succeeded without a line id", item.VariantID)
	}
	sess.Lines = append(sess.Lines, line)
	return sess, s.save(ctx, token, sess)
}

// UpdateQuantity sets a line to an exact quantity. Zero or negative
// quantities remove the line instead of recording a zero-quantity row.
func (s *Service) UpdateQuantity(ctx context.Context, token, variantID string, quantity int) (*domain.CartSession, error) {
	lock := s.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()

	if quantity <= 0 {
		return s.removeItem(ctx, token, variantID)
	}

	sess, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	idx := sess.FindLine(variantID)
	if sess.CartID == nil || idx < 0 {
		return nil, domain.ErrNotFound
	}
	line := sess.Lines[idx]
	if !line.Synced() {
		return nil, domain.ErrLineNotSynced
	}

	err = s.gateway.UpdateLineQuantity(ctx, *sess.CartID, *line.LineID, quantity)
	if errors.Is(err, domain.ErrCartNotFound) {
		return s.reset(ctx, token, sess)
	}
	if err != nil {
		return nil, err
	}
	sess.Lines[idx].Quantity = quantity
	return sess, s.save(ctx, token, sess)
}

// RemoveItem deletes a line. Removing the last line resets the whole
// session, cart id and checkout URL included.
func (s *Service) RemoveItem(ctx context.Context, token, variantID string) (*domain.CartSession, error) {
	lock := s.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()
	return s.removeItem(ctx, token, variantID)
}

func (s *Service) removeItem(ctx context.Context, token, variantID string) (*domain.CartSession, error) {
	sess, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	idx := sess.FindLine(variantID)
	if sess.CartID == nil || idx < 0 {
		return nil, domain.ErrNotFound
	}
	line := sess.Lines[idx]
	if !line.Synced() {
		return nil, domain.ErrLineNotSynced
	}

	err = s.gateway.RemoveLine(ctx, *sess.CartID, *line.LineID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return s.reset(ctx, token, sess)
	}
	if err != nil {
		return nil, err
	}
	sess.Lines = append(sess.Lines[:idx], sess.Lines[idx+1:]...)
	if len(sess.Lines) == 0 {
		sess.Reset()
	}
	return sess, s.save(ctx, token, sess)
}

// Clear empties the session locally. No remote call is made.
func (s *Service) Clear(ctx context.Context, token string) (*domain.CartSession, error) {
	lock := s.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()

	if err := s.sessions.Delete(ctx, token); err != nil {
		return nil, err
	}
	return &domain.CartSession{}, nil
}

// Sync reconciles local state against the remote cart. A cart the remote
// reports as missing or fully empty wipes local state; an unreachable
// backend leaves it alone. Only one sync per session runs at a time.
func (s *Service) Sync(ctx context.Context, token string) (*domain.CartSession, error) {
	s.mu.Lock()
	if s.syncing[token] {
		s.mu.Unlock()
		return nil, nil
	}
	s.syncing[token] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.syncing, token)
		s.mu.Unlock()
	}()

	lock := s.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.CartID == nil {
		return sess, nil
	}

	remote, err := s.gateway.FetchCart(ctx, *sess.CartID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return s.reset(ctx, token, sess)
	}
	if err != nil {
		s.logger.Printf("cart sync for %s failed, keeping local state: %v", *sess.CartID, err)
		return sess, nil
	}
	if !remote.Exists || remote.TotalQuantity == 0 {
		return s.reset(ctx, token, sess)
	}
	return sess, nil
}

// CheckoutURL returns the session's checkout link, empty when no remote cart
// exists yet.
func (s *Service) CheckoutURL(ctx context.Context, token string) (string, error) {
	lock := s.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, token)
	if err != nil {
		return "", err
	}
	if sess.CheckoutURL == nil {
		return "", nil
	}
	return *sess.CheckoutURL, nil
}

func (s *Service) load(ctx context.Context, token string) (*domain.CartSession, error) {
	sess, err := s.sessions.Load(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.CartSession{}, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, token string, sess *domain.CartSession) error {
	return s.sessions.Save(ctx, token, sess)
}

func (s *Service) reset(ctx context.Context, token string, sess *domain.CartSession) (*domain.CartSession, error) {
	if sess.CartID != nil {
		s.logger.Printf("remote cart %s no longer exists, resetting session", *sess.CartID)
	}
	sess.Reset()
	return sess, s.save(ctx, token, sess)
}

func (s *Service) sessionLock(token string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[token]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[token] = lock
	}
	return lock
}

func lineFromItem(item NewItem) domain.CartLine {
	return domain.CartLine{
		VariantID:  item.VariantID,
		Title:      item.Title,
		ImageURL:   item.ImageURL,
		PriceCents: item.PriceCents,
		Currency:   item.Currency,
		Options:    item.Options,
		Quantity:   item.Quantity,
	}
}
