// Package memory is a process-local implementation of the credential store.
// It backs the engine tests and the development mode that runs without a
// database. Transactions are serialized by a single mutex; rollback restores
// a snapshot taken when the transaction began.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"credential_service/internal/models"
	"credential_service/internal/storage"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	otps     map[string]models.Otp
	sessions map[string]models.Session
	audits   []models.AuditEvent
	now      func() time.Time
}

func New() *Store {
	return &Store{
		accounts: make(map[string]models.Account),
		otps:     make(map[string]models.Otp),
		sessions: make(map[string]models.Session),
		now:      time.Now,
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st storage.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()

	if err := fn(ctx, &tx{s: s}); err != nil {
		s.restore(snap)
		return err
	}

	return nil
}

// AuditEvents returns a copy of the append-only audit trail.
func (s *Store) AuditEvents() []models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AuditEvent, len(s.audits))
	copy(out, s.audits)

	return out
}

type snapshot struct {
	accounts map[string]models.Account
	otps     map[string]models.Otp
	sessions map[string]models.Session
	audits   []models.AuditEvent
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		accounts: make(map[string]models.Account, len(s.accounts)),
		otps:     make(map[string]models.Otp, len(s.otps)),
		sessions: make(map[string]models.Session, len(s.sessions)),
		audits:   make([]models.AuditEvent, len(s.audits)),
	}

	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.otps {
		snap.otps[k] = v
	}
	for k, v := range s.sessions {
		snap.sessions[k] = v
	}
	copy(snap.audits, s.audits)

	return snap
}

func (s *Store) restore(snap snapshot) {
	s.accounts = snap.accounts
	s.otps = snap.otps
	s.sessions = snap.sessions
	s.audits = snap.audits
}

// tx operates on the parent store while the transaction mutex is held.
type tx struct {
	s *Store
}

func (t *tx) SaveAccount(ctx context.Context, email, name, passHash string) (string, error) {
	for _, a := range t.s.accounts {
		if a.Email == email {
			return "", storage.ErrUserExists
		}
	}

	now := t.s.now()
	a := models.Account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		PassHash:  passHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.s.accounts[a.ID] = a

	return a.ID, nil
}

func (t *tx) AccountByEmail(ctx context.Context, email string) (models.Account, error) {
	for _, a := range t.s.accounts {
		if a.Email == email {
			return a, nil
		}
	}

	return models.Account{}, storage.ErrUserNotFound
}

func (t *tx) MarkAccountVerified(ctx context.Context, accountID string) error {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return storage.ErrUserNotFound
	}

	a.IsVerified = true
	a.UpdatedAt = t.s.now()
	t.s.accounts[accountID] = a

	return nil
}

func (t *tx) UpdatePassword(ctx context.Context, accountID, passHash string) error {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return storage.ErrUserNotFound
	}

	a.PassHash = passHash
	a.UpdatedAt = t.s.now()
	t.s.accounts[accountID] = a

	return nil
}

func (t *tx) SaveOtp(ctx context.Context, otp models.Otp) error {
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = t.s.now()
	}
	t.s.otps[otp.ID] = otp

	return nil
}

func (t *tx) DeleteOtps(ctx context.Context, accountID, purpose string) error {
	for id, o := range t.s.otps {
		if o.AccountID == accountID && o.Purpose == purpose {
			delete(t.s.otps, id)
		}
	}

	return nil
}

func (t *tx) ActiveOtp(ctx context.Context, accountID, purpose string) (models.Otp, error) {
	var matches []models.Otp

	for _, o := range t.s.otps {
		if o.AccountID == accountID && o.Purpose == purpose && o.ConsumedAt == nil {
			matches = append(matches, o)
		}
	}

	if len(matches) == 0 {
		return models.Otp{}, storage.ErrOtpNotFound
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	return matches[0], nil
}

func (t *tx) IncrementOtpAttempts(ctx context.Context, otpID string) (int, error) {
	o, ok := t.s.otps[otpID]
	if !ok {
		return 0, storage.ErrOtpNotFound
	}

	o.Attempts++
	t.s.otps[otpID] = o

	return o.Attempts, nil
}

func (t *tx) ConsumeOtp(ctx context.Context, otpID string, at time.Time) error {
	o, ok := t.s.otps[otpID]
	if !ok {
		return storage.ErrOtpNotFound
	}

	if o.ConsumedAt == nil {
		o.ConsumedAt = &at
		t.s.otps[otpID] = o
	}

	return nil
}

func (t *tx) SaveSession(ctx context.Context, session models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = t.s.now()
	}
	t.s.sessions[session.ID] = session

	return nil
}

func (t *tx) ActiveSessions(ctx context.Context, accountID string, now time.Time) ([]models.Session, error) {
	var active []models.Session

	for _, sess := range t.s.sessions {
		if sess.AccountID == accountID && sess.RevokedAt == nil && sess.ExpiresAt.After(now) {
			active = append(active, sess)
		}
	}

	return active, nil
}

func (t *tx) RevokeSession(ctx context.Context, sessionID string, at time.Time) error {
	sess, ok := t.s.sessions[sessionID]
	if !ok {
		return nil
	}

	if sess.RevokedAt == nil {
		sess.RevokedAt = &at
		t.s.sessions[sessionID] = sess
	}

	return nil
}

func (t *tx) AppendAudit(ctx context.Context, event models.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = t.s.now()
	}
	t.s.audits = append(t.s.audits, event)

	return nil
}
