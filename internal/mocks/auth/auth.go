package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen. The
// in-memory KV honors TTLs against an injectable clock so shield and session
// expiry can be exercised with simulated time.

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	"github.com/tinz/tinz-api/internal/domain/model"
	apperrors "github.com/tinz/tinz-api/internal/errors"
	"github.com/tinz/tinz-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.KVRepository         = (*MemoryKV)(nil)
	_ ports.UserRepository       = (*MemoryUserRepo)(nil)
	_ ports.SsoAccountRepository = (*MemorySsoAccountRepo)(nil)
	_ ports.MailSender           = (*CaptureMailSender)(nil)
	_ ports.ProviderVerifier     = (*ScriptedVerifier)(nil)
)

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryKV is an in-memory KVRepository with real TTL semantics. All
// operations hold one mutex, so single-key operations are atomic exactly as
// the port requires; CompareAndDelete is one indivisible step.
type MemoryKV struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]kvEntry

	// FailSet and FailDelete force the next matching call to fail, for
	// exercising persist/regenerate failure paths.
	FailSet    error
	FailDelete error
}

// NewMemoryKV creates a MemoryKV on the real clock.
func NewMemoryKV() *MemoryKV {
	return NewMemoryKVWithClock(time.Now)
}

// NewMemoryKVWithClock creates a MemoryKV whose TTLs expire against the
// given clock.
func NewMemoryKVWithClock(now func() time.Time) *MemoryKV {
	return &MemoryKV{now: now, entries: make(map[string]kvEntry)}
}

// live returns the entry if present and unexpired, reaping it otherwise.
// Caller must hold mu.
func (m *MemoryKV) live(key string) (kvEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return kvEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return kvEntry{}, false
	}
	return e, true
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet != nil {
		err := m.FailSet
		m.FailSet = nil
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	m.entries[key] = kvEntry{value: append([]byte(nil), value...), expiresAt: expires}
	return nil
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		err := m.FailDelete
		m.FailDelete = nil
		return false, err
	}
	_, ok := m.live(key)
	delete(m.entries, key)
	return ok, nil
}

func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *MemoryKV) SetTTL(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return false, nil
	}
	e.expiresAt = m.now().Add(ttl)
	m.entries[key] = e
	return true, nil
}

func (m *MemoryKV) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

func (m *MemoryKV) Health(context.Context) error { return nil }

// Len reports the number of live keys.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.entries {
		if _, ok := m.live(key); ok {
			n++
		}
	}
	return n
}

// TTLOf returns the remaining TTL of a live key, or false.
func (m *MemoryKV) TTLOf(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return 0, false
	}
	return e.expiresAt.Sub(m.now()), true
}

// MemoryUserRepo is an in-memory UserRepository enforcing email uniqueness.
type MemoryUserRepo struct {
	mu   sync.Mutex
	now  func() time.Time
	seq  int
	byID map[string]model.User
}

// NewMemoryUserRepo creates an empty MemoryUserRepo.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{now: time.Now, byID: make(map[string]model.User)}
}

func (m *MemoryUserRepo) Create(_ context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	email := model.NormalizeEmail(req.Email)
	for _, u := range m.byID {
		if u.Email == email {
			return nil, apperrors.Conflict("user with this email already exists")
		}
	}

	m.seq++
	role := req.Role
	if role == "" {
		role = domainauth.RoleUser
	}
	now := m.now()
	user := model.User{
		ID:           fmt.Sprintf("user-%d", m.seq),
		Email:        email,
		PasswordHash: req.PasswordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[user.ID] = user
	out := user
	return &out, nil
}

func (m *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range m.byID {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (m *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	out := u
	return &out, nil
}

func (m *MemoryUserRepo) UpdatePasswordByEmail(_ context.Context, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = model.NormalizeEmail(email)
	for id, u := range m.byID {
		if u.Email == email {
			u.PasswordHash = &passwordHash
			u.UpdatedAt = m.now()
			m.byID[id] = u
			return nil
		}
	}
	return apperrors.NotFound("user not found")
}

func (m *MemoryUserRepo) UpdatePasswordByID(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	u.PasswordHash = &passwordHash
	u.UpdatedAt = m.now()
	m.byID[id] = u
	return nil
}

func (m *MemoryUserRepo) TouchLastLogin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	now := m.now()
	u.LastLogin = &now
	m.byID[id] = u
	return nil
}

func (m *MemoryUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return apperrors.NotFound("user not found")
	}
	delete(m.byID, id)
	return nil
}

// Count reports the number of stored users.
func (m *MemoryUserRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// MemorySsoAccountRepo is an in-memory SsoAccountRepository keyed by the
// (provider, providerID) composite.
type MemorySsoAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]model.SsoAccount
}

// NewMemorySsoAccountRepo creates an empty MemorySsoAccountRepo.
func NewMemorySsoAccountRepo() *MemorySsoAccountRepo {
	return &MemorySsoAccountRepo{accounts: make(map[string]model.SsoAccount)}
}

func ssoKey(provider domainauth.SsoProvider, providerID string) string {
	return string(provider) + "|" + providerID
}

func (m *MemorySsoAccountRepo) Create(_ context.Context, account *model.SsoAccount) error {
	if err := account.Validate(); err != nil {
		return apperrors.Validation(err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ssoKey(account.Provider, account.ProviderID)
	if _, ok := m.accounts[key]; ok {
		return apperrors.Conflict("sso account already linked")
	}
	stored := *account
	stored.CreatedAt = time.Now()
	m.accounts[key] = stored
	return nil
}

func (m *MemorySsoAccountRepo) Find(_ context.Context, provider domainauth.SsoProvider, providerID string) (*model.SsoAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[ssoKey(provider, providerID)]
	if !ok {
		return nil, apperrors.NotFound("sso account not found")
	}
	out := acct
	return &out, nil
}

func (m *MemorySsoAccountRepo) Relink(_ context.Context, provider domainauth.SsoProvider, providerID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ssoKey(provider, providerID)
	acct, ok := m.accounts[key]
	if !ok {
		return apperrors.NotFound("sso account not found")
	}
	acct.UserID = userID
	m.accounts[key] = acct
	return nil
}

// Count reports the number of stored linkages.
func (m *MemorySsoAccountRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

// SentMail is one message captured by CaptureMailSender.
type SentMail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// CaptureMailSender records sent mail instead of delivering it. Setting Err
// makes every Send fail after recording nothing.
type CaptureMailSender struct {
	mu   sync.Mutex
	sent []SentMail

	Err error
}

// NewCaptureMailSender creates an empty CaptureMailSender.
func NewCaptureMailSender() *CaptureMailSender {
	return &CaptureMailSender{}
}

func (m *CaptureMailSender) Send(_ context.Context, to, subject, text, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMail{To: to, Subject: subject, Text: text, HTML: html})
	return nil
}

// Sent returns a copy of all captured messages.
func (m *CaptureMailSender) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// Last returns the most recently captured message, or false.
func (m *CaptureMailSender) Last() (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return SentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// ScriptedVerifier resolves preset provider tokens to profiles. Unknown
// tokens fail with provider_token, mirroring a real upstream rejection.
type ScriptedVerifier struct {
	ProviderName domainauth.SsoProvider
	Profiles     map[string]domainauth.SsoProfile
}

// NewScriptedVerifier creates a ScriptedVerifier for the given provider.
func NewScriptedVerifier(provider domainauth.SsoProvider) *ScriptedVerifier {
	return &ScriptedVerifier{
		ProviderName: provider,
		Profiles:     make(map[string]domainauth.SsoProfile),
	}
}

// Accept registers a token as valid for the given profile.
func (v *ScriptedVerifier) Accept(token string, profile domainauth.SsoProfile) *ScriptedVerifier {
	v.Profiles[token] = profile
	return v
}

func (v *ScriptedVerifier) Provider() domainauth.SsoProvider { return v.ProviderName }

func (v *ScriptedVerifier) Verify(_ context.Context, token string) (domainauth.SsoProfile, error) {
	profile, ok := v.Profiles[token]
	if !ok {
		return domainauth.SsoProfile{}, apperrors.New(apperrors.ErrCodeProviderToken, "provider rejected token")
	}
	return profile, nil
}
