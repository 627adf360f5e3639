package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dockmap/auth-service/internal/domain"
	"github.com/dockmap/auth-service/internal/repository"
	"github.com/dockmap/auth-service/internal/utils"
	"github.com/google/uuid"
)

const (
	testAccessSecret  = "access-secret-for-tests-0123456789abcdef"
	testRefreshSecret = "refresh-secret-for-tests-0123456789abcdef"
	testBotToken      = "123456:telegram-bot-token"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockUserRepository stores copies so callers cannot mutate persisted state by accident
type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Phone == user.Phone {
			return repository.ErrDuplicatePhone
		}
		if user.Email != nil && existing.Email != nil && *existing.Email == *user.Email {
			return repository.ErrDuplicateEmail
		}
		if user.ProviderID != nil && existing.ProviderID != nil &&
			existing.AuthProvider == user.AuthProvider && *existing.ProviderID == *user.ProviderID {
			return repository.ErrDuplicateProvider
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepository) find(match func(u domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *mockUserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Phone == phone })
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email != nil && *u.Email == email })
}

func (m *mockUserRepository) GetByProvider(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	return m.find(func(u domain.User) bool {
		return u.AuthProvider == provider && u.ProviderID != nil && *u.ProviderID == providerID
	})
}

func (m *mockUserRepository) mutate(id string, apply func(u *domain.User) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || !apply(&u) {
		return repository.ErrNotFound
	}
	m.users[id] = u
	return nil
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	return m.mutate(user.ID, func(u *domain.User) bool {
		u.Name = user.Name
		u.Email = user.Email
		u.Role = user.Role
		u.TelegramUsername = user.TelegramUsername
		u.VKID = user.VKID
		u.CityID = user.CityID
		u.IsPhoneVerified = user.IsPhoneVerified
		u.IsEmailVerified = user.IsEmailVerified
		return true
	})
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return m.mutate(userID, func(u *domain.User) bool {
		u.PasswordHash = &passwordHash
		return true
	})
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, userID, ip string, at time.Time) error {
	return m.mutate(userID, func(u *domain.User) bool {
		u.LastLoginIP = &ip
		u.LastLoginAt = &at
		return true
	})
}

func (m *mockUserRepository) SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error {
	return m.mutate(userID, func(u *domain.User) bool {
		u.RefreshTokenHash = hash
		return true
	})
}

func (m *mockUserRepository) RotateRefreshTokenHash(ctx context.Context, userID, oldHash, newHash string) error {
	return m.mutate(userID, func(u *domain.User) bool {
		if u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldHash {
			return false
		}
		u.RefreshTokenHash = &newHash
		return true
	})
}

type mockCodeRepository struct {
	mu    sync.Mutex
	codes []domain.VerificationCode
	seq   int
}

func newMockCodeRepository() *mockCodeRepository {
	return &mockCodeRepository{}
}

func (m *mockCodeRepository) Create(ctx context.Context, code *domain.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	code.ID = uuid.New().String()
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	// preserve insertion order for equal timestamps
	code.CreatedAt = code.CreatedAt.Add(time.Duration(m.seq) * time.Nanosecond)
	m.codes = append(m.codes, *code)
	return nil
}

func matchesSubject(c domain.VerificationCode, subject domain.Subject) bool {
	switch subject.Channel {
	case domain.ChannelEmail:
		return c.Email != nil && *c.Email == subject.Value
	default:
		return c.PhoneNumber != nil && *c.PhoneNumber == subject.Value
	}
}

func (m *mockCodeRepository) FindLatestUnused(ctx context.Context, subject domain.Subject, codeType domain.CodeType, code string) (*domain.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.VerificationCode
	for i := range m.codes {
		c := m.codes[i]
		if c.IsUsed || c.Type != codeType || c.Code != code || !matchesSubject(c, subject) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			found := c
			latest = &found
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (m *mockCodeRepository) MarkUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.codes {
		if m.codes[i].ID == id && !m.codes[i].IsUsed {
			m.codes[i].IsUsed = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.codes[:0]
	var deleted int64
	for _, c := range m.codes {
		if c.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	m.codes = kept
	return deleted, nil
}

// latest returns the newest code of a type for a subject
func (m *mockCodeRepository) latest(subject domain.Subject, codeType domain.CodeType) *domain.VerificationCode {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.VerificationCode
	for i := range m.codes {
		c := m.codes[i]
		if c.Type != codeType || !matchesSubject(c, subject) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			found := c
			latest = &found
		}
	}
	return latest
}

func (m *mockCodeRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

type fakeSMSSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSMSSender) SendSMS(ctx context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{To: phone, Body: text})
	return nil
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeEmailSender) SendEmail(ctx context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{To: to, Subject: subject, Body: html})
	return nil
}

// fakeRevoker keeps unix milliseconds, the same precision RedisSessionRevoker stores
type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]int64
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: make(map[string]int64)}
}

func (f *fakeRevoker) RevokeBefore(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[userID] = at.UnixMilli()
	return nil
}

func (f *fakeRevoker) RevokedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	millis, ok := f.revoked[userID]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(millis), true, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (f *fakeEvents) Publish(ctx context.Context, event domain.AuthEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) types() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]domain.EventType, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

type stubVKClient struct {
	identity *domain.Identity
	err      error
	calls    []VKAuthorization
}

func (s *stubVKClient) Exchange(ctx context.Context, auth VKAuthorization) (*domain.Identity, error) {
	s.calls = append(s.calls, auth)
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

type testEnv struct {
	svc     AuthService
	users   *mockUserRepository
	codes   *mockCodeRepository
	sms     *fakeSMSSender
	email   *fakeEmailSender
	revoker *fakeRevoker
	events  *fakeEvents
	vk      *stubVKClient
	tokens  *utils.JWTManager
	clock   *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock()
	env := &testEnv{
		users:   newMockUserRepository(),
		codes:   newMockCodeRepository(),
		sms:     &fakeSMSSender{},
		email:   &fakeEmailSender{},
		revoker: newFakeRevoker(),
		events:  &fakeEvents{},
		vk:      &stubVKClient{},
		clock:   clock,
	}

	env.tokens = utils.NewJWTManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour).
		WithClock(clock.Now)

	engine := NewCodeEngine(env.codes, CodeTTLs{
		SMS:           5 * time.Minute,
		Email:         10 * time.Minute,
		PasswordReset: 10 * time.Minute,
	}).WithClock(clock.Now)

	telegram := NewTelegramVerifier(TelegramConfig{
		BotToken: testBotToken,
		BotID:    "123456",
		Origin:   "https://dockmap.ru",
		MaxAge:   24 * time.Hour,
	}).WithClock(clock.Now)

	env.svc = NewAuthService(AuthServiceParams{
		Users:      env.users,
		Codes:      engine,
		Tokens:     env.tokens,
		Revoker:    env.revoker,
		Telegram:   telegram,
		VK:         env.vk,
		SMS:        env.sms,
		Email:      env.email,
		Events:     env.events,
		BCryptCost: 4,
		Now:        clock.Now,
	})

	return env
}

var errDeliveryDown = errors.New("gateway unavailable")
