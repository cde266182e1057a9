package otpengine

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return mr, rdb
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []Message
	failWith error
}

func (n *captureNotifier) Send(_ context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failWith != nil {
		return n.failWith
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *captureNotifier) last(t *testing.T) Message {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.messages) == 0 {
		t.Fatal("no message was dispatched")
	}
	return n.messages[len(n.messages)-1]
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type memoryUserProvider struct {
	mu    sync.Mutex
	users map[string]UserRecord

	// beforeCreate runs ahead of CreateUser's uniqueness check, letting
	// tests interleave a rival write.
	beforeCreate func()
}

func newMemoryUserProvider() *memoryUserProvider {
	return &memoryUserProvider{users: map[string]UserRecord{}}
}

func (p *memoryUserProvider) FindByEmail(_ context.Context, email string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (p *memoryUserProvider) CreateUser(_ context.Context, record UserRecord) error {
	if p.beforeCreate != nil {
		p.beforeCreate()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[record.Email]; ok {
		return ErrAccountExists
	}
	p.users[record.Email] = record
	return nil
}

func (p *memoryUserProvider) UpdatePassword(_ context.Context, email, passwordHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[email]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	p.users[email] = user
	return nil
}

func (p *memoryUserProvider) get(t *testing.T, email string) UserRecord {
	t.Helper()

	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[email]
	if !ok {
		t.Fatalf("no stored user for %q", email)
	}
	return user
}

func (p *memoryUserProvider) seed(record UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[record.Email] = record
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client) (*Engine, *captureNotifier, *memoryUserProvider) {
	t.Helper()

	notifier := &captureNotifier{}
	users := newMemoryUserProvider()

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithNotifier(notifier).
		WithUserProvider(users).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	t.Cleanup(engine.Close)

	return engine, notifier, users
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt hash failed: %v", err)
	}
	return string(hash)
}
