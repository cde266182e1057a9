package otpengine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*challengeStore, *testStoreEnv) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	cfg := testConfig().Challenge
	store := newChallengeStore(rdb, cfg, 2*time.Second)

	return store, &testStoreEnv{mr: mr, cfg: cfg}
}

type testStoreEnv struct {
	mr  *miniredis.Miniredis
	cfg ChallengeConfig
}

func TestIssueStoresCodeWithPurposeTTL(t *testing.T) {
	store, env := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com", PurposeRegistration)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if len(code) != env.cfg.CodeDigits {
		t.Errorf("code %q has %d digits, want %d", code, len(code), env.cfg.CodeDigits)
	}

	key := store.codeKey("alice@example.com", PurposeRegistration)
	if !env.mr.Exists(key) {
		t.Fatalf("code key %q not stored", key)
	}
	if got := env.mr.TTL(key); got != env.cfg.RegistrationTTL {
		t.Errorf("registration code TTL = %v, want %v", got, env.cfg.RegistrationTTL)
	}

	if _, err := store.Issue(ctx, "alice@example.com", PurposePasswordReset); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	resetKey := store.codeKey("alice@example.com", PurposePasswordReset)
	if got := env.mr.TTL(resetKey); got != env.cfg.PasswordResetTTL {
		t.Errorf("reset code TTL = %v, want %v", got, env.cfg.PasswordResetTTL)
	}
}

func TestIssueOverwritesCodeAndResetsAttempts(t *testing.T) {
	store, env := newTestStore(t)
	ctx := context.Background()

	first, err := store.Issue(ctx, "alice@example.com", PurposeRegistration)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// Burn one attempt against the first code.
	res, err := store.Verify(ctx, "alice@example.com", PurposeRegistration, "0000")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.status != verifyMismatch {
		t.Fatalf("verify status = %v, want mismatch", res.status)
	}

	second, err := store.Issue(ctx, "alice@example.com", PurposeRegistration)
	if err != nil {
		t.Fatalf("reissue failed: %v", err)
	}

	if env.mr.Exists(store.attemptsKey("alice@example.com", PurposeRegistration)) {
		t.Error("attempt counter survived reissue")
	}

	// The first code is dead even if it happens to differ from the second.
	if first != second {
		res, err = store.Verify(ctx, "alice@example.com", PurposeRegistration, first)
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if res.status != verifyMismatch {
			t.Errorf("superseded code verified with status %v", res.status)
		}
	}
}

func TestVerifyMatchConsumesChallenge(t *testing.T) {
	store, env := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com", PurposeRegistration)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	res, err := store.Verify(ctx, "alice@example.com", PurposeRegistration, "  "+code+" ")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.status != verifyOK {
		t.Fatalf("verify status = %v, want ok", res.status)
	}

	if env.mr.Exists(store.codeKey("alice@example.com", PurposeRegistration)) {
		t.Error("code key survived successful verification")
	}

	// The code is single-use.
	res, err = store.Verify(ctx, "alice@example.com", PurposeRegistration, code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.status != verifyExpired {
		t.Errorf("replayed code status = %v, want expired", res.status)
	}
}

func TestVerifyMismatchCountsDownAndLocks(t *testing.T) {
	store, env := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "alice@example.com", PurposeRegistration); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	for want := env.cfg.MaxAttempts - 1; want >= 1; want-- {
		res, err := store.Verify(ctx, "alice@example.com", PurposeRegistration, "0000")
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if res.status != verifyMismatch {
			t.Fatalf("verify status = %v, want mismatch", res.status)
		}
		if res.remaining != want {
			t.Errorf("remaining = %d, want %d", res.remaining, want)
		}
	}

	res, err := store.Verify(ctx, "alice@example.com", PurposeRegistration, "0000")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.status != verifyLocked {
		t.Fatalf("final attempt status = %v, want locked", res.status)
	}

	lockKey := attemptLockKey(env.cfg.RedisPrefix, "alice@example.com")
	if !env.mr.Exists(lockKey) {
		t.Fatal("attempt lock not armed")
	}
	if got := env.mr.TTL(lockKey); got != env.cfg.AttemptLockTTL {
		t.Errorf("attempt lock TTL = %v, want %v", got, env.cfg.AttemptLockTTL)
	}
	if env.mr.Exists(store.codeKey("alice@example.com", PurposeRegistration)) {
		t.Error("code survived lockout")
	}
	if env.mr.Exists(store.attemptsKey("alice@example.com", PurposeRegistration)) {
		t.Error("attempt counter survived lockout")
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	store, env := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "alice@example.com", PurposeRegistration)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	env.mr.FastForward(env.cfg.RegistrationTTL + time.Second)

	res, err := store.Verify(ctx, "alice@example.com", PurposeRegistration, code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.status != verifyExpired {
		t.Errorf("verify status = %v, want expired", res.status)
	}
}

func TestAttemptsPartitionedByPurpose(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "alice@example.com", PurposeRegistration); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	resetCode, err := store.Issue(ctx, "alice@example.com", PurposePasswordReset)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := store.Verify(ctx, "alice@example.com", PurposeRegistration, "0000"); err != nil {
			t.Fatalf("verify failed: %v", err)
		}
	}

	res, err := store.Verify(ctx, "alice@example.com", PurposePasswordReset, resetCode)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.status != verifyOK {
		t.Errorf("reset verification status = %v after unrelated registration mismatches", res.status)
	}
}

func TestConsumeVerifiedIsSingleUse(t *testing.T) {
	store, env := newTestStore(t)
	ctx := context.Background()

	ok, err := store.ConsumeVerified(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if ok {
		t.Fatal("consumed a flag that was never set")
	}

	if err := store.MarkVerified(ctx, "alice@example.com"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if got := env.mr.TTL(store.verifiedKey("alice@example.com")); got != env.cfg.VerifiedTTL {
		t.Errorf("verified flag TTL = %v, want %v", got, env.cfg.VerifiedTTL)
	}

	ok, err = store.ConsumeVerified(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if !ok {
		t.Fatal("first consume did not succeed")
	}

	ok, err = store.ConsumeVerified(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if ok {
		t.Fatal("second consume succeeded")
	}
}

func TestVerifiedFlagExpires(t *testing.T) {
	store, env := newTestStore(t)
	ctx := context.Background()

	if err := store.MarkVerified(ctx, "alice@example.com"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	env.mr.FastForward(env.cfg.VerifiedTTL + time.Second)

	ok, err := store.ConsumeVerified(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if ok {
		t.Error("expired flag still consumed")
	}
}
