package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/walla/internal/identity"
	"github.com/ivanoskov/walla/internal/storage"
)

// fakeIdentity подменяет сервис аутентификации в тестах; незаданные функции
// ведут себя как успешные вызовы
type fakeIdentity struct {
	restoreFn func(ctx context.Context, token string) (*identity.Session, error)
	sendFn    func(ctx context.Context, phone string) error
	verifyFn  func(ctx context.Context, phone, code string) (*identity.Session, error)
	updateFn  func(ctx context.Context, token, email, fullName string) error
	signOutFn func(ctx context.Context, token string) error

	restoreCalls int
	sendCalls    int
	verifyCalls  int
	updateCalls  int
	signOutCalls int
}

func (f *fakeIdentity) RestoreSession(ctx context.Context, token string) (*identity.Session, error) {
	f.restoreCalls++
	if f.restoreFn != nil {
		return f.restoreFn(ctx, token)
	}
	return &identity.Session{AccessToken: token, UserID: "u1"}, nil
}

func (f *fakeIdentity) SendOTP(ctx context.Context, phone string) error {
	f.sendCalls++
	if f.sendFn != nil {
		return f.sendFn(ctx, phone)
	}
	return nil
}

func (f *fakeIdentity) VerifyOTP(ctx context.Context, phone, code string) (*identity.Session, error) {
	f.verifyCalls++
	if f.verifyFn != nil {
		return f.verifyFn(ctx, phone, code)
	}
	return &identity.Session{AccessToken: "T1", UserID: "u1"}, nil
}

func (f *fakeIdentity) UpdateProfile(ctx context.Context, token, email, fullName string) error {
	f.updateCalls++
	if f.updateFn != nil {
		return f.updateFn(ctx, token, email, fullName)
	}
	return nil
}

func (f *fakeIdentity) SignOut(ctx context.Context, token string) error {
	f.signOutCalls++
	if f.signOutFn != nil {
		return f.signOutFn(ctx, token)
	}
	return nil
}

// flakyStore добавляет инъекцию ошибок поверх хранилища в памяти
type flakyStore struct {
	*storage.MemoryStore
	getErr error
	setErr error
	delErr error
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	return f.MemoryStore.Delete(ctx, key)
}

func stageValidProfile(h *Holder) {
	h.SetPhoneNumber("5551234567")
	h.SetFirstName("Jo")
	h.SetLastName("Smith")
	h.SetEmail("jo@example.com")
	h.SetOTP("123456")
}

func TestBootstrapNoCachedToken(t *testing.T) {
	svc := &fakeIdentity{}
	h := NewHolder(svc, storage.NewMemoryStore())

	assert.True(t, h.IsBootstrapping())
	assert.Equal(t, StateBootstrapping, h.State())

	require.NoError(t, h.Bootstrap(context.Background()))

	assert.False(t, h.IsBootstrapping())
	assert.Equal(t, StateUnauthenticated, h.State())
	assert.Empty(t, h.Token())
	assert.Zero(t, svc.restoreCalls)
}

func TestBootstrapRestoresSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "T0"))
	require.NoError(t, store.Set(ctx, storage.KeyPhone, "5551234567"))
	require.NoError(t, store.Set(ctx, storage.KeyFirstName, "Jo"))
	require.NoError(t, store.Set(ctx, storage.KeyEmail, "jo@example.com"))

	svc := &fakeIdentity{}
	h := NewHolder(svc, store)

	require.NoError(t, h.Bootstrap(ctx))

	assert.Equal(t, "T0", h.Token())
	assert.Equal(t, StateAuthenticated, h.State())
	assert.False(t, h.IsBootstrapping())

	p := h.Profile()
	assert.Equal(t, "5551234567", p.PhoneNumber)
	assert.Equal(t, "Jo", p.FirstName)
	assert.Equal(t, "jo@example.com", p.Email)
	// отсутствующий ключ оставляет значение по умолчанию
	assert.Empty(t, p.LastName)
}

func TestBootstrapRejectedToken(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "stale"))

	svc := &fakeIdentity{
		restoreFn: func(ctx context.Context, token string) (*identity.Session, error) {
			return nil, errors.New("401")
		},
	}
	h := NewHolder(svc, store)

	// отвергнутый токен не ошибка: стартуем без сессии
	require.NoError(t, h.Bootstrap(ctx))
	assert.Empty(t, h.Token())
	assert.False(t, h.IsBootstrapping())
	assert.Equal(t, StateUnauthenticated, h.State())
}

func TestBootstrapStoreFailureStillFinishes(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), getErr: errors.New("disk gone")}
	h := NewHolder(&fakeIdentity{}, store)

	err := h.Bootstrap(context.Background())
	assert.Error(t, err)
	// сбой хранилища всё равно завершает начальную загрузку
	assert.False(t, h.IsBootstrapping())
	assert.Equal(t, StateUnauthenticated, h.State())
}

func TestBootstrapSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "T0"))

	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeIdentity{
		restoreFn: func(ctx context.Context, token string) (*identity.Session, error) {
			close(started)
			<-release
			return &identity.Session{AccessToken: token, UserID: "u1"}, nil
		},
	}
	h := NewHolder(svc, store)

	done := make(chan error, 1)
	go func() { done <- h.Bootstrap(ctx) }()

	<-started
	assert.ErrorIs(t, h.Bootstrap(ctx), ErrInFlight)
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, svc.restoreCalls)
	assert.False(t, h.IsBootstrapping())
}

func TestRequestCodeValidatesPhone(t *testing.T) {
	svc := &fakeIdentity{}
	h := NewHolder(svc, storage.NewMemoryStore())
	h.SetPhoneNumber("abc")

	err := h.RequestVerificationCode(context.Background())

	var ferr *FieldError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "phoneNumber", ferr.Field)
	assert.Zero(t, svc.sendCalls)
}

func TestRequestCodeNormalizesPhone(t *testing.T) {
	var sent string
	svc := &fakeIdentity{
		sendFn: func(ctx context.Context, phone string) error {
			sent = phone
			return nil
		},
	}
	h := NewHolder(svc, storage.NewMemoryStore())
	h.SetPhoneNumber("5551234567")

	require.NoError(t, h.RequestVerificationCode(context.Background()))
	assert.Equal(t, "+15551234567", sent)
}

func TestRequestCodeSendFailure(t *testing.T) {
	svc := &fakeIdentity{
		sendFn: func(ctx context.Context, phone string) error {
			return errors.New("sms gateway down")
		},
	}
	h := NewHolder(svc, storage.NewMemoryStore())
	h.SetPhoneNumber("5551234567")

	err := h.RequestVerificationCode(context.Background())
	assert.ErrorContains(t, err, "failed to send verification code")
}

func TestVerifyAndCommitSuccess(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	var updatedEmail, updatedName string
	svc := &fakeIdentity{
		verifyFn: func(ctx context.Context, phone, code string) (*identity.Session, error) {
			assert.Equal(t, "+15551234567", phone)
			assert.Equal(t, "123456", code)
			return &identity.Session{AccessToken: "T1", UserID: "u1"}, nil
		},
		updateFn: func(ctx context.Context, token, email, fullName string) error {
			assert.Equal(t, "T1", token)
			updatedEmail, updatedName = email, fullName
			return nil
		},
	}
	h := NewHolder(svc, store)

	// до начальной загрузки состояние всегда StateBootstrapping
	assert.Equal(t, StateBootstrapping, h.State())
	require.NoError(t, h.Bootstrap(ctx))

	stageValidProfile(h)
	require.NoError(t, h.VerifyAndCommit(ctx))

	assert.Equal(t, "T1", h.Token())
	assert.Equal(t, StateAuthenticated, h.State())
	assert.Equal(t, "jo@example.com", updatedEmail)
	assert.Equal(t, "Jo Smith", updatedName)

	for key, want := range map[string]string{
		storage.KeyToken:     "T1",
		storage.KeyPhone:     "5551234567",
		storage.KeyFirstName: "Jo",
		storage.KeyLastName:  "Smith",
		storage.KeyEmail:     "jo@example.com",
	} {
		got, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
}

func TestVerifyRejectedCodeKeepsStateUnauthenticated(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := &fakeIdentity{
		verifyFn: func(ctx context.Context, phone, code string) (*identity.Session, error) {
			return nil, identity.ErrCodeRejected
		},
	}
	h := NewHolder(svc, store)
	require.NoError(t, h.Bootstrap(ctx))
	stageValidProfile(h)
	h.SetOTP("000000")

	err := h.VerifyAndCommit(ctx)
	assert.ErrorIs(t, err, identity.ErrCodeRejected)

	assert.Empty(t, h.Token())
	assert.Equal(t, StateUnauthenticated, h.State())
	assert.Zero(t, svc.updateCalls)

	_, ok, err := store.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok, "rejected code must not cache a token")
}

func TestVerifyProfileUpdateFailureKeepsToken(t *testing.T) {
	svc := &fakeIdentity{
		updateFn: func(ctx context.Context, token, email, fullName string) error {
			return errors.New("profile service down")
		},
	}
	h := NewHolder(svc, storage.NewMemoryStore())
	stageValidProfile(h)

	// сбой обновления профиля не откатывает токен и не проваливает операцию
	require.NoError(t, h.VerifyAndCommit(context.Background()))
	assert.Equal(t, "T1", h.Token())
}

func TestVerifyTokenCacheFailureStillAuthenticates(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), setErr: errors.New("disk full")}
	svc := &fakeIdentity{}
	h := NewHolder(svc, store)
	stageValidProfile(h)

	require.NoError(t, h.VerifyAndCommit(context.Background()))
	assert.Equal(t, "T1", h.Token())
}

func TestVerifyRevalidatesAllFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(h *Holder)
		wantField string
	}{
		{"bad phone", func(h *Holder) { h.SetPhoneNumber("abc") }, "phoneNumber"},
		{"bad otp", func(h *Holder) { h.SetOTP("12a456") }, "otp"},
		{"missing first name", func(h *Holder) { h.SetFirstName("") }, "firstName"},
		{"digit in last name", func(h *Holder) { h.SetLastName("Sm1th") }, "lastName"},
		{"bad email", func(h *Holder) { h.SetEmail("a@b") }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeIdentity{}
			h := NewHolder(svc, storage.NewMemoryStore())
			stageValidProfile(h)
			tt.mutate(h)

			err := h.VerifyAndCommit(context.Background())

			var ferr *FieldError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tt.wantField, ferr.Field)
			assert.Zero(t, svc.verifyCalls, "validation must fail before any network call")
			assert.Empty(t, h.Token())
		})
	}
}

func TestVerifySingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeIdentity{
		verifyFn: func(ctx context.Context, phone, code string) (*identity.Session, error) {
			close(started)
			<-release
			return &identity.Session{AccessToken: "T1", UserID: "u1"}, nil
		},
	}
	h := NewHolder(svc, storage.NewMemoryStore())
	stageValidProfile(h)

	done := make(chan error, 1)
	go func() { done <- h.VerifyAndCommit(context.Background()) }()

	<-started
	// двойное нажатие не порождает второй сетевой вызов
	assert.ErrorIs(t, h.VerifyAndCommit(context.Background()), ErrInFlight)
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, svc.verifyCalls)
}

func TestSignOutClearsTokenAndKeepsProfile(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := &fakeIdentity{}
	h := NewHolder(svc, store)
	require.NoError(t, h.Bootstrap(ctx))
	stageValidProfile(h)
	require.NoError(t, h.VerifyAndCommit(ctx))
	require.Equal(t, "T1", h.Token())

	require.NoError(t, h.SignOut(ctx))

	assert.Empty(t, h.Token())
	assert.Equal(t, StateUnauthenticated, h.State())
	assert.Equal(t, 1, svc.signOutCalls)

	_, ok, err := store.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	// зеркалированные поля переживают выход
	phone, ok, err := store.Get(ctx, storage.KeyPhone)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5551234567", phone)
	assert.Equal(t, "5551234567", h.Profile().PhoneNumber)
}

func TestSignOutRemoteFailureStillClearsLocally(t *testing.T) {
	ctx := context.Background()
	svc := &fakeIdentity{
		signOutFn: func(ctx context.Context, token string) error {
			return errors.New("service unreachable")
		},
	}
	h := NewHolder(svc, storage.NewMemoryStore())
	stageValidProfile(h)
	require.NoError(t, h.VerifyAndCommit(ctx))

	require.NoError(t, h.SignOut(ctx))
	assert.Empty(t, h.Token())
}

func TestSignOutIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := &fakeIdentity{}
	h := NewHolder(svc, storage.NewMemoryStore())

	require.NoError(t, h.SignOut(ctx))
	assert.Empty(t, h.Token())
	require.NoError(t, h.SignOut(ctx))
	assert.Empty(t, h.Token())

	// без активной сессии удалённый вызов не выполняется
	assert.Zero(t, svc.signOutCalls)
}

func TestFreshInstallScenario(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := &fakeIdentity{
		verifyFn: func(ctx context.Context, phone, code string) (*identity.Session, error) {
			if code == "000000" {
				return nil, identity.ErrCodeRejected
			}
			return &identity.Session{AccessToken: "T1", UserID: "u1"}, nil
		},
	}
	h := NewHolder(svc, store)

	// чистая установка: загрузка без сессии
	require.NoError(t, h.Bootstrap(ctx))
	assert.Equal(t, StateUnauthenticated, h.State())
	assert.False(t, h.IsBootstrapping())

	// пользователь проходит онбординг
	stageValidProfile(h)
	require.NoError(t, h.RequestVerificationCode(ctx))
	assert.Equal(t, 1, svc.sendCalls)

	// неверный код: явная ошибка, состояние не меняется
	h.SetOTP("000000")
	assert.ErrorIs(t, h.VerifyAndCommit(ctx), identity.ErrCodeRejected)
	assert.Equal(t, StateUnauthenticated, h.State())

	// повторный ввод верного кода завершает вход
	h.SetOTP("123456")
	require.NoError(t, h.VerifyAndCommit(ctx))
	assert.Equal(t, StateAuthenticated, h.State())
}
