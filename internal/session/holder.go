package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ivanoskov/walla/internal/identity"
	"github.com/ivanoskov/walla/internal/model"
	"github.com/ivanoskov/walla/internal/storage"
	"github.com/ivanoskov/walla/internal/validate"
)

// ErrInFlight возвращается при повторном вызове операции, пока предыдущий
// вызов ещё не завершился (двойное нажатие "Продолжить")
var ErrInFlight = errors.New("operation already in progress")

// FieldError — ошибка валидации конкретного поля профиля перед сетевым вызовом
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// State — состояние сессии с точки зрения навигации
type State int

const (
	StateBootstrapping State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Holder владеет состоянием сессии: токеном, флагом начальной загрузки и
// полями профиля, введёнными на экранах онбординга. Сервис аутентификации и
// локальное хранилище передаются в конструктор, чтобы в тестах их можно было
// подменить
type Holder struct {
	identity identity.Service
	store    storage.Store

	mu            sync.Mutex
	token         string
	bootstrapping bool
	profile       model.PendingProfile
	inFlight      map[string]bool
}

func NewHolder(svc identity.Service, store storage.Store) *Holder {
	return &Holder{
		identity:      svc,
		store:         store,
		bootstrapping: true,
		inFlight:      make(map[string]bool),
	}
}

// Bootstrap восстанавливает сессию из кэшированного токена. Вызывается один
// раз при старте. Любой исход — успех, отсутствие сессии, сбой — завершает
// начальную загрузку; флаг bootstrapping сбрасывается ровно один раз и больше
// не взводится
func (h *Holder) Bootstrap(ctx context.Context) error {
	if err := h.begin("bootstrap"); err != nil {
		return err
	}
	defer h.end("bootstrap")
	defer h.finishBootstrap()

	token, ok, err := h.store.Get(ctx, storage.KeyToken)
	if err != nil {
		log.Printf("bootstrap: failed to read cached token: %v", err)
		return fmt.Errorf("failed to read cached token: %w", err)
	}
	if !ok || token == "" {
		return nil
	}

	sess, err := h.identity.RestoreSession(ctx, token)
	if err != nil {
		// Токен больше не признаётся сервисом: стартуем без сессии
		log.Printf("bootstrap: cached session rejected: %v", err)
		return nil
	}

	h.mu.Lock()
	h.token = sess.AccessToken
	h.mu.Unlock()

	h.loadMirroredProfile(ctx)
	return nil
}

// RequestVerificationCode просит сервис отправить одноразовый код на номер
// из профиля. Номер перепроверяется непосредственно перед вызовом
func (h *Holder) RequestVerificationCode(ctx context.Context) error {
	if err := h.begin("request_code"); err != nil {
		return err
	}
	defer h.end("request_code")

	h.mu.Lock()
	phone := h.profile.PhoneNumber
	h.mu.Unlock()

	if !validate.Phone(phone) {
		return &FieldError{Field: "phoneNumber", Reason: "invalid phone number"}
	}

	if err := h.identity.SendOTP(ctx, normalizePhone(phone)); err != nil {
		log.Printf("failed to send verification code: %v", err)
		return fmt.Errorf("failed to send verification code: %w", err)
	}
	return nil
}

// VerifyAndCommit проверяет введённый код и завершает вход. Единственная
// точка перехода из неаутентифицированного состояния в аутентифицированное.
// Порядок шагов фиксирован: токен кэшируется и публикуется до обновления
// удалённого профиля и до зеркалирования полей; сбои поздних шагов не
// откатывают ранние
func (h *Holder) VerifyAndCommit(ctx context.Context) error {
	if err := h.begin("verify"); err != nil {
		return err
	}
	defer h.end("verify")

	h.mu.Lock()
	p := h.profile
	h.mu.Unlock()

	if err := validateProfile(&p); err != nil {
		return err
	}

	sess, err := h.identity.VerifyOTP(ctx, normalizePhone(p.PhoneNumber), p.OTP)
	if err != nil {
		if errors.Is(err, identity.ErrCodeRejected) {
			// Отклонённый код не меняет состояние: экран обязан
			// остаться на месте и показать ошибку
			return err
		}
		return fmt.Errorf("failed to verify code: %w", err)
	}

	if err := h.store.Set(ctx, storage.KeyToken, sess.AccessToken); err != nil {
		log.Printf("failed to cache session token: %v", err)
	}

	h.mu.Lock()
	h.token = sess.AccessToken
	h.mu.Unlock()

	if err := h.identity.UpdateProfile(ctx, sess.AccessToken, p.Email, p.FullName()); err != nil {
		log.Printf("failed to update remote profile: %v", err)
	}

	h.mirrorProfile(ctx, &p)
	return nil
}

// SignOut аннулирует сессию. Локальный выход выполняется всегда, даже если
// удалённый вызов не удался; повторный вызов безопасен. Зеркалированные поля
// профиля сохраняются: повторно входящему пользователю не придётся вводить
// их заново
func (h *Holder) SignOut(ctx context.Context) error {
	h.mu.Lock()
	token := h.token
	h.mu.Unlock()

	if token != "" {
		if err := h.identity.SignOut(ctx, token); err != nil {
			log.Printf("remote sign-out failed: %v", err)
		}
	}

	if err := h.store.Delete(ctx, storage.KeyToken); err != nil {
		log.Printf("failed to drop cached token: %v", err)
	}

	h.mu.Lock()
	h.token = ""
	h.mu.Unlock()
	return nil
}

func (h *Holder) SetPhoneNumber(s string) { h.setField(func(p *model.PendingProfile) { p.PhoneNumber = s }) }
func (h *Holder) SetFirstName(s string)   { h.setField(func(p *model.PendingProfile) { p.FirstName = s }) }
func (h *Holder) SetLastName(s string)    { h.setField(func(p *model.PendingProfile) { p.LastName = s }) }
func (h *Holder) SetEmail(s string)       { h.setField(func(p *model.PendingProfile) { p.Email = s }) }
func (h *Holder) SetOTP(s string)         { h.setField(func(p *model.PendingProfile) { p.OTP = s }) }

func (h *Holder) Token() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

func (h *Holder) IsBootstrapping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bootstrapping
}

func (h *Holder) Authenticated() bool {
	return h.Token() != ""
}

// Profile возвращает копию введённых полей профиля
func (h *Holder) Profile() model.PendingProfile {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.profile
}

func (h *Holder) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.bootstrapping:
		return StateBootstrapping
	case h.token != "":
		return StateAuthenticated
	}
	return StateUnauthenticated
}

func (h *Holder) setField(fn func(*model.PendingProfile)) {
	h.mu.Lock()
	fn(&h.profile)
	h.mu.Unlock()
}

// begin помечает операцию как выполняющуюся; повторный begin до end
// возвращает ErrInFlight
func (h *Holder) begin(op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inFlight[op] {
		return ErrInFlight
	}
	h.inFlight[op] = true
	return nil
}

func (h *Holder) end(op string) {
	h.mu.Lock()
	delete(h.inFlight, op)
	h.mu.Unlock()
}

func (h *Holder) finishBootstrap() {
	h.mu.Lock()
	h.bootstrapping = false
	h.mu.Unlock()
}

// loadMirroredProfile подтягивает зеркалированные поля из локального
// хранилища. Отсутствующий ключ оставляет пустое значение, сбой чтения
// логируется и не прерывает загрузку
func (h *Holder) loadMirroredProfile(ctx context.Context) {
	fields := []struct {
		key string
		set func(*model.PendingProfile, string)
	}{
		{storage.KeyPhone, func(p *model.PendingProfile, v string) { p.PhoneNumber = v }},
		{storage.KeyFirstName, func(p *model.PendingProfile, v string) { p.FirstName = v }},
		{storage.KeyLastName, func(p *model.PendingProfile, v string) { p.LastName = v }},
		{storage.KeyEmail, func(p *model.PendingProfile, v string) { p.Email = v }},
	}

	for _, f := range fields {
		value, ok, err := h.store.Get(ctx, f.key)
		if err != nil {
			log.Printf("failed to load %s: %v", f.key, err)
			continue
		}
		if !ok {
			continue
		}
		h.mu.Lock()
		f.set(&h.profile, value)
		h.mu.Unlock()
	}
}

// mirrorProfile сохраняет поля профиля в локальное хранилище. Каждая запись
// независима: сбой одной логируется и не мешает остальным
func (h *Holder) mirrorProfile(ctx context.Context, p *model.PendingProfile) {
	fields := []struct {
		key   string
		value string
	}{
		{storage.KeyPhone, p.PhoneNumber},
		{storage.KeyFirstName, p.FirstName},
		{storage.KeyLastName, p.LastName},
		{storage.KeyEmail, p.Email},
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := h.store.Set(ctx, f.key, f.value); err != nil {
			log.Printf("failed to mirror %s: %v", f.key, err)
		}
	}
}

// validateProfile перепроверяет все поля непосредственно перед подтверждением:
// экраны валидируют свой ввод сами, но доверять этому при коммите нельзя
func validateProfile(p *model.PendingProfile) error {
	switch {
	case !validate.Phone(p.PhoneNumber):
		return &FieldError{Field: "phoneNumber", Reason: "invalid phone number"}
	case !validate.OTP(p.OTP):
		return &FieldError{Field: "otp", Reason: "code must be six digits"}
	case !validate.Name(p.FirstName):
		return &FieldError{Field: "firstName", Reason: "invalid name"}
	case !validate.Name(p.LastName):
		return &FieldError{Field: "lastName", Reason: "invalid name"}
	case !validate.Email(p.Email):
		return &FieldError{Field: "email", Reason: "invalid email"}
	}
	return nil
}

// normalizePhone добавляет код страны по умолчанию, как это делало
// мобильное приложение
func normalizePhone(s string) string {
	if strings.HasPrefix(s, "+") {
		return s
	}
	return "+1" + s
}
