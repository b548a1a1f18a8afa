package identity

import (
	"context"
	"errors"
)

// ErrCodeRejected возвращается, когда сервис аутентификации отклонил код
// подтверждения (неверный или истёкший код). Транспортные сбои возвращаются
// обычными обёрнутыми ошибками
var ErrCodeRejected = errors.New("verification code rejected")

// Session — активная сессия, выданная сервисом аутентификации
type Session struct {
	AccessToken string
	UserID      string
}

// Service определяет интерфейс удалённого сервиса аутентификации
type Service interface {
	// RestoreSession проверяет кэшированный токен и возвращает сессию,
	// если сервис всё ещё признаёт его действительным
	RestoreSession(ctx context.Context, token string) (*Session, error)
	// SendOTP запрашивает отправку одноразового кода на номер телефона
	SendOTP(ctx context.Context, phone string) error
	// VerifyOTP проверяет код и возвращает новую сессию
	VerifyOTP(ctx context.Context, phone, code string) (*Session, error)
	// UpdateProfile записывает e-mail и полное имя в профиль пользователя
	UpdateProfile(ctx context.Context, token, email, fullName string) error
	// SignOut аннулирует сессию на стороне сервиса
	SignOut(ctx context.Context, token string) error
}
