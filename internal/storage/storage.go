package storage

import "context"

// Store — постоянное строковое хранилище ключ-значение, аналог локального
// хранилища мобильного клиента. Get возвращает ok=false для отсутствующего
// ключа, это не ошибка
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Ключи, под которыми кэшируются токен сессии и зеркалируемые поля профиля
const (
	KeyToken     = "userToken"
	KeyPhone     = "userPhone"
	KeyFirstName = "userFirstName"
	KeyLastName  = "userLastName"
	KeyEmail     = "userEmail"
)
