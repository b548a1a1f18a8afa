package model

// PendingProfile хранит поля, введённые пользователем на экранах онбординга,
// до подтверждения номера телефона
type PendingProfile struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	Email       string
	OTP         string
}

// FullName собирает полное имя для профиля в сервисе аутентификации
func (p *PendingProfile) FullName() string {
	return p.FirstName + " " + p.LastName
}
