package validate

import "regexp"

// Грамматики полей, которыми экраны онбординга ограничивают ввод.
// Проверки чисто синтаксические: существование номера или адреса
// подтверждает сервис аутентификации, а не клиент.
var (
	phoneRe = regexp.MustCompile(`^(\+\d{1,2}\s?)?(\(?\d{3}\)?[\s.-]?)?\d{3}[\s.-]?\d{4}$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRe  = regexp.MustCompile(`^\p{L}+(?:[ '-]\p{L}+)*$`)
	otpRe   = regexp.MustCompile(`^\d{6}$`)
)

// Phone проверяет номер телефона: необязательный код страны с "+",
// необязательный код зоны в скобках, разделители ".", "-" или пробел
func Phone(s string) bool {
	return phoneRe.MatchString(s)
}

func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Name принимает последовательности букв Unicode, разделённые одиночными
// пробелами, апострофами или дефисами
func Name(s string) bool {
	return nameRe.MatchString(s)
}

// OTP принимает ровно шесть цифр
func OTP(s string) bool {
	return otpRe.MatchString(s)
}
