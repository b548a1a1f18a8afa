package flow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ivanoskov/walla/internal/groups"
	"github.com/ivanoskov/walla/internal/identity"
	"github.com/ivanoskov/walla/internal/session"
	"github.com/ivanoskov/walla/internal/validate"
	"strings"
)

// errQuit завершает цикл по явному выбору пользователя
var errQuit = errors.New("quit")

// Controller последовательно показывает экраны приложения в терминале.
// Какой набор экранов активен — онбординг или главное меню — определяется
// только наличием токена сессии
type Controller struct {
	session *session.Holder
	groups  *groups.Service
	in      *bufio.Scanner
	out     io.Writer
}

func NewController(h *session.Holder, g *groups.Service, in io.Reader, out io.Writer) *Controller {
	return &Controller{
		session: h,
		groups:  g,
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

// Run восстанавливает сессию и крутит цикл экранов до выхода пользователя
// или конца ввода
func (c *Controller) Run(ctx context.Context) error {
	if c.session.IsBootstrapping() {
		if err := c.session.Bootstrap(ctx); err != nil {
			fmt.Fprintf(c.out, "Не удалось восстановить сессию: %v\n", err)
		}
	}

	for {
		var err error
		if c.session.Authenticated() {
			err = c.mainMenu(ctx)
		} else {
			err = c.onboarding(ctx)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// onboarding проводит пользователя по экранам в порядке мобильного
// приложения: имя → e-mail → телефон → код из SMS
func (c *Controller) onboarding(ctx context.Context) error {
	fmt.Fprintln(c.out, "Добро пожаловать в Walla! 🛒")

	first, err := c.promptValid("Имя", validate.Name, "Имя может содержать только буквы")
	if err != nil {
		return err
	}
	c.session.SetFirstName(first)

	last, err := c.promptValid("Фамилия", validate.Name, "Фамилия может содержать только буквы")
	if err != nil {
		return err
	}
	c.session.SetLastName(last)

	email, err := c.promptValid("E-mail", validate.Email, "Неверный формат e-mail")
	if err != nil {
		return err
	}
	c.session.SetEmail(email)

	if err := c.screenPhone(ctx); err != nil {
		return err
	}
	return c.screenOTP(ctx)
}

func (c *Controller) screenPhone(ctx context.Context) error {
	for {
		phone, err := c.promptValid("Номер телефона", validate.Phone, "Неверный формат номера")
		if err != nil {
			return err
		}
		c.session.SetPhoneNumber(phone)

		if err := c.session.RequestVerificationCode(ctx); err != nil {
			fmt.Fprintf(c.out, "Не удалось отправить код: %v\n", err)
			continue
		}
		fmt.Fprintln(c.out, "Код подтверждения отправлен по SMS")
		return nil
	}
}

// screenOTP не пропускает пользователя дальше, пока сервис не примет код
func (c *Controller) screenOTP(ctx context.Context) error {
	for {
		code, err := c.promptValid("Код из SMS", validate.OTP, "Код должен состоять из шести цифр")
		if err != nil {
			return err
		}
		c.session.SetOTP(code)

		err = c.session.VerifyAndCommit(ctx)
		if err == nil {
			fmt.Fprintln(c.out, "Вход выполнен ✅")
			return nil
		}
		if errors.Is(err, identity.ErrCodeRejected) {
			fmt.Fprintln(c.out, "Неверный код, попробуйте ещё раз")
			continue
		}
		fmt.Fprintf(c.out, "Не удалось проверить код: %v\n", err)
	}
}

func (c *Controller) mainMenu(ctx context.Context) error {
	fmt.Fprintln(c.out, "\nВыберите действие:")
	fmt.Fprintln(c.out, "1 — группы рядом")
	fmt.Fprintln(c.out, "2 — создать группу")
	fmt.Fprintln(c.out, "3 — выйти из аккаунта")
	fmt.Fprintln(c.out, "0 — завершить")

	choice, err := c.prompt("Действие")
	if err != nil {
		return err
	}

	switch choice {
	case "1":
		return c.handleNearby(ctx)
	case "2":
		return c.handleCreateGroup(ctx)
	case "3":
		if err := c.session.SignOut(ctx); err != nil {
			fmt.Fprintf(c.out, "Не удалось выйти: %v\n", err)
			return nil
		}
		fmt.Fprintln(c.out, "Вы вышли из аккаунта")
	case "0":
		return errQuit
	default:
		fmt.Fprintln(c.out, "Неизвестное действие")
	}
	return nil
}

func (c *Controller) handleNearby(ctx context.Context) error {
	lat, err := c.promptFloat("Широта")
	if err != nil {
		return err
	}
	lng, err := c.promptFloat("Долгота")
	if err != nil {
		return err
	}

	found, err := c.groups.Nearby(ctx, lat, lng, 10)
	if err != nil {
		fmt.Fprintf(c.out, "Не удалось получить группы: %v\n", err)
		return nil
	}
	if len(found) == 0 {
		fmt.Fprintln(c.out, "Рядом групп не найдено")
		return nil
	}

	fmt.Fprintln(c.out, "Группы рядом:")
	for _, g := range found {
		line := fmt.Sprintf("• %s (%d", g.Name, g.CurrentMemberCount)
		if g.MaxMembers > 0 {
			line += fmt.Sprintf("/%d", g.MaxMembers)
		}
		line += " участников)"
		if g.Address != "" {
			line += " — " + g.Address
		}
		fmt.Fprintln(c.out, line)
	}
	return nil
}

func (c *Controller) handleCreateGroup(ctx context.Context) error {
	name, err := c.prompt("Название группы")
	if err != nil {
		return err
	}
	description, err := c.prompt("Описание")
	if err != nil {
		return err
	}
	private, err := c.promptYesNo("Закрытая группа")
	if err != nil {
		return err
	}

	params := groups.CreateParams{
		Name:        name,
		Description: description,
		IsPrivate:   private,
	}

	limited, err := c.promptYesNo("Ограничить число участников")
	if err != nil {
		return err
	}
	if limited {
		max, err := c.promptInt("Максимум участников")
		if err != nil {
			return err
		}
		params.MaxMembers = max
	}

	withLocation, err := c.promptYesNo("Указать местоположение")
	if err != nil {
		return err
	}
	if withLocation {
		lat, err := c.promptFloat("Широта")
		if err != nil {
			return err
		}
		lng, err := c.promptFloat("Долгота")
		if err != nil {
			return err
		}
		params.Latitude = &lat
		params.Longitude = &lng
	}

	group, err := c.groups.Create(ctx, params)
	if err != nil {
		fmt.Fprintf(c.out, "Не удалось создать группу: %v\n", err)
		return nil
	}
	fmt.Fprintf(c.out, "Группа «%s» создана ✅\n", group.Name)
	return nil
}

func (c *Controller) prompt(label string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *Controller) promptValid(label string, ok func(string) bool, msg string) (string, error) {
	for {
		v, err := c.prompt(label)
		if err != nil {
			return "", err
		}
		if ok(v) {
			return v, nil
		}
		fmt.Fprintln(c.out, msg)
	}
}

func (c *Controller) promptFloat(label string) (float64, error) {
	for {
		v, err := c.prompt(label)
		if err != nil {
			return 0, err
		}
		f, perr := strconv.ParseFloat(v, 64)
		if perr == nil {
			return f, nil
		}
		fmt.Fprintln(c.out, "Введите число")
	}
}

func (c *Controller) promptInt(label string) (int, error) {
	for {
		v, err := c.prompt(label)
		if err != nil {
			return 0, err
		}
		n, perr := strconv.Atoi(v)
		if perr == nil {
			return n, nil
		}
		fmt.Fprintln(c.out, "Введите целое число")
	}
}

func (c *Controller) promptYesNo(label string) (bool, error) {
	for {
		v, err := c.prompt(label + " (y/n)")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(v) {
		case "y", "да":
			return true, nil
		case "n", "нет":
			return false, nil
		}
		fmt.Fprintln(c.out, "Ответьте y или n")
	}
}
