package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

// SupabaseService реализует Service поверх Supabase Auth (gotrue)
type SupabaseService struct {
	client *supabase.Client
}

func NewSupabaseService(projectURL, key string) (*SupabaseService, error) {
	client, err := supabase.NewClient(projectURL, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, err
	}

	return &SupabaseService{
		client: client,
	}, nil
}

func (s *SupabaseService) RestoreSession(ctx context.Context, token string) (*Session, error) {
	resp, err := s.client.Auth.WithToken(token).GetUser()
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	return &Session{
		AccessToken: token,
		UserID:      resp.ID.String(),
	}, nil
}

func (s *SupabaseService) SendOTP(ctx context.Context, phone string) error {
	err := s.client.Auth.OTP(types.OTPRequest{
		Phone:      phone,
		CreateUser: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send otp: %w", err)
	}
	return nil
}

func (s *SupabaseService) VerifyOTP(ctx context.Context, phone, code string) (*Session, error) {
	resp, err := s.client.Auth.VerifyForUser(types.VerifyForUserRequest{
		Type:  types.VerificationTypeSMS,
		Phone: phone,
		Token: code,
	})
	if err != nil {
		// gotrue-go не различает причины отказа; транспортный сбой
		// отличаем от ответа сервиса по типу ошибки
		if isTransport(err) {
			return nil, fmt.Errorf("failed to verify otp: %w", err)
		}
		return nil, ErrCodeRejected
	}

	return &Session{
		AccessToken: resp.AccessToken,
		UserID:      resp.User.ID.String(),
	}, nil
}

func (s *SupabaseService) UpdateProfile(ctx context.Context, token, email, fullName string) error {
	_, err := s.client.Auth.WithToken(token).UpdateUser(types.UpdateUserRequest{
		Email: email,
		Data:  map[string]interface{}{"full_name": fullName},
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *SupabaseService) SignOut(ctx context.Context, token string) error {
	if err := s.client.Auth.WithToken(token).Logout(); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// isTransport сообщает, что ошибка возникла до ответа сервиса
func isTransport(err error) bool {
	var uerr *url.Error
	return errors.As(err, &uerr) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
