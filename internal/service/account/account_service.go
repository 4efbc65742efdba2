package account

import (
	"context"
	"errors"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/repository"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrWrongPassword  = errors.New("wrong password")
	ErrUsernameExists = errors.New("username already exists")
)

type AccountUseCase interface {
	Login(ctx context.Context, h repository.Handle, username, password string) error
	Register(ctx context.Context, h repository.Handle, user domain.User) error
	CheckUsername(ctx context.Context, h repository.Handle, username string) (bool, error)
	GetUserInfo(ctx context.Context, h repository.Handle, username string) (domain.User, error)
	UpdateProfile(ctx context.Context, h repository.Handle, username, realName, phone string) error
	ChangePassword(ctx context.Context, h repository.Handle, username, oldPassword, newPassword string) error
}

// AccountService authenticates on every request. Passwords are stored and
// compared as given by the client.
type AccountService struct{}

func NewAccountService() *AccountService {
	return &AccountService{}
}

func (s *AccountService) Login(ctx context.Context, h repository.Handle, username, password string) error {
	user, err := s.getUser(ctx, h, username)
	if err != nil {
		return err
	}
	if user.Password != password {
		return ErrWrongPassword
	}
	return nil
}

func (s *AccountService) Register(ctx context.Context, h repository.Handle, user domain.User) error {
	if err := h.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return ErrUsernameExists
		}
		return err
	}
	return nil
}

func (s *AccountService) CheckUsername(ctx context.Context, h repository.Handle, username string) (bool, error) {
	return h.UserExists(ctx, username)
}

// GetUserInfo returns the profile with the password blanked.
func (s *AccountService) GetUserInfo(ctx context.Context, h repository.Handle, username string) (domain.User, error) {
	user, err := s.getUser(ctx, h, username)
	if err != nil {
		return domain.User{}, err
	}
	user.Password = ""
	return user, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, h repository.Handle, username, realName, phone string) error {
	if err := h.UpdateProfile(ctx, username, realName, phone); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *AccountService) ChangePassword(ctx context.Context, h repository.Handle, username, oldPassword, newPassword string) error {
	if err := s.Login(ctx, h, username, oldPassword); err != nil {
		return err
	}
	if err := h.UpdatePassword(ctx, username, newPassword); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *AccountService) getUser(ctx context.Context, h repository.Handle, username string) (domain.User, error) {
	user, err := h.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

var _ AccountUseCase = (*AccountService)(nil)
