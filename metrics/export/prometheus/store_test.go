package prometheus

import (
	"context"

	"github.com/heartnote/authcore"
)

type nopStore struct{}

func (nopStore) FindActiveUserByEmail(context.Context, string) (*authcore.UserCredential, error) {
	return nil, authcore.ErrUserNotFound
}

func (nopStore) FindActiveUserByID(context.Context, string) (*authcore.UserCredential, error) {
	return nil, authcore.ErrUserNotFound
}

func (nopStore) VerifyPassword(context.Context, *authcore.UserCredential, string) (bool, error) {
	return false, nil
}

func (nopStore) CreateUser(context.Context, authcore.NewCredential) (*authcore.UserCredential, error) {
	return nil, authcore.ErrEmailAlreadyInUse
}
