package usecase

import (
	"context"

	userport "zenchatty/internal/repository/port"
)

type RegisterUserInput struct {
	UserID                string
	DisplayName           string
	AllowStrangerMessages bool
}

// RegisterUserUseCase mirrors a user from the account service into the chat
// directory. Registering an existing id updates it.
type RegisterUserUseCase struct {
	Users userport.UserRepository
}

func NewRegisterUserUseCase(users userport.UserRepository) *RegisterUserUseCase {
	return &RegisterUserUseCase{Users: users}
}

func (uc *RegisterUserUseCase) Execute(ctx context.Context, in RegisterUserInput) (*userport.User, error) {
	if in.UserID == "" {
		return nil, invalid("user id is required")
	}
	u := &userport.User{
		ID:                    in.UserID,
		DisplayName:           in.DisplayName,
		AllowStrangerMessages: in.AllowStrangerMessages,
	}
	if err := uc.Users.Create(ctx, u); err != nil {
		return nil, persistence(err)
	}
	return u, nil
}
