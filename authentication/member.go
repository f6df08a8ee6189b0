package authentication

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (role Role) IsValid() bool {
	switch role {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

type Member struct {
	ID           string
	Username     string
	PasswordHash string
	Name         string
	NickName     string
	Age          int
	Role         Role
	RegisteredAt time.Time
}

type MemberRepository interface {
	Insert(ctx context.Context, member *Member) (err error)
	Update(ctx context.Context, member *Member) (err error)
	Delete(ctx context.Context, memberID string) (err error)
	Find(ctx context.Context, memberID string) (member *Member, err error)
	FindByUsername(ctx context.Context, username string) (member *Member, err error)
	ListUsernames(ctx context.Context) (usernames []string, err error)
}

type MemberNotFoundError struct {
	ID string
}

func (err MemberNotFoundError) Error() string {
	return fmt.Sprintf("member with id %q not found", err.ID)
}

type MemberByUsernameNotFoundError struct {
	Username string
}

func (err MemberByUsernameNotFoundError) Error() string {
	return fmt.Sprintf("member with username %q not found", err.Username)
}

type MemberAlreadyExistsError struct {
	Username string
}

func (err MemberAlreadyExistsError) Error() string {
	return fmt.Sprintf("member with username %q already exists", err.Username)
}

type InvalidMemberError struct {
	Field  string
	Reason string
}

func (err InvalidMemberError) Error() string {
	return fmt.Sprintf("invalid %s: %s", err.Field, err.Reason)
}

var (
	ErrCurrentMemberNotFound = errors.New("current member not found")
	ErrWrongPassword         = errors.New("wrong password")
)
