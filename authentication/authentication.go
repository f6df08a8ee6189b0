package authentication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	authcontext "github.com/nasermirzaei89/myboard/authentication/context"
	"github.com/nasermirzaei89/myboard/authorization"
	"golang.org/x/crypto/bcrypt"
)

const ServiceName = "github.com/nasermirzaei89/myboard/authentication"

const (
	minUsernameLength = 4
	maxUsernameLength = 30
	minPasswordLength = 8
	maxPasswordLength = 30
	maxNameLength     = 30
	maxAge            = 150
	passwordSpecials  = "@$!%*#?&"
)

type Service struct {
	memberRepo       MemberRepository
	refreshTokenRepo RefreshTokenRepository
	authzClient      *authorization.Client
	tokenIssuer      *TokenIssuer
	bloomFilter      *BloomFilter
	now              func() time.Time
}

func NewService(
	memberRepo MemberRepository,
	refreshTokenRepo RefreshTokenRepository,
	authzClient *authorization.Client,
	tokenIssuer *TokenIssuer,
) *Service {
	return &Service{
		memberRepo:       memberRepo,
		refreshTokenRepo: refreshTokenRepo,
		authzClient:      authzClient,
		tokenIssuer:      tokenIssuer,
		now:              time.Now,
	}
}

// LoadBloomFilter seeds the username filter with every registered username.
func (svc *Service) LoadBloomFilter(ctx context.Context, minCapacity uint, falsePositiveRate float64) error {
	usernames, err := svc.memberRepo.ListUsernames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list usernames for bloom filter: %w", err)
	}

	capacity := max(uint(len(usernames)), minCapacity)

	bf := NewBloomFilter(capacity, falsePositiveRate)
	for _, username := range usernames {
		bf.Add(username)
	}

	svc.bloomFilter = bf

	return nil
}

func HashPassword(password string) (string, error) {
	bcryptHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(bcryptHash), nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength || n > maxUsernameLength {
		return &InvalidMemberError{
			Field:  "username",
			Reason: fmt.Sprintf("must be between %d and %d characters", minUsernameLength, maxUsernameLength),
		}
	}

	if strings.TrimSpace(username) != username || strings.ContainsAny(username, " \t\n") {
		return &InvalidMemberError{Field: "username", Reason: "must not contain whitespace"}
	}

	return nil
}

// validatePassword requires 8 to 30 characters made of letters, digits and @$!%*#?&, with at least one of each.
func validatePassword(password string) error {
	invalid := &InvalidMemberError{
		Field: "password",
		Reason: fmt.Sprintf(
			"must be %d to %d characters with at least one letter, one digit and one of %s",
			minPasswordLength, maxPasswordLength, passwordSpecials,
		),
	}

	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return invalid
	}

	var hasLetter, hasDigit, hasSpecial bool

	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		default:
			return invalid
		}
	}

	if !hasLetter || !hasDigit || !hasSpecial {
		return invalid
	}

	return nil
}

func validateProfile(name, nickName string, age int) error {
	if utf8.RuneCountInString(name) > maxNameLength {
		return &InvalidMemberError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}

	if utf8.RuneCountInString(nickName) > maxNameLength {
		return &InvalidMemberError{
			Field:  "nickName",
			Reason: fmt.Sprintf("must be at most %d characters", maxNameLength),
		}
	}

	if age < 0 || age > maxAge {
		return &InvalidMemberError{Field: "age", Reason: fmt.Sprintf("must be between 0 and %d", maxAge)}
	}

	return nil
}

type RegisterRequest struct {
	Username string
	Password string
	Name     string
	NickName string
	Age      int
	Role     Role
}

func (svc *Service) Register(ctx context.Context, req RegisterRequest) (*Member, error) {
	err := validateUsername(req.Username)
	if err != nil {
		return nil, err
	}

	err = validatePassword(req.Password)
	if err != nil {
		return nil, err
	}

	err = validateProfile(req.Name, req.NickName, req.Age)
	if err != nil {
		return nil, err
	}

	if req.Role == "" {
		req.Role = RoleUser
	}

	if !req.Role.IsValid() {
		return nil, &InvalidMemberError{Field: "role", Reason: "must be USER or ADMIN"}
	}

	if svc.bloomFilter != nil && svc.bloomFilter.Test(req.Username) {
		// a positive may be false, so confirm against the store
		_, err = svc.memberRepo.FindByUsername(ctx, req.Username)
		if err == nil {
			return nil, &MemberAlreadyExistsError{Username: req.Username}
		}

		var notFoundErr *MemberByUsernameNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to find member by username: %w", err)
		}
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	member := &Member{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		Name:         req.Name,
		NickName:     req.NickName,
		Age:          req.Age,
		Role:         req.Role,
		RegisteredAt: svc.now(),
	}

	err = svc.memberRepo.Insert(ctx, member)
	if err != nil {
		var alreadyExistsErr *MemberAlreadyExistsError
		if errors.As(err, &alreadyExistsErr) {
			svc.rememberUsername(req.Username)

			return nil, alreadyExistsErr
		}

		return nil, fmt.Errorf("failed to register member: %w", err)
	}

	svc.rememberUsername(req.Username)

	groups := []string{authcontext.Authenticated}
	if member.Role == RoleAdmin {
		groups = append(groups, authcontext.Admin)
	}

	err = svc.authzClient.AddToGroup(ctx, member.ID, groups...)
	if err != nil {
		return nil, fmt.Errorf("failed to add member to groups: %w", err)
	}

	member.PasswordHash = ""

	return member, nil
}

func (svc *Service) rememberUsername(username string) {
	if svc.bloomFilter != nil {
		svc.bloomFilter.Add(username)
	}
}

var ErrInvalidCredentials = errors.New("invalid credentials")

type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

func (svc *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	member, err := svc.memberRepo.FindByUsername(ctx, username)
	if err != nil {
		var notFoundErr *MemberByUsernameNotFoundError
		if errors.As(err, &notFoundErr) {
			return nil, ErrInvalidCredentials
		}

		return nil, fmt.Errorf("failed to find member by username: %w", err)
	}

	err = comparePassword(member.PasswordHash, password, ErrInvalidCredentials)
	if err != nil {
		return nil, err
	}

	return svc.issueTokenPair(ctx, member.ID)
}

func comparePassword(passwordHash, password string, mismatchErr error) error {
	err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return mismatchErr
		}

		return fmt.Errorf("failed to compare password hash: %w", err)
	}

	return nil
}

func (svc *Service) issueTokenPair(ctx context.Context, memberID string) (*TokenPair, error) {
	accessToken, err := svc.tokenIssuer.Issue(TokenUseAccess, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refreshToken, err := svc.tokenIssuer.Issue(TokenUseRefresh, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	err = svc.refreshTokenRepo.Insert(ctx, &RefreshToken{
		ID:        refreshToken.ID,
		MemberID:  memberID,
		CreatedAt: refreshToken.IssuedAt,
		ExpiresAt: refreshToken.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:           accessToken.Token,
		AccessTokenExpiresAt:  accessToken.ExpiresAt,
		RefreshToken:          refreshToken.Token,
		RefreshTokenExpiresAt: refreshToken.ExpiresAt,
	}, nil
}

// storedRefreshToken verifies token and returns its row. A revoked token is reported as invalid.
func (svc *Service) storedRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	verified, err := svc.tokenIssuer.Verify(TokenUseRefresh, token)
	if err != nil {
		return nil, err
	}

	stored, err := svc.refreshTokenRepo.Find(ctx, verified.ID)
	if err != nil {
		var notFoundErr *RefreshTokenNotFoundError
		if errors.As(err, &notFoundErr) {
			return nil, &InvalidTokenError{Reason: "revoked", Err: err}
		}

		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	if stored.MemberID != verified.Subject {
		return nil, &InvalidTokenError{Reason: "subject mismatch"}
	}

	return stored, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh token is revoked.
func (svc *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := svc.storedRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	err = svc.refreshTokenRepo.Delete(ctx, stored.ID)
	if err != nil {
		var notFoundErr *RefreshTokenNotFoundError
		if errors.As(err, &notFoundErr) {
			// used concurrently by another request
			return nil, &InvalidTokenError{Reason: "revoked", Err: err}
		}

		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return svc.issueTokenPair(ctx, stored.MemberID)
}

func (svc *Service) Logout(ctx context.Context, refreshToken string) error {
	stored, err := svc.storedRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	err = svc.refreshTokenRepo.Delete(ctx, stored.ID)
	if err != nil {
		var notFoundErr *RefreshTokenNotFoundError
		if errors.As(err, &notFoundErr) {
			return nil
		}

		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	return nil
}

// Authenticate verifies an access token and returns the member it was issued to.
func (svc *Service) Authenticate(_ context.Context, accessToken string) (*IssuedToken, error) {
	verified, err := svc.tokenIssuer.Verify(TokenUseAccess, accessToken)
	if err != nil {
		return nil, err
	}

	return verified, nil
}

func (svc *Service) GetMember(ctx context.Context, memberID string) (*Member, error) {
	member, err := svc.memberRepo.Find(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to find member by id: %w", err)
	}

	member.PasswordHash = ""

	return member, nil
}

func (svc *Service) currentMember(ctx context.Context) (*Member, error) {
	sub := authcontext.GetSubject(ctx)
	if sub == authcontext.Anonymous {
		return nil, ErrCurrentMemberNotFound
	}

	member, err := svc.memberRepo.Find(ctx, sub)
	if err != nil {
		var notFoundErr *MemberNotFoundError
		if errors.As(err, &notFoundErr) {
			return nil, ErrCurrentMemberNotFound
		}

		return nil, fmt.Errorf("failed to find current member: %w", err)
	}

	return member, nil
}

func (svc *Service) GetCurrentMember(ctx context.Context) (*Member, error) {
	member, err := svc.currentMember(ctx)
	if err != nil {
		return nil, err
	}

	member.PasswordHash = ""

	return member, nil
}

type UpdateProfileRequest struct {
	Name     *string
	NickName *string
	Age      *int
}

func (svc *Service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*Member, error) {
	member, err := svc.currentMember(ctx)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		member.Name = *req.Name
	}

	if req.NickName != nil {
		member.NickName = *req.NickName
	}

	if req.Age != nil {
		member.Age = *req.Age
	}

	err = validateProfile(member.Name, member.NickName, member.Age)
	if err != nil {
		return nil, err
	}

	err = svc.memberRepo.Update(ctx, member)
	if err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	member.PasswordHash = ""

	return member, nil
}

// ChangePassword replaces the current member's password and revokes every refresh token they hold.
func (svc *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	member, err := svc.currentMember(ctx)
	if err != nil {
		return err
	}

	err = comparePassword(member.PasswordHash, currentPassword, ErrWrongPassword)
	if err != nil {
		return err
	}

	err = validatePassword(newPassword)
	if err != nil {
		return err
	}

	member.PasswordHash, err = HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = svc.memberRepo.Update(ctx, member)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}

	err = svc.refreshTokenRepo.DeleteByMember(ctx, member.ID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	return nil
}

// Withdraw deletes the current member. Their posts, comments and refresh tokens go with them.
func (svc *Service) Withdraw(ctx context.Context, password string) error {
	member, err := svc.currentMember(ctx)
	if err != nil {
		return err
	}

	err = comparePassword(member.PasswordHash, password, ErrWrongPassword)
	if err != nil {
		return err
	}

	err = svc.memberRepo.Delete(ctx, member.ID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	err = svc.authzClient.RemoveFromGroup(ctx, member.ID, authcontext.Authenticated, authcontext.Admin)
	if err != nil {
		slog.ErrorContext(ctx, "failed to remove withdrawn member from groups", "memberId", member.ID, "error", err)
	}

	err = svc.authzClient.RemoveSubjectPolicies(ctx, member.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to remove policies of withdrawn member", "memberId", member.ID, "error", err)
	}

	return nil
}
