package authorization

import (
	"context"
	"errors"
	"fmt"
)

var ErrNilProvider = errors.New("authorization provider must not be nil")

type Service struct {
	authzProvider AuthorizationProvider
}

type AuthorizationProvider interface {
	CheckAccess(ctx context.Context, req CheckAccessRequest) (res *CheckAccessResponse, err error)
	AddPolicy(ctx context.Context, reqs ...AddPolicyRequest) (err error)
	AddToGroup(ctx context.Context, sub string, groups ...string) (err error)
	RemovePolicy(ctx context.Context, reqs ...RemovePolicyRequest) (err error)
	RemoveFromGroup(ctx context.Context, sub string, groups ...string) (err error)
	RemoveObjectPolicies(ctx context.Context, domain, object string) (err error)
	RemoveSubjectPolicies(ctx context.Context, subject string) (err error)
	ListObjects(ctx context.Context, domain string) (objects []string, err error)
}

func NewService(authzProvider AuthorizationProvider) (*Service, error) {
	if authzProvider == nil {
		return nil, ErrNilProvider
	}

	return &Service{
		authzProvider: authzProvider,
	}, nil
}

type CheckAccessRequest struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

type CheckAccessResponse struct {
	Allowed bool
}

type AccessDeniedError struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

func (err AccessDeniedError) Error() string {
	if err.Object != "" {
		return fmt.Sprintf(
			"access denied for subject '%s' and domain '%s' and object '%s' and action '%s'",
			err.Subject,
			err.Domain,
			err.Object,
			err.Action,
		)
	}

	return fmt.Sprintf(
		"access denied for subject '%s' and domain '%s' and action '%s'",
		err.Subject,
		err.Domain,
		err.Action,
	)
}

func (svc *Service) CheckAccess(ctx context.Context, req CheckAccessRequest) (*CheckAccessResponse, error) {
	res, err := svc.authzProvider.CheckAccess(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to check permission: %w", err)
	}

	return res, nil
}

type AddPolicyRequest struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

func (svc *Service) AddPolicy(ctx context.Context, reqs ...AddPolicyRequest) error {
	err := svc.authzProvider.AddPolicy(ctx, reqs...)
	if err != nil {
		return fmt.Errorf("failed to add policies: %w", err)
	}

	return nil
}

func (svc *Service) AddToGroup(ctx context.Context, sub string, groups ...string) error {
	err := svc.authzProvider.AddToGroup(ctx, sub, groups...)
	if err != nil {
		return fmt.Errorf("failed to add grouping policies: %w", err)
	}

	return nil
}

type RemovePolicyRequest struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

func (svc *Service) RemovePolicy(ctx context.Context, reqs ...RemovePolicyRequest) error {
	err := svc.authzProvider.RemovePolicy(ctx, reqs...)
	if err != nil {
		return fmt.Errorf("failed to remove policies: %w", err)
	}

	return nil
}

func (svc *Service) RemoveFromGroup(ctx context.Context, sub string, groups ...string) error {
	err := svc.authzProvider.RemoveFromGroup(ctx, sub, groups...)
	if err != nil {
		return fmt.Errorf("failed to remove grouping policies: %w", err)
	}

	return nil
}

func (svc *Service) RemoveObjectPolicies(ctx context.Context, domain, object string) error {
	err := svc.authzProvider.RemoveObjectPolicies(ctx, domain, object)
	if err != nil {
		return fmt.Errorf("failed to remove object policies: %w", err)
	}

	return nil
}

func (svc *Service) RemoveSubjectPolicies(ctx context.Context, subject string) error {
	err := svc.authzProvider.RemoveSubjectPolicies(ctx, subject)
	if err != nil {
		return fmt.Errorf("failed to remove subject policies: %w", err)
	}

	return nil
}

// ListObjects returns the distinct objects that policies within domain are granted on,
// leaving out wildcard and empty objects.
func (svc *Service) ListObjects(ctx context.Context, domain string) ([]string, error) {
	objects, err := svc.authzProvider.ListObjects(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	return objects, nil
}
