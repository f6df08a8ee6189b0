package authorization

import (
	"context"
	"fmt"

	authcontext "github.com/nasermirzaei89/myboard/authentication/context"
)

// Client checks access on behalf of the subject carried by the context.
type Client struct {
	authzSvc *Service
}

func NewClient(authzSvc *Service) *Client {
	return &Client{
		authzSvc: authzSvc,
	}
}

// CheckAccess returns an *AccessDeniedError if the subject in ctx may not perform action on object within domain.
func (c *Client) CheckAccess(ctx context.Context, domain, object, action string) error {
	subject := authcontext.GetSubject(ctx)

	res, err := c.authzSvc.CheckAccess(ctx, CheckAccessRequest{
		Subject: subject,
		Domain:  domain,
		Object:  object,
		Action:  action,
	})
	if err != nil {
		return fmt.Errorf("error on check permission: %w", err)
	}

	if !res.Allowed {
		return &AccessDeniedError{
			Subject: subject,
			Domain:  domain,
			Object:  object,
			Action:  action,
		}
	}

	return nil
}

func (c *Client) CanI(ctx context.Context, domain, object, action string) bool {
	return c.Can(ctx, authcontext.GetSubject(ctx), domain, object, action)
}

func (c *Client) Can(ctx context.Context, subject, domain, object, action string) bool {
	res, err := c.authzSvc.CheckAccess(ctx, CheckAccessRequest{
		Subject: subject,
		Domain:  domain,
		Object:  object,
		Action:  action,
	})

	return err == nil && res.Allowed
}

// AddPolicyForSubject grants subject every given action on object.
func (c *Client) AddPolicyForSubject(ctx context.Context, subject, domain, object string, actions ...string) error {
	reqs := make([]AddPolicyRequest, 0, len(actions))

	for _, action := range actions {
		reqs = append(reqs, AddPolicyRequest{
			Subject: subject,
			Domain:  domain,
			Object:  object,
			Action:  action,
		})
	}

	err := c.authzSvc.AddPolicy(ctx, reqs...)
	if err != nil {
		return fmt.Errorf("error on add policy: %w", err)
	}

	return nil
}

// RemovePolicyForSubject takes back what AddPolicyForSubject granted.
func (c *Client) RemovePolicyForSubject(ctx context.Context, subject, domain, object string, actions ...string) error {
	reqs := make([]RemovePolicyRequest, 0, len(actions))

	for _, action := range actions {
		reqs = append(reqs, RemovePolicyRequest{
			Subject: subject,
			Domain:  domain,
			Object:  object,
			Action:  action,
		})
	}

	err := c.authzSvc.RemovePolicy(ctx, reqs...)
	if err != nil {
		return fmt.Errorf("error on remove policy: %w", err)
	}

	return nil
}

// RemoveObjectPolicies drops every policy granted on object, whoever holds it.
func (c *Client) RemoveObjectPolicies(ctx context.Context, domain, object string) error {
	err := c.authzSvc.RemoveObjectPolicies(ctx, domain, object)
	if err != nil {
		return fmt.Errorf("error on remove object policies: %w", err)
	}

	return nil
}

// RemoveSubjectPolicies drops every policy granted to subject, in any domain.
func (c *Client) RemoveSubjectPolicies(ctx context.Context, subject string) error {
	err := c.authzSvc.RemoveSubjectPolicies(ctx, subject)
	if err != nil {
		return fmt.Errorf("error on remove subject policies: %w", err)
	}

	return nil
}

func (c *Client) ListObjects(ctx context.Context, domain string) ([]string, error) {
	objects, err := c.authzSvc.ListObjects(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("error on list objects: %w", err)
	}

	return objects, nil
}

func (c *Client) AddToGroup(ctx context.Context, sub string, groups ...string) error {
	err := c.authzSvc.AddToGroup(ctx, sub, groups...)
	if err != nil {
		return fmt.Errorf("error on add to group: %w", err)
	}

	return nil
}

func (c *Client) RemoveFromGroup(ctx context.Context, sub string, groups ...string) error {
	err := c.authzSvc.RemoveFromGroup(ctx, sub, groups...)
	if err != nil {
		return fmt.Errorf("error on remove from group: %w", err)
	}

	return nil
}
