package casbin

import (
	"context"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/nasermirzaei89/myboard/authorization"
)

// ObjectNone stands in for an empty object, which casbin cannot store.
const ObjectNone = "-"

//go:embed model.conf
var casbinModelContent string

type AuthorizationProvider struct {
	enforcer *casbin.SyncedEnforcer
}

var _ authorization.AuthorizationProvider = (*AuthorizationProvider)(nil)

func NewAuthorizationProvider(persistAdapter persist.Adapter) (*AuthorizationProvider, error) {
	if persistAdapter == nil {
		return nil, ErrNilAdapter
	}

	casbinModel, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(casbinModel, persistAdapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)

	err = enforcer.LoadPolicy()
	if err != nil {
		return nil, fmt.Errorf("failed to load db policy: %w", err)
	}

	return &AuthorizationProvider{
		enforcer: enforcer,
	}, nil
}

func objectOrNone(object string) string {
	if object == "" {
		return ObjectNone
	}

	return object
}

func (ap *AuthorizationProvider) CheckAccess(
	_ context.Context,
	req authorization.CheckAccessRequest,
) (*authorization.CheckAccessResponse, error) {
	allowed, err := ap.enforcer.Enforce(req.Subject, req.Domain, objectOrNone(req.Object), req.Action)
	if err != nil {
		return nil, fmt.Errorf("failed to check permission: %w", err)
	}

	return &authorization.CheckAccessResponse{
		Allowed: allowed,
	}, nil
}

func (ap *AuthorizationProvider) AddPolicy(_ context.Context, reqs ...authorization.AddPolicyRequest) error {
	for _, req := range reqs {
		_, err := ap.enforcer.AddPolicy(req.Subject, req.Domain, objectOrNone(req.Object), req.Action)
		if err != nil {
			return fmt.Errorf("failed to add policy: %w", err)
		}
	}

	return nil
}

func (ap *AuthorizationProvider) AddToGroup(_ context.Context, sub string, groups ...string) error {
	for _, group := range groups {
		_, err := ap.enforcer.AddGroupingPolicy(sub, group)
		if err != nil {
			return fmt.Errorf("failed to add grouping policy: %w", err)
		}
	}

	return nil
}

func (ap *AuthorizationProvider) RemovePolicy(_ context.Context, reqs ...authorization.RemovePolicyRequest) error {
	for _, req := range reqs {
		_, err := ap.enforcer.RemovePolicy(req.Subject, req.Domain, objectOrNone(req.Object), req.Action)
		if err != nil {
			return fmt.Errorf("failed to remove policy: %w", err)
		}
	}

	return nil
}

func (ap *AuthorizationProvider) RemoveFromGroup(_ context.Context, sub string, groups ...string) error {
	for _, group := range groups {
		_, err := ap.enforcer.RemoveGroupingPolicy(sub, group)
		if err != nil {
			return fmt.Errorf("failed to remove grouping policy: %w", err)
		}
	}

	return nil
}

func (ap *AuthorizationProvider) RemoveObjectPolicies(_ context.Context, domain, object string) error {
	_, err := ap.enforcer.RemoveFilteredPolicy(1, domain, objectOrNone(object))
	if err != nil {
		return fmt.Errorf("failed to remove filtered policy: %w", err)
	}

	return nil
}

func (ap *AuthorizationProvider) RemoveSubjectPolicies(_ context.Context, subject string) error {
	_, err := ap.enforcer.RemoveFilteredPolicy(0, subject)
	if err != nil {
		return fmt.Errorf("failed to remove filtered policy: %w", err)
	}

	return nil
}

func (ap *AuthorizationProvider) ListObjects(_ context.Context, domain string) ([]string, error) {
	rules, err := ap.enforcer.GetFilteredPolicy(1, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to get filtered policy: %w", err)
	}

	seen := make(map[string]struct{}, len(rules))
	objects := make([]string, 0, len(rules))

	for _, rule := range rules {
		object := rule[2]
		if object == "*" || object == ObjectNone {
			continue
		}

		if _, ok := seen[object]; ok {
			continue
		}

		seen[object] = struct{}{}
		objects = append(objects, object)
	}

	return objects, nil
}

// AddPolicyFromCSV merges "p, ..." and "g, ..." lines into the policy. Existing rules are left alone,
// so the same content can be applied on every start.
func (ap *AuthorizationProvider) AddPolicyFromCSV(_ context.Context, casbinPolicyContent string) error {
	reader := csv.NewReader(strings.NewReader(casbinPolicyContent))
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read policy content: %w", err)
	}

	for _, record := range records {
		record = normalizePolicyRecord(record)
		if len(record) == 0 || record[0] == "" {
			continue
		}

		err = ap.addPolicyFromRecord(record)
		if err != nil {
			return fmt.Errorf("failed to add policy from record: %w", err)
		}
	}

	return nil
}

func normalizePolicyRecord(record []string) []string {
	normalized := make([]string, len(record))
	for i := range record {
		normalized[i] = strings.TrimSpace(record[i])
	}

	return normalized
}

func (ap *AuthorizationProvider) addPolicyFromRecord(record []string) error {
	params := toInterfaces(record[1:])

	switch record[0] {
	case "p":
		_, err := ap.enforcer.AddPolicy(params...)
		if err != nil {
			return fmt.Errorf("failed to add policy: %w", err)
		}
	case "g":
		_, err := ap.enforcer.AddGroupingPolicy(params...)
		if err != nil {
			return fmt.Errorf("failed to add grouping policy: %w", err)
		}
	default:
		return &UnknownPolicyTypeError{PolicyType: record[0]}
	}

	return nil
}

func toInterfaces(ss []string) []any {
	out := make([]any, len(ss))
	for i := range ss {
		out[i] = ss[i]
	}

	return out
}
