package casbin

import "errors"

var ErrNilAdapter = errors.New("casbin persist adapter must not be nil")

type UnknownPolicyTypeError struct {
	PolicyType string
}

func (err UnknownPolicyTypeError) Error() string {
	return "unknown policy type: " + err.PolicyType
}
