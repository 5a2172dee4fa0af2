// Package service 包含了应用的业务逻辑层。
package service

import "errors"

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrSiteNotFound       = errors.New("site not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidLead        = errors.New("lead must include an email or a phone number")
)
