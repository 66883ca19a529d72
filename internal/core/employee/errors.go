package employee

import "errors"

var (
	ErrInvalidCode               = errors.New("employee: invalid employee code")
	ErrInvalidUserID             = errors.New("employee: invalid user id")
	ErrInvalidName               = errors.New("employee: invalid name")
	ErrInvalidEmail              = errors.New("employee: invalid email")
	ErrInvalidPhone              = errors.New("employee: invalid phone")
	ErrInvalidPosition           = errors.New("employee: invalid position")
	ErrInvalidStatus             = errors.New("employee: invalid status")
	ErrInvalidPageSize           = errors.New("employee: invalid page size")
	ErrInvalidPageToken          = errors.New("employee: invalid page token")
	ErrEmployeeNotFound          = errors.New("employee: not found")
	ErrEmployeeCodeAlreadyExists = errors.New("employee: employee code already exists")
	ErrEmailAlreadyExists        = errors.New("employee: email already exists")
	ErrUserAlreadyLinked         = errors.New("employee: user already linked to another employee")
)
