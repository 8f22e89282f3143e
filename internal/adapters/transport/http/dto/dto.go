package dto

import (
	"bytes"
	"encoding/json"
	"time"
)

type RegisterDTO struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email"    validate:"required,basicemail"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginDTO accepts either identifier+password or a refresh token alone.
type LoginDTO struct {
	Identifier   string `json:"identifier"    validate:"required"`
	Password     string `json:"password"      validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"-"`
	ClientIP     string `json:"-"             validate:"-"`
}

type TokenDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UpdateUserDTO struct {
	Username         *string             `json:"username"`
	Email            *string             `json:"email"`
	Password         *string             `json:"password"`
	Role             *string             `json:"role"`
	TwoFactorEnabled *bool               `json:"two_factor_enabled"`
	EmailVerifiedAt  Nullable[time.Time] `json:"email_verified_at"`
	LastLoginAt      Nullable[time.Time] `json:"last_login_at"`
	LastLoginIP      Nullable[string]    `json:"last_login_ip"`
}

// Nullable tells an absent JSON field (Set=false) apart from an explicit
// null (Set=true, Value=nil).
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func Of[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}
