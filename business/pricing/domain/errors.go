package domain

import (
	"errors"

	"github.com/fd1az/token-price-engine/internal/apperror"
)

// ErrPoolNotFound reports that no venue exists for a token.
func ErrPoolNotFound(context string) error {
	return apperror.NotFound(apperror.CodePoolNotFound, context)
}

// ErrDecode reports state that does not match the expected layout.
func ErrDecode(context string, cause error) error {
	opts := []apperror.Option{apperror.WithContext(context)}
	if cause != nil {
		opts = append(opts, apperror.WithCause(cause))
	}
	return apperror.New(apperror.CodeDecodeFailed, opts...)
}

// ErrZeroLiquidity reports an empty side of a ratio.
func ErrZeroLiquidity(context string) error {
	return apperror.New(apperror.CodeZeroLiquidity, apperror.WithContext(context))
}

// ErrAllSourcesFailed is the only error a resolution surfaces. It wraps the
// failure of every stage.
func ErrAllSourcesFailed(token string, causes ...error) error {
	return apperror.New(apperror.CodeAllSourcesFailed,
		apperror.WithContext(token),
		apperror.WithCause(errors.Join(causes...)))
}

// IsPoolNotFound reports whether err means no venue exists.
func IsPoolNotFound(err error) bool {
	return apperror.HasCode(err, apperror.CodePoolNotFound) || apperror.HasCode(err, apperror.CodeNotFound)
}
