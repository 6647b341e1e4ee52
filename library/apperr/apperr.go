// Package apperr classifies errors into user facing categories.
package apperr

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/library/db/docstore"
)

// Category buckets an error by its origin
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryAuth       Category = "auth"
	CategoryValidation Category = "validation"
	CategoryDatabase   Category = "database"
	CategorySecurity   Category = "security"
	CategoryNotFound   Category = "not_found"
	CategoryRateLimit  Category = "rate_limit"
	CategoryUnknown    Category = "unknown"
)

// Severity of a classified error
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var (
	// ErrValidation bad user input
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized missing or bad credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden authenticated but not allowed
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited too many requests
	ErrRateLimited = errors.New("rate limited")
	// ErrPanic marks errors recovered from a panic
	ErrPanic = errors.New("panic")
)

// Validation returns an error wrapping ErrValidation
func Validation(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// Unauthorized returns an error wrapping ErrUnauthorized
func Unauthorized(format string, args ...any) error {
	return errors.Wrapf(ErrUnauthorized, format, args...)
}

// Forbidden returns an error wrapping ErrForbidden
func Forbidden(format string, args ...any) error {
	return errors.Wrapf(ErrForbidden, format, args...)
}

// RateLimited returns an error wrapping ErrRateLimited
func RateLimited(format string, args ...any) error {
	return errors.Wrapf(ErrRateLimited, format, args...)
}

// IsValidation reports whether err wraps ErrValidation
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// Classification of one error
type Classification struct {
	Category Category
	Severity Severity
}

var keywordRules = []struct {
	category Category
	keywords []string
}{
	{CategorySecurity, []string{"permission", "forbidden", "captcha", "turnstile", "csrf"}},
	{CategoryAuth, []string{"unauthorized", "auth", "token", "credential", "password"}},
	{CategoryValidation, []string{"invalid", "required", "validation", "too long"}},
	{CategoryNetwork, []string{"network", "timeout", "connection", "fetch"}},
	{CategoryDatabase, []string{"firestore", "mongo", "document", "database", "transaction"}},
}

// Classify put err into a category with a severity.
// Sentinels are checked first, then keywords in the message.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Category: CategoryUnknown, Severity: SeverityLow}
	}

	cat := sentinelCategory(err)
	if cat == CategoryUnknown {
		msg := strings.ToLower(err.Error())
	RULES:
		for _, rule := range keywordRules {
			for _, kw := range rule.keywords {
				if strings.Contains(msg, kw) {
					cat = rule.category
					break RULES
				}
			}
		}
	}

	sev := severityOf(cat)
	if errors.Is(err, ErrPanic) {
		sev = SeverityCritical
	}

	return Classification{Category: cat, Severity: sev}
}

func sentinelCategory(err error) Category {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrUnauthorized):
		return CategoryAuth
	case errors.Is(err, ErrForbidden):
		return CategorySecurity
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimit
	case docstore.IsNotFound(err):
		return CategoryNotFound
	case errors.Is(err, docstore.ErrAlreadyExists):
		return CategoryValidation
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return CategoryNetwork
	default:
		return CategoryUnknown
	}
}

func severityOf(cat Category) Severity {
	switch cat {
	case CategorySecurity, CategoryDatabase:
		return SeverityHigh
	case CategoryValidation, CategoryNotFound, CategoryRateLimit:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Log writes err with a level chosen by its severity and returns the classification.
func Log(logger logSDK.Logger, err error, fields ...zap.Field) Classification {
	c := Classify(err)
	fields = append(fields,
		zap.Error(err),
		zap.String("category", string(c.Category)),
		zap.String("severity", string(c.Severity)),
	)

	switch c.Severity {
	case SeverityLow:
		logger.Info("request error", fields...)
	case SeverityMedium:
		logger.Warn("request error", fields...)
	default:
		logger.Error("request error", fields...)
	}

	return c
}

// HTTPStatus maps a category to a response status
func HTTPStatus(c Category) int {
	switch c {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuth:
		return http.StatusUnauthorized
	case CategorySecurity:
		return http.StatusForbidden
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryRateLimit:
		return http.StatusTooManyRequests
	case CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
