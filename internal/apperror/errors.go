package apperror

import (
	"errors"
	"net/http"
)

// Category groups errors by how callers should react to them.
type Category string

const (
	CategoryValidation              Category = "VALIDATION"
	CategoryNotFound                Category = "NOT_FOUND"
	CategoryConflict                Category = "CONFLICT"
	CategoryInsufficientStock       Category = "INSUFFICIENT_STOCK"
	CategoryInsufficientReservation Category = "INSUFFICIENT_RESERVATION"
	CategoryUpstreamUnavailable     Category = "UPSTREAM_UNAVAILABLE"
	CategoryInternal                Category = "INTERNAL"
)

// Error is the typed error shared by all services. Handlers translate it with MapToHTTPStatus.
type Error struct {
	category Category
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Category() Category { return e.category }
func (e *Error) Unwrap() error      { return e.Err }

// Is lets a bare category value (see Kind) match any error of that category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" {
		return false
	}
	return t.category == e.category
}

func (e *Error) HTTPStatus() int {
	switch e.category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryInsufficientStock, CategoryInsufficientReservation:
		return http.StatusUnprocessableEntity
	case CategoryUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns a category matcher for errors.Is, e.g. errors.Is(err, apperror.Kind(apperror.CategoryNotFound)).
func Kind(c Category) error { return &Error{category: c} }

func New(c Category, msg string) *Error { return &Error{category: c, Msg: msg} }

func Wrap(c Category, msg string, err error) *Error {
	return &Error{category: c, Msg: msg, Err: err}
}

func Validation(msg string) *Error { return New(CategoryValidation, msg) }
func NotFound(msg string) *Error   { return New(CategoryNotFound, msg) }
func Conflict(msg string) *Error   { return New(CategoryConflict, msg) }

func Upstream(msg string, err error) *Error {
	return Wrap(CategoryUpstreamUnavailable, msg, err)
}

func Internal(msg string, err error) *Error {
	return Wrap(CategoryInternal, msg, err)
}

// CategoryOf finds the first typed error in the chain. Untyped errors are INTERNAL.
func CategoryOf(err error) Category {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.category
	}
	return CategoryInternal
}

// MapToHTTPStatus translates any error into status code, category and message.
func MapToHTTPStatus(err error) (int, Category, string) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus(), appErr.category, err.Error()
	}
	return http.StatusInternalServerError, CategoryInternal, "unexpected error"
}
