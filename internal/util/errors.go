package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// ErrorKind 错误分类，决定对外的 HTTP 状态码
type ErrorKind string

const (
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindConflict        ErrorKind = "CONFLICT"
	KindBadRequest      ErrorKind = "BAD_REQUEST"
	KindInternal        ErrorKind = "INTERNAL"
	KindForbidden       ErrorKind = "FORBIDDEN"
	KindPaymentRequired ErrorKind = "PAYMENT_REQUIRED"
)

// AppError 业务错误，Code 为机器可读的细分原因
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is 按 Kind + Code 比较，便于对哨兵错误使用 errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func (e *AppError) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func NewError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func NotFoundError(message string) *AppError {
	return NewError(KindNotFound, "NOT_FOUND", message)
}

func ConflictError(message string) *AppError {
	return NewError(KindConflict, "CONFLICT", message)
}

func BadRequestError(code, message string) *AppError {
	return NewError(KindBadRequest, code, message)
}

func InternalError(err error) *AppError {
	return &AppError{Kind: KindInternal, Code: "INTERNAL", Message: "internal error", Err: err}
}

var (
	ErrUserNotFound           = NotFoundError("user not found")
	ErrEmailRegistered        = ConflictError("email already registered")
	ErrInvalidCredentials     = NewError(KindBadRequest, "INVALID_CREDENTIALS", "invalid credentials")
	ErrPermissionDenied       = NewError(KindForbidden, "FORBIDDEN", "permission denied")
	ErrCourseNotFound         = NotFoundError("course not found")
	ErrModuleNotFound         = NotFoundError("module not found")
	ErrLessonNotFound         = NotFoundError("lesson not found")
	ErrQuizNotFound           = NotFoundError("quiz not found")
	ErrQuestionNotFound       = NotFoundError("question not found")
	ErrEnrollmentNotFound     = NotFoundError("enrollment not found")
	ErrPaymentNotFound        = NotFoundError("payment not found")
	ErrCertificateNotFound    = NotFoundError("certificate not found")
	ErrAlreadyEnrolled        = NewError(KindConflict, "ALREADY_ENROLLED", "user is already enrolled in this course")
	ErrCourseInactive         = BadRequestError("COURSE_INACTIVE", "course is not active")
	ErrNotEnrolled            = BadRequestError("NOT_ENROLLED", "user is not enrolled in this course")
	ErrPrerequisiteIncomplete = BadRequestError("PREREQUISITE_INCOMPLETE", "complete previous lesson first")
	ErrOutOfRange             = BadRequestError("OUT_OF_RANGE", "order is out of range")
	ErrBadParent              = BadRequestError("BAD_PARENT", "item does not belong to the given parent")
	ErrQuizHasNoQuestions     = BadRequestError("QUIZ_EMPTY", "quiz has no questions")
	ErrPaymentRequired        = NewError(KindPaymentRequired, "PAYMENT_REQUIRED", "payment is required for this course")
	ErrCourseNotCompleted     = BadRequestError("COURSE_NOT_COMPLETED", "course is not completed")
	ErrFreeCourse             = BadRequestError("FREE_COURSE", "course does not require payment")
)

// AsAppError 把任意错误归类为 AppError
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &AppError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "resource not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &AppError{Kind: KindConflict, Code: "CONFLICT", Message: "resource already exists", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Kind: KindInternal, Code: "TIMEOUT", Message: "operation timed out", Err: err}
	}
	return InternalError(err)
}

// Wrapf 保留错误分类的同时追加上下文
func Wrapf(base *AppError, format string, args ...any) *AppError {
	return &AppError{Kind: base.Kind, Code: base.Code, Message: fmt.Sprintf(format, args...), Err: base.Err}
}
