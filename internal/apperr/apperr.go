// Package apperr 定义应用层错误分类，每类错误带有错误码与 HTTP 状态码。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	CodeValidation        Code = "VALIDATION"          // 400
	CodeUnauthorized      Code = "UNAUTHORIZED"        // 401
	CodeNotFound          Code = "NOT_FOUND"           // 404
	CodeInvalidState      Code = "INVALID_STATE"       // 409
	CodeEmptyImport       Code = "EMPTY_IMPORT"        // 422
	CodeNoEligibleEntries Code = "NO_ELIGIBLE_ENTRIES" // 422
	CodeRateLimited       Code = "RATE_LIMITED"        // 429
	CodeStore             Code = "STORE"               // 500
)

// Error 带错误码的应用错误
type Error struct {
	Code    Code
	Status  int
	Message string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation 输入校验失败，不会写入存储
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

// EmptyImport CSV 中没有任何合法行
func EmptyImport() *Error {
	return &Error{Code: CodeEmptyImport, Status: http.StatusUnprocessableEntity, Message: "CSV 中没有可导入的影片"}
}

// NoEligibleEntries 片单为空，无法抽取
func NoEligibleEntries() *Error {
	return &Error{Code: CodeNoEligibleEntries, Status: http.StatusUnprocessableEntity, Message: "片单中没有可抽取的影片"}
}

// NotFound 片单不存在
func NotFound(listID string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf("片单不存在: %s", listID)}
}

// InvalidState 当前导航状态不允许该操作
func InvalidState(from, action string) *Error {
	return &Error{Code: CodeInvalidState, Status: http.StatusConflict, Message: fmt.Sprintf("状态 %s 下不能执行 %s", from, action)}
}

// Unauthorized 身份未解析或凭证错误
func Unauthorized(msg string) *Error {
	if msg == "" {
		msg = "未登录"
	}
	return &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

// RateLimited 匿名登录过于频繁
func RateLimited() *Error {
	return &Error{Code: CodeRateLimited, Status: http.StatusTooManyRequests, Message: "请求过于频繁，请稍后再试"}
}

// Store 存储层失败，对外只给出通用消息
func Store(op string, err error) *Error {
	return &Error{Code: CodeStore, Status: http.StatusInternalServerError, Message: "存储操作失败，请稍后重试", Op: op, Err: err}
}

// CodeOf 取出错误链中的错误码，非应用错误返回空串
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is 判断错误链中是否包含指定错误码
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// StatusOf 映射为 HTTP 状态码，未知错误视为 500
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// MessageOf 面向用户的错误消息
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "服务器内部错误"
}
