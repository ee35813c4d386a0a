package model

import (
	"errors"
	"fmt"
)

type ResultCode int8

const (
	CodeUnknownError ResultCode = 0
	CodeOK           ResultCode = 1

	CodeAlreadyInitialized   ResultCode = -1
	CodeUnauthorized         ResultCode = -2
	CodeAccountMismatch      ResultCode = -3
	CodeMintMismatch         ResultCode = -4
	CodeInsufficientBalance  ResultCode = -5
	CodeUninitializedAccount ResultCode = -6
	CodeOverflow             ResultCode = -7

	CodeMalformedKey         ResultCode = -11
	CodeInvalidOperation     ResultCode = -12
	CodeDuplicateTransaction ResultCode = -13
	CodeInvalidSignature     ResultCode = -14
)

func (code ResultCode) String() string {
	messages := map[ResultCode]string{
		CodeUnknownError:         "Unknown error",
		CodeOK:                   "Operation successful",
		CodeAlreadyInitialized:   "Account already initialized",
		CodeUnauthorized:         "Signer is not authorized",
		CodeAccountMismatch:      "Account does not belong to the expected mint or owner",
		CodeMintMismatch:         "Accounts belong to different mints",
		CodeInsufficientBalance:  "Insufficient balance",
		CodeUninitializedAccount: "Account not initialized",
		CodeOverflow:             "Amount overflow",
		CodeMalformedKey:         "Malformed key",
		CodeInvalidOperation:     "Invalid operation",
		CodeDuplicateTransaction: "Transaction already processed",
		CodeInvalidSignature:     "Invalid signature",
	}

	msg, ok := messages[code]
	if !ok {
		return "Unrecognized error code"
	}
	return msg
}

// LedgerError is the failure of one operation. Two LedgerErrors match under
// errors.Is when their codes are equal.
type LedgerError struct {
	Code   ResultCode
	Op     OperationKind
	Detail string
}

func (e *LedgerError) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrAlreadyInitialized   = &LedgerError{Code: CodeAlreadyInitialized}
	ErrUnauthorized         = &LedgerError{Code: CodeUnauthorized}
	ErrAccountMismatch      = &LedgerError{Code: CodeAccountMismatch}
	ErrMintMismatch         = &LedgerError{Code: CodeMintMismatch}
	ErrInsufficientBalance  = &LedgerError{Code: CodeInsufficientBalance}
	ErrUninitializedAccount = &LedgerError{Code: CodeUninitializedAccount}
	ErrOverflow             = &LedgerError{Code: CodeOverflow}
	ErrMalformedKey         = &LedgerError{Code: CodeMalformedKey}
	ErrInvalidOperation     = &LedgerError{Code: CodeInvalidOperation}
	ErrDuplicateTransaction = &LedgerError{Code: CodeDuplicateTransaction}
	ErrInvalidSignature     = &LedgerError{Code: CodeInvalidSignature}

	ErrAccountNotFound = errors.New("account not found")
)

// Fail builds a LedgerError for op with an optional formatted detail.
func Fail(code ResultCode, op OperationKind, format string, args ...interface{}) *LedgerError {
	return &LedgerError{Code: code, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the result code carried by err. Nil maps to CodeOK and
// errors outside the taxonomy to CodeUnknownError.
func CodeOf(err error) ResultCode {
	if err == nil {
		return CodeOK
	}
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeUnknownError
}
