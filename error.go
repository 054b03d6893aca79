// 交易验证的规则错误
package bpfsutxo

import (
	"errors"
	"fmt"
)

// ErrorCode 标识一种交易规则错误
type ErrorCode int

// 这些常量用于标识特定的 TxRuleError
const (
	// ErrInvalidSigHash indicates a signature hash type that is not one of
	// the defined output modes optionally combined with anyone-can-pay.
	ErrInvalidSigHash ErrorCode = iota

	// ErrInputIndex indicates an input index outside the transaction.
	ErrInputIndex

	// ErrSpentOutputsMismatch indicates that the number of spent outputs
	// does not match the number of inputs.
	ErrSpentOutputsMismatch

	// ---------------------------
	// 结构检查
	// ---------------------------

	// ErrNoInputs indicates a transaction without any inputs.
	ErrNoInputs

	// ErrNoOutputs indicates a transaction without any outputs.
	ErrNoOutputs

	// ErrTooManyInputs indicates more inputs than the validator allows.
	ErrTooManyInputs

	// ErrTooManyOutputs indicates more outputs than the validator allows.
	ErrTooManyOutputs

	// ErrDuplicateInput indicates two inputs spending the same outpoint.
	ErrDuplicateInput

	// ErrOutputCollision indicates an output whose outpoint is already
	// created by this transaction or already present in the store.
	ErrOutputCollision

	// ErrScriptTooLarge indicates a witness or lock larger than the
	// maximum script size.
	ErrScriptTooLarge

	// ErrInvalidDestination indicates an output destination with a
	// malformed payload.
	ErrInvalidDestination

	// ---------------------------
	// 花费授权
	// ---------------------------

	// ErrUnexpectedLock indicates a lock script on an input spending a
	// pay-to-pubkey output.
	ErrUnexpectedLock

	// ErrSignatureInvalid indicates a pay-to-pubkey spend whose signature
	// does not verify.
	ErrSignatureInvalid

	// ErrScriptHashMismatch indicates a lock script whose hash differs from
	// the commitment in the spent output.
	ErrScriptHashMismatch

	// ErrScriptFailed indicates a pay-to-script-hash spend whose script
	// failed to execute successfully.
	ErrScriptFailed

	// ErrWitnessNotPushOnly indicates a pay-to-script-hash witness that
	// contains anything other than data pushes.
	ErrWitnessNotPushOnly

	// ErrPoolRejected indicates that the programmable pool rejected a
	// contract creation or call.
	ErrPoolRejected

	// ---------------------------
	// 金额与代币
	// ---------------------------

	// ErrValueOverflow indicates a value or token sum that overflows.
	ErrValueOverflow

	// ErrInsufficientFunds indicates outputs spending more than the inputs
	// provide for the native value or a token.
	ErrInsufficientFunds

	// ErrInvalidToken indicates a malformed token payload.
	ErrInvalidToken

	// ---------------------------
	// 内存池与策略
	// ---------------------------

	// ErrNonStandard indicates a transaction rejected by standardness
	// policy.
	ErrNonStandard

	// ErrAlreadyKnown indicates a transaction already in the memory pool.
	ErrAlreadyKnown

	// ErrDoubleSpend indicates a transaction spending an outpoint already
	// spent by a pending transaction.
	ErrDoubleSpend

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// errorCodeStrings 是 ErrorCode 到可读名称的映射
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidSigHash:       "ErrInvalidSigHash",
	ErrInputIndex:           "ErrInputIndex",
	ErrSpentOutputsMismatch: "ErrSpentOutputsMismatch",
	ErrNoInputs:             "ErrNoInputs",
	ErrNoOutputs:            "ErrNoOutputs",
	ErrTooManyInputs:        "ErrTooManyInputs",
	ErrTooManyOutputs:       "ErrTooManyOutputs",
	ErrDuplicateInput:       "ErrDuplicateInput",
	ErrOutputCollision:      "ErrOutputCollision",
	ErrScriptTooLarge:       "ErrScriptTooLarge",
	ErrInvalidDestination:   "ErrInvalidDestination",
	ErrUnexpectedLock:       "ErrUnexpectedLock",
	ErrSignatureInvalid:     "ErrSignatureInvalid",
	ErrScriptHashMismatch:   "ErrScriptHashMismatch",
	ErrScriptFailed:         "ErrScriptFailed",
	ErrWitnessNotPushOnly:   "ErrWitnessNotPushOnly",
	ErrPoolRejected:         "ErrPoolRejected",
	ErrValueOverflow:        "ErrValueOverflow",
	ErrInsufficientFunds:    "ErrInsufficientFunds",
	ErrInvalidToken:         "ErrInvalidToken",
	ErrNonStandard:          "ErrNonStandard",
	ErrAlreadyKnown:         "ErrAlreadyKnown",
	ErrDoubleSpend:          "ErrDoubleSpend",
}

// String 返回 ErrorCode 的可读名称
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// TxRuleError 标识交易违反的规则。Err 保存导致该错误的底层错误，例如脚本错误。
type TxRuleError struct {
	ErrorCode   ErrorCode // 错误代码
	Description string    // 人类可读的错误描述
	Err         error     // 底层错误，可能为 nil
}

// Error 满足 error 接口
func (e TxRuleError) Error() string {
	if e.Err == nil {
		return e.Description
	}
	return fmt.Sprintf("%s: %v", e.Description, e.Err)
}

// Unwrap 返回底层错误
func (e TxRuleError) Unwrap() error {
	return e.Err
}

// ruleError 使用给定的错误代码和描述创建一个 TxRuleError
func ruleError(c ErrorCode, desc string) TxRuleError {
	return TxRuleError{ErrorCode: c, Description: desc}
}

// wrapRuleError 创建一个包装底层错误的 TxRuleError
func wrapRuleError(c ErrorCode, desc string, err error) TxRuleError {
	return TxRuleError{ErrorCode: c, Description: desc, Err: err}
}

// IsRuleError 判断 err 是否为给定错误代码的 TxRuleError
func IsRuleError(err error, c ErrorCode) bool {
	var rerr TxRuleError
	return errors.As(err, &rerr) && rerr.ErrorCode == c
}
