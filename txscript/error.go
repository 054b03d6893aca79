// 定义脚本引擎返回的错误类型和错误代码
package txscript

import (
	"errors"
	"fmt"
)

// ErrorCode 标识一种脚本错误
type ErrorCode int

// 这些常量用于标识特定的 Error
const (
	// ErrInternal is returned if internal consistency checks fail.
	ErrInternal ErrorCode = iota

	// ---------------------------
	// 解码错误
	// ---------------------------

	// ErrNonMinimalPush is returned when a data push does not use the
	// shortest encoding and minimal pushes are enforced.
	ErrNonMinimalPush

	// ErrEarlyEndOfScript is returned when a push length prefix or its
	// payload runs past the end of the script.
	ErrEarlyEndOfScript

	// ErrScriptTooBig is returned if a script is larger than the maximum
	// script size of the context.
	ErrScriptTooBig

	// ErrPushSize is returned if a data push is larger than the maximum
	// element size of the context.
	ErrPushSize

	// ---------------------------
	// 运行时错误
	// ---------------------------

	// ErrNumericOverflow is returned when a stack item interpreted as a
	// number is longer than the allowed number of bytes.
	ErrNumericOverflow

	// ErrIllegalOp is returned when an illegal opcode is encountered,
	// whether or not the branch is executing.
	ErrIllegalOp

	// ErrUnbalancedIfElse is returned when an OP_ELSE or OP_ENDIF has no
	// matching OP_IF, or when an OP_IF is never closed.
	ErrUnbalancedIfElse

	// ErrNotEnoughElementsOnStack is returned when an opcode needs more
	// items than the stack holds.
	ErrNotEnoughElementsOnStack

	// ErrInvalidOperand is returned when an operand has a disallowed value
	// such as a non-minimal boolean under minimal-if or a negative index.
	ErrInvalidOperand

	// ErrVerifyFail is returned when a script leaves a false or missing
	// top item and a truthy result is required.
	ErrVerifyFail

	// ErrSignatureFormat is returned when a non-empty signature cannot be
	// parsed for the key type it is checked against.
	ErrSignatureFormat

	// ErrPubkeyFormat is returned when a public key cannot be parsed and
	// is not a reserved key type.
	ErrPubkeyFormat

	// ErrTimeLock is returned when an absolute or relative lock-time check
	// is not satisfied.
	ErrTimeLock

	// ErrTooManyOperations is returned when a script exceeds the maximum
	// number of non-push operations.
	ErrTooManyOperations

	// ErrStackOverflow is returned when the combined data and alt stack
	// size exceeds MaxStackSize.
	ErrStackOverflow

	// ---------------------------
	// 标准脚本错误
	// ---------------------------

	// ErrNotMultisigScript is returned when a script is expected to be a
	// standard multisig script and is not.
	ErrNotMultisigScript

	// ErrTooManyRequiredSigs is returned when a multisig script requires
	// more signatures than it has public keys.
	ErrTooManyRequiredSigs

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// errorCodeStrings 错误代码到可读字符串的映射
var errorCodeStrings = map[ErrorCode]string{
	ErrInternal:                 "ErrInternal",
	ErrNonMinimalPush:           "ErrNonMinimalPush",
	ErrEarlyEndOfScript:         "ErrEarlyEndOfScript",
	ErrScriptTooBig:             "ErrScriptTooBig",
	ErrPushSize:                 "ErrPushSize",
	ErrNumericOverflow:          "ErrNumericOverflow",
	ErrIllegalOp:                "ErrIllegalOp",
	ErrUnbalancedIfElse:         "ErrUnbalancedIfElse",
	ErrNotEnoughElementsOnStack: "ErrNotEnoughElementsOnStack",
	ErrInvalidOperand:           "ErrInvalidOperand",
	ErrVerifyFail:               "ErrVerifyFail",
	ErrSignatureFormat:          "ErrSignatureFormat",
	ErrPubkeyFormat:             "ErrPubkeyFormat",
	ErrTimeLock:                 "ErrTimeLock",
	ErrTooManyOperations:        "ErrTooManyOperations",
	ErrStackOverflow:            "ErrStackOverflow",
	ErrNotMultisigScript:        "ErrNotMultisigScript",
	ErrTooManyRequiredSigs:      "ErrTooManyRequiredSigs",
}

// String 返回 ErrorCode 的可读名称
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error 标识脚本相关的错误。
// OpcodePos、Opcode 和 StackDepth 记录出错时的执行位置，仅用于诊断，
// 不影响控制流。解码阶段的错误 OpcodePos 为 -1。
type Error struct {
	ErrorCode   ErrorCode // 错误代码
	Description string    // 人类可读的错误描述
	OpcodePos   int32     // 出错操作码在脚本中的序号
	Opcode      string    // 出错操作码的名称
	StackDepth  int32     // 出错时数据栈的深度
}

// Error 满足 error 接口并打印人类可读的错误
func (e Error) Error() string {
	if e.Opcode == "" {
		return e.Description
	}
	return fmt.Sprintf("%s (opcode %s at #%d, stack depth %d)", e.Description,
		e.Opcode, e.OpcodePos, e.StackDepth)
}

// scriptError 使用给定的错误代码和描述创建一个 Error
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc, OpcodePos: -1}
}

// IsErrorCode 判断 err 是否为给定错误代码的 Error
func IsErrorCode(err error, c ErrorCode) bool {
	var serr Error
	return errors.As(err, &serr) && serr.ErrorCode == c
}
