// 脚本执行引擎：逐条解码并执行指令，维护数据栈、备用栈和执行栈
package txscript

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// MaxOpsPerScript 是单个脚本中允许的非推送操作的最大数量
	MaxOpsPerScript = 201

	// MaxStackSize 是数据栈和备用栈中项目总数的最大值
	MaxStackSize = 1000

	// NoCodeSeparator 表示脚本中还没有执行过 OP_CODESEPARATOR
	NoCodeSeparator uint32 = 0xffffffff
)

// Engine 是执行脚本的虚拟机。
// 一个 Engine 只执行一次脚本，不在多次调用之间保留任何状态。
type Engine struct {
	ctx       Context
	script    []byte
	tokenizer ScriptTokenizer

	dstack    stack     // 数据栈
	astack    stack     // 备用栈
	condStack execStack // 执行栈

	numOps      int
	lastCodeSep uint32

	done   bool // 脚本是否已结束
	result bool // 结束时的结果
}

// NewEngine 返回执行 script 的新引擎，initial 为数据栈的初始内容（栈底在前），
// 通常是见证数据。脚本超过上下文的最大长度时在执行前返回 ErrScriptTooBig。
func NewEngine(ctx Context, script []byte, initial [][]byte) (*Engine, error) {
	if ctx == nil {
		return nil, scriptError(ErrInternal, "script context is nil")
	}
	if len(script) > ctx.MaxScriptSize() {
		str := fmt.Sprintf("script size %d is larger than max allowed size %d",
			len(script), ctx.MaxScriptSize())
		return nil, scriptError(ErrScriptTooBig, str)
	}

	vm := &Engine{
		ctx:         ctx,
		script:      script,
		tokenizer:   MakeScriptTokenizer(script, ctx.EnforceMinimalPush(), ctx.MaxScriptElementSize()),
		lastCodeSep: NoCodeSeparator,
	}
	vm.dstack.verifyMinimalData = ctx.EnforceMinimalPush()
	vm.astack.verifyMinimalData = ctx.EnforceMinimalPush()

	for i, item := range initial {
		if len(item) > ctx.MaxScriptElementSize() {
			str := fmt.Sprintf("initial stack item %d has size %d which exceeds max allowed size %d",
				i, len(item), ctx.MaxScriptElementSize())
			return nil, scriptError(ErrPushSize, str)
		}
		vm.dstack.PushByteArray(item)
	}
	if vm.dstack.Depth() > MaxStackSize {
		str := fmt.Sprintf("initial stack size %d exceeds max allowed size %d",
			vm.dstack.Depth(), MaxStackSize)
		return nil, scriptError(ErrStackOverflow, str)
	}

	return vm, nil
}

// isBranchExecuting 判断当前是否处于执行状态
func (vm *Engine) isBranchExecuting() bool {
	return vm.condStack.executing()
}

// executeOpcode 执行一条指令。
//
// 非法操作码总是失败；控制流操作码即使在未执行的分支中也会执行，以跟踪嵌套层次；
// 其余操作码在未执行的分支中被跳过。
func (vm *Engine) executeOpcode(op *opcode, data []byte) error {
	if op.class == classIllegal {
		return op.opfunc(op, data, vm)
	}

	// Note that this includes OP_RESERVED which counts as a push operation.
	if op.value > OP_16 {
		vm.numOps++
		if vm.numOps > MaxOpsPerScript {
			str := fmt.Sprintf("exceeded max operation limit of %d", MaxOpsPerScript)
			return scriptError(ErrTooManyOperations, str)
		}
	}

	if !vm.isBranchExecuting() && op.class != classControl {
		return nil
	}

	return op.opfunc(op, data, vm)
}

// annotate 在错误中记录出错的操作码、位置和栈深度
func (vm *Engine) annotate(err error, op *opcode) error {
	var serr Error
	if !errors.As(err, &serr) {
		return err
	}
	serr.OpcodePos = vm.tokenizer.OpcodePosition()
	if op != nil {
		serr.Opcode = op.name
	}
	serr.StackDepth = vm.dstack.Depth()
	return serr
}

// Step 执行下一条指令。
// 脚本结束（成功、明确失败或出错）时 done 为 true；出错时返回错误。
func (vm *Engine) Step() (done bool, err error) {
	if vm.done {
		return true, nil
	}

	if !vm.tokenizer.Next() {
		if err := vm.tokenizer.Err(); err != nil {
			vm.done = true
			return true, vm.annotate(err, nil)
		}

		// The script is complete.  Every conditional must be closed.
		vm.done = true
		if !vm.condStack.isEmpty() {
			str := fmt.Sprintf("end of script reached in conditional execution with %d open branches",
				vm.condStack.depth())
			return true, vm.annotate(scriptError(ErrUnbalancedIfElse, str), nil)
		}
		vm.result = true
		return true, nil
	}

	op := &opcodeArray[vm.tokenizer.Opcode()]
	if err := vm.executeOpcode(op, vm.tokenizer.Data()); err != nil {
		vm.done = true
		var ef evalFalse
		if errors.As(err, &ef) {
			logrus.Tracef("[Step] script failed: %s", ef.reason)
			vm.result = false
			return true, nil
		}
		return true, vm.annotate(err, op)
	}

	combinedStackSize := vm.dstack.Depth() + vm.astack.Depth()
	if combinedStackSize > MaxStackSize {
		vm.done = true
		str := fmt.Sprintf("combined stack size %d > max allowed %d", combinedStackSize, MaxStackSize)
		return true, vm.annotate(scriptError(ErrStackOverflow, str), op)
	}

	return false, nil
}

// Execute 执行整个脚本。
// 返回 (true, nil) 表示脚本成功，(false, nil) 表示脚本通过 OP_RETURN 或 *VERIFY 明确失败，
// 其它情况返回错误。成功与否不取决于数据栈上剩余的内容，需要检查栈顶的调用方使用 VerifyScript。
func (vm *Engine) Execute() (bool, error) {
	done := false
	for !done {
		logrus.Tracef("%v", newLogClosure(func() string {
			return fmt.Sprintf("stepping #%d at byte %d", vm.tokenizer.OpcodePosition()+1,
				vm.tokenizer.ByteIndex())
		}))

		var err error
		done, err = vm.Step()
		if err != nil {
			return false, err
		}

		logrus.Tracef("%v", newLogClosure(func() string {
			var dstr, astr string
			if vm.dstack.Depth() != 0 {
				dstr = "Stack:\n" + vm.dstack.String()
			}
			if vm.astack.Depth() != 0 {
				astr = "AltStack:\n" + vm.astack.String()
			}
			return dstr + astr
		}))
	}

	return vm.result, nil
}

// GetStack 返回数据栈的内容，栈底在前
func (vm *Engine) GetStack() [][]byte {
	return getStack(&vm.dstack)
}

// GetAltStack 返回备用栈的内容，栈底在前
func (vm *Engine) GetAltStack() [][]byte {
	return getStack(&vm.astack)
}

// LastCodeSeparator 返回最后执行的 OP_CODESEPARATOR 的位置，没有时为 NoCodeSeparator
func (vm *Engine) LastCodeSeparator() uint32 {
	return vm.lastCodeSep
}

// getStack 返回栈内容的副本
func getStack(s *stack) [][]byte {
	array := make([][]byte, s.Depth())
	copy(array, s.stk)
	return array
}

// Run 使用给定的上下文执行脚本，initial 为数据栈的初始内容。
// 语义见 Engine.Execute。
func Run(ctx Context, script []byte, initial [][]byte) (bool, error) {
	vm, err := NewEngine(ctx, script, initial)
	if err != nil {
		return false, err
	}
	return vm.Execute()
}

// VerifyScript 执行脚本并要求结果为成功且数据栈顶为真，
// 否则返回 ErrVerifyFail。返回成功时的最终数据栈。
func VerifyScript(ctx Context, script []byte, initial [][]byte) ([][]byte, error) {
	vm, err := NewEngine(ctx, script, initial)
	if err != nil {
		return nil, err
	}
	ok, err := vm.Execute()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, scriptError(ErrVerifyFail, "script terminated with a false result")
	}

	top, err := vm.dstack.PeekBool(0)
	if err != nil {
		return nil, scriptError(ErrVerifyFail, "script finished with an empty stack")
	}
	if !top {
		return nil, scriptError(ErrVerifyFail, "script finished with a false stack top")
	}
	return vm.GetStack(), nil
}
