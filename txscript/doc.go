// 包文档：描述 txscript 包的用途以及各文件的内容

/*
txscript 包实现了交易输入使用的栈式脚本语言及其解释器。

脚本是字节序列，由推送数据的指令和操作码组成，从左到右执行，不提供循环。
解释器维护数据栈、备用栈和执行栈（记录 IF/ELSE 嵌套中当前是否处于执行状态），
并在每一步检查操作数、栈大小和脚本长度的限制。

# 上下文

脚本本身不知道它属于哪一笔交易。签名检查、时间锁检查以及各项限制都通过 Context 接口提供：

	type Context interface {
		MaxScriptElementSize() int
		MaxPubKeysPerMultiSig() int
		MaxScriptSize() int
		ParsePubKey(data []byte) (PubKey, KeyStatus)
		ParseSignature(pk PubKey, data []byte) (Signature, bool)
		VerifySignature(sig Signature, pk PubKey, codeSepPos uint32) bool
		CheckLockTime(v int64) bool
		CheckSequence(v int64) bool
		EnforceMinimalPush() bool
		EnforceMinimalIf() bool
	}

DefaultParams 提供了默认的限制和开关，可以嵌入到自定义的上下文中。
NoSigContext 不支持任何签名，适合执行不含签名检查的脚本。

# 执行结果

Run 返回 (true, nil) 表示脚本成功；(false, nil) 表示脚本通过 OP_RETURN 或 *VERIFY 明确失败；
其余情况返回 txscript.Error。Run 不检查最终的数据栈，需要栈顶为真的调用方使用 VerifyScript。

# 错误

该包返回的错误类型为 txscript.Error。
调用者可以通过 ErrorCode 字段以编程方式判断具体的错误，IsErrorCode 可以穿透包装后的错误进行检查。
*/
package txscript

/**

context.go				定义脚本执行所需的上下文接口以及默认参数。
doc.go					包文档。
engine.go				脚本执行引擎，负责逐条执行指令并检查各项限制。
error.go				定义脚本执行过程中的错误码和错误类型。
execstack.go			执行栈，记录条件分支的执行状态。
log.go					延迟计算的日志内容。
opcode.go				操作码表以及各操作码的实现。
script.go				脚本的静态分析：推送检查、签名操作计数等。
scriptbuilder.go		以最短编码构建脚本。
scriptnum.go			脚本数字的编码与解码。
stack.go				数据栈。
standard.go				多重签名脚本的构建与识别。
tokenizer.go			将脚本分解为操作码和数据。

*/
