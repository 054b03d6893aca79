// 脚本的静态分析：小整数、仅推送检查、签名操作计数以及可解析性检查

package txscript

// IsSmallInt 返回操作码是否为小整数，即 OP_0 或 OP_1 到 OP_16。
func IsSmallInt(op byte) bool {
	return op == OP_0 || (op >= OP_1 && op <= OP_16)
}

// AsSmallInt 以整数形式返回小整数操作码的值，调用前需保证 IsSmallInt(op) 为 true。
func AsSmallInt(op byte) int {
	if op == OP_0 {
		return 0
	}

	return int(op - (OP_1 - 1))
}

// IsPushOnlyScript 返回脚本是否只包含数据推送，并且能够完整解析。
func IsPushOnlyScript(script []byte) bool {
	tokenizer := MakeScriptTokenizer(script, false, MaxScriptElementSize)
	for tokenizer.Next() {
		// All opcodes up to OP_16 are data push instructions.
		// NOTE: This does consider OP_RESERVED to be a data push instruction,
		// but execution of OP_RESERVED will fail anyway.
		if tokenizer.Opcode() > OP_16 {
			return false
		}
	}
	return tokenizer.Err() == nil
}

// CountSigOps 返回脚本中到第一次解析失败为止的签名操作数。
// CHECKSIG 类操作计为 1；precise 为 true 时，紧跟在小整数之后的 CHECKMULTISIG
// 按该整数计数，其余情况按 MaxPubKeysPerMultiSig 计数。
func CountSigOps(script []byte, precise bool) int {
	numSigOps := 0
	tokenizer := MakeScriptTokenizer(script, false, MaxScriptElementSize)
	prevOp := byte(0xff)
	for tokenizer.Next() {
		switch tokenizer.Opcode() {
		case OP_CHECKSIG, OP_CHECKSIGVERIFY:
			numSigOps++

		case OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
			// OP_0 counts as the maximum so that multisigs with zero
			// pubkeys are never cheaper than real ones.
			if precise && prevOp >= OP_1 && prevOp <= OP_16 {
				numSigOps += AsSmallInt(prevOp)
			} else {
				numSigOps += MaxPubKeysPerMultiSig
			}
		}

		prevOp = tokenizer.Opcode()
	}

	return numSigOps
}

// CheckScriptParses 在脚本无法完整解析时返回错误
func CheckScriptParses(script []byte, minimalPush bool) error {
	tokenizer := MakeScriptTokenizer(script, minimalPush, MaxScriptElementSize)
	for tokenizer.Next() {
	}
	return tokenizer.Err()
}

// IsUnspendable 返回脚本是否在执行时必定失败：
// 以 OP_RETURN 开头、超过最大长度或者无法解析。
func IsUnspendable(script []byte) bool {
	switch {
	case len(script) > 0 && script[0] == OP_RETURN:
		return true
	case len(script) > MaxScriptSize:
		return true
	}

	return CheckScriptParses(script, false) != nil
}
