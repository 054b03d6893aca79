// 操作码的定义、分类以及各操作码的执行逻辑
package txscript

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/ripemd160"
)

// opcodeClass 是操作码的分类，决定解释器如何处理它
type opcodeClass uint8

const (
	classNoOp      opcodeClass = iota // 无操作
	classIllegal                      // 非法操作码，即使在未执行的分支中也会失败
	classReturn                       // 执行到时脚本以失败结束
	classPushNum                      // 推送小整数
	classPushBytes                    // 推送数据，数据在解码时已取出
	classAltStack                     // 数据栈与备用栈之间移动
	classSignature                    // 签名检查与代码分隔符
	classControl                      // IF/NOTIF/ELSE/ENDIF
	classOrdinary                     // 栈操作、算术、比较、哈希
)

// String 返回分类的名称
func (c opcodeClass) String() string {
	switch c {
	case classNoOp:
		return "NoOp"
	case classIllegal:
		return "IllegalOp"
	case classReturn:
		return "ReturnOp"
	case classPushNum:
		return "PushNum"
	case classPushBytes:
		return "PushBytes"
	case classAltStack:
		return "AltStack"
	case classSignature:
		return "Signature"
	case classControl:
		return "ControlFlow"
	case classOrdinary:
		return "Ordinary"
	}
	return "Unknown"
}

// opcode 描述一个操作码。
// length 为 1 表示没有附带数据；大于 1 表示 OP_DATA_N，包含操作码本身共 length 字节；
// 小于 0 表示 OP_PUSHDATA1/2/4，-length 为长度前缀的字节数。
type opcode struct {
	value  byte
	name   string
	length int
	class  opcodeClass
	opfunc func(*opcode, []byte, *Engine) error
}

// 操作码的值。OP_DATA_N（N 为 1 到 75）的值就是 N。
const (
	OP_0                   = 0x00 // 0 - 推送空字节串
	OP_FALSE               = 0x00 // 0 - OP_0 的别名
	OP_DATA_1              = 0x01 // 1 - 接下来的 1 个字节是数据
	OP_DATA_2              = 0x02 // 2
	OP_DATA_3              = 0x03 // 3
	OP_DATA_4              = 0x04 // 4
	OP_DATA_20             = 0x14 // 20
	OP_DATA_32             = 0x20 // 32
	OP_DATA_33             = 0x21 // 33
	OP_DATA_75             = 0x4b // 75 - 接下来的 75 个字节是数据
	OP_PUSHDATA1           = 0x4c // 76 - 1 字节长度前缀
	OP_PUSHDATA2           = 0x4d // 77 - 2 字节长度前缀
	OP_PUSHDATA4           = 0x4e // 78 - 4 字节长度前缀
	OP_1NEGATE             = 0x4f // 79
	OP_RESERVED            = 0x50 // 80
	OP_1                   = 0x51 // 81
	OP_TRUE                = 0x51 // 81 - OP_1 的别名
	OP_2                   = 0x52 // 82
	OP_3                   = 0x53 // 83
	OP_4                   = 0x54 // 84
	OP_5                   = 0x55 // 85
	OP_6                   = 0x56 // 86
	OP_7                   = 0x57 // 87
	OP_8                   = 0x58 // 88
	OP_9                   = 0x59 // 89
	OP_10                  = 0x5a // 90
	OP_11                  = 0x5b // 91
	OP_12                  = 0x5c // 92
	OP_13                  = 0x5d // 93
	OP_14                  = 0x5e // 94
	OP_15                  = 0x5f // 95
	OP_16                  = 0x60 // 96
	OP_NOP                 = 0x61 // 97
	OP_VER                 = 0x62 // 98
	OP_IF                  = 0x63 // 99
	OP_NOTIF               = 0x64 // 100
	OP_VERIF               = 0x65 // 101
	OP_VERNOTIF            = 0x66 // 102
	OP_ELSE                = 0x67 // 103
	OP_ENDIF               = 0x68 // 104
	OP_VERIFY              = 0x69 // 105
	OP_RETURN              = 0x6a // 106
	OP_TOALTSTACK          = 0x6b // 107
	OP_FROMALTSTACK        = 0x6c // 108
	OP_2DROP               = 0x6d // 109
	OP_2DUP                = 0x6e // 110
	OP_3DUP                = 0x6f // 111
	OP_2OVER               = 0x70 // 112
	OP_2ROT                = 0x71 // 113
	OP_2SWAP               = 0x72 // 114
	OP_IFDUP               = 0x73 // 115
	OP_DEPTH               = 0x74 // 116
	OP_DROP                = 0x75 // 117
	OP_DUP                 = 0x76 // 118
	OP_NIP                 = 0x77 // 119
	OP_OVER                = 0x78 // 120
	OP_PICK                = 0x79 // 121
	OP_ROLL                = 0x7a // 122
	OP_ROT                 = 0x7b // 123
	OP_SWAP                = 0x7c // 124
	OP_TUCK                = 0x7d // 125
	OP_CAT                 = 0x7e // 126 - 禁用
	OP_SUBSTR              = 0x7f // 127 - 禁用
	OP_LEFT                = 0x80 // 128 - 禁用
	OP_RIGHT               = 0x81 // 129 - 禁用
	OP_SIZE                = 0x82 // 130
	OP_INVERT              = 0x83 // 131 - 禁用
	OP_AND                 = 0x84 // 132 - 禁用
	OP_OR                  = 0x85 // 133 - 禁用
	OP_XOR                 = 0x86 // 134 - 禁用
	OP_EQUAL               = 0x87 // 135
	OP_EQUALVERIFY         = 0x88 // 136
	OP_RESERVED1           = 0x89 // 137
	OP_RESERVED2           = 0x8a // 138
	OP_1ADD                = 0x8b // 139
	OP_1SUB                = 0x8c // 140
	OP_2MUL                = 0x8d // 141 - 禁用
	OP_2DIV                = 0x8e // 142 - 禁用
	OP_NEGATE              = 0x8f // 143
	OP_ABS                 = 0x90 // 144
	OP_NOT                 = 0x91 // 145
	OP_0NOTEQUAL           = 0x92 // 146
	OP_ADD                 = 0x93 // 147
	OP_SUB                 = 0x94 // 148
	OP_MUL                 = 0x95 // 149 - 禁用
	OP_DIV                 = 0x96 // 150 - 禁用
	OP_MOD                 = 0x97 // 151 - 禁用
	OP_LSHIFT              = 0x98 // 152 - 禁用
	OP_RSHIFT              = 0x99 // 153 - 禁用
	OP_BOOLAND             = 0x9a // 154
	OP_BOOLOR              = 0x9b // 155
	OP_NUMEQUAL            = 0x9c // 156
	OP_NUMEQUALVERIFY      = 0x9d // 157
	OP_NUMNOTEQUAL         = 0x9e // 158
	OP_LESSTHAN            = 0x9f // 159
	OP_GREATERTHAN         = 0xa0 // 160
	OP_LESSTHANOREQUAL     = 0xa1 // 161
	OP_GREATERTHANOREQUAL  = 0xa2 // 162
	OP_MIN                 = 0xa3 // 163
	OP_MAX                 = 0xa4 // 164
	OP_WITHIN              = 0xa5 // 165
	OP_RIPEMD160           = 0xa6 // 166
	OP_SHA1                = 0xa7 // 167
	OP_SHA256              = 0xa8 // 168
	OP_HASH160             = 0xa9 // 169
	OP_HASH256             = 0xaa // 170
	OP_CODESEPARATOR       = 0xab // 171
	OP_CHECKSIG            = 0xac // 172
	OP_CHECKSIGVERIFY      = 0xad // 173
	OP_CHECKMULTISIG       = 0xae // 174
	OP_CHECKMULTISIGVERIFY = 0xaf // 175
	OP_NOP1                = 0xb0 // 176
	OP_CHECKLOCKTIMEVERIFY = 0xb1 // 177
	OP_CHECKSEQUENCEVERIFY = 0xb2 // 178
	OP_NOP4                = 0xb3 // 179
	OP_NOP5                = 0xb4 // 180
	OP_NOP6                = 0xb5 // 181
	OP_NOP7                = 0xb6 // 182
	OP_NOP8                = 0xb7 // 183
	OP_NOP9                = 0xb8 // 184
	OP_NOP10               = 0xb9 // 185
	// 0xba 到 0xff 未分配，执行到时脚本以失败结束
)

// opcodeArray 保存所有 256 个操作码的信息，在 init 中填充
var opcodeArray [256]opcode

// namedOpcodes 列出除 OP_DATA_N 之外有名称的操作码
var namedOpcodes = []opcode{
	// 数据推送
	{OP_0, "OP_0", 1, classPushNum, opcodeFalse},
	{OP_PUSHDATA1, "OP_PUSHDATA1", -1, classPushBytes, opcodePushData},
	{OP_PUSHDATA2, "OP_PUSHDATA2", -2, classPushBytes, opcodePushData},
	{OP_PUSHDATA4, "OP_PUSHDATA4", -4, classPushBytes, opcodePushData},
	{OP_1NEGATE, "OP_1NEGATE", 1, classPushNum, opcode1Negate},
	{OP_RESERVED, "OP_RESERVED", 1, classReturn, opcodeReturn},

	// 控制流
	{OP_NOP, "OP_NOP", 1, classNoOp, opcodeNop},
	{OP_VER, "OP_VER", 1, classReturn, opcodeReturn},
	{OP_IF, "OP_IF", 1, classControl, opcodeIf},
	{OP_NOTIF, "OP_NOTIF", 1, classControl, opcodeNotIf},
	{OP_VERIF, "OP_VERIF", 1, classIllegal, opcodeIllegal},
	{OP_VERNOTIF, "OP_VERNOTIF", 1, classIllegal, opcodeIllegal},
	{OP_ELSE, "OP_ELSE", 1, classControl, opcodeElse},
	{OP_ENDIF, "OP_ENDIF", 1, classControl, opcodeEndif},
	{OP_VERIFY, "OP_VERIFY", 1, classOrdinary, opcodeVerify},
	{OP_RETURN, "OP_RETURN", 1, classReturn, opcodeReturn},

	// 栈操作
	{OP_TOALTSTACK, "OP_TOALTSTACK", 1, classAltStack, opcodeToAltStack},
	{OP_FROMALTSTACK, "OP_FROMALTSTACK", 1, classAltStack, opcodeFromAltStack},
	{OP_2DROP, "OP_2DROP", 1, classOrdinary, opcode2Drop},
	{OP_2DUP, "OP_2DUP", 1, classOrdinary, opcode2Dup},
	{OP_3DUP, "OP_3DUP", 1, classOrdinary, opcode3Dup},
	{OP_2OVER, "OP_2OVER", 1, classOrdinary, opcode2Over},
	{OP_2ROT, "OP_2ROT", 1, classOrdinary, opcode2Rot},
	{OP_2SWAP, "OP_2SWAP", 1, classOrdinary, opcode2Swap},
	{OP_IFDUP, "OP_IFDUP", 1, classOrdinary, opcodeIfDup},
	{OP_DEPTH, "OP_DEPTH", 1, classOrdinary, opcodeDepth},
	{OP_DROP, "OP_DROP", 1, classOrdinary, opcodeDrop},
	{OP_DUP, "OP_DUP", 1, classOrdinary, opcodeDup},
	{OP_NIP, "OP_NIP", 1, classOrdinary, opcodeNip},
	{OP_OVER, "OP_OVER", 1, classOrdinary, opcodeOver},
	{OP_PICK, "OP_PICK", 1, classOrdinary, opcodePick},
	{OP_ROLL, "OP_ROLL", 1, classOrdinary, opcodeRoll},
	{OP_ROT, "OP_ROT", 1, classOrdinary, opcodeRot},
	{OP_SWAP, "OP_SWAP", 1, classOrdinary, opcodeSwap},
	{OP_TUCK, "OP_TUCK", 1, classOrdinary, opcodeTuck},

	// 字符串操作
	{OP_CAT, "OP_CAT", 1, classIllegal, opcodeIllegal},
	{OP_SUBSTR, "OP_SUBSTR", 1, classIllegal, opcodeIllegal},
	{OP_LEFT, "OP_LEFT", 1, classIllegal, opcodeIllegal},
	{OP_RIGHT, "OP_RIGHT", 1, classIllegal, opcodeIllegal},
	{OP_SIZE, "OP_SIZE", 1, classOrdinary, opcodeSize},

	// 位运算
	{OP_INVERT, "OP_INVERT", 1, classIllegal, opcodeIllegal},
	{OP_AND, "OP_AND", 1, classIllegal, opcodeIllegal},
	{OP_OR, "OP_OR", 1, classIllegal, opcodeIllegal},
	{OP_XOR, "OP_XOR", 1, classIllegal, opcodeIllegal},
	{OP_EQUAL, "OP_EQUAL", 1, classOrdinary, opcodeEqual},
	{OP_EQUALVERIFY, "OP_EQUALVERIFY", 1, classOrdinary, opcodeEqualVerify},
	{OP_RESERVED1, "OP_RESERVED1", 1, classReturn, opcodeReturn},
	{OP_RESERVED2, "OP_RESERVED2", 1, classReturn, opcodeReturn},

	// 数值运算
	{OP_1ADD, "OP_1ADD", 1, classOrdinary, opcode1Add},
	{OP_1SUB, "OP_1SUB", 1, classOrdinary, opcode1Sub},
	{OP_2MUL, "OP_2MUL", 1, classIllegal, opcodeIllegal},
	{OP_2DIV, "OP_2DIV", 1, classIllegal, opcodeIllegal},
	{OP_NEGATE, "OP_NEGATE", 1, classOrdinary, opcodeNegate},
	{OP_ABS, "OP_ABS", 1, classOrdinary, opcodeAbs},
	{OP_NOT, "OP_NOT", 1, classOrdinary, opcodeNot},
	{OP_0NOTEQUAL, "OP_0NOTEQUAL", 1, classOrdinary, opcode0NotEqual},
	{OP_ADD, "OP_ADD", 1, classOrdinary, opcodeAdd},
	{OP_SUB, "OP_SUB", 1, classOrdinary, opcodeSub},
	{OP_MUL, "OP_MUL", 1, classIllegal, opcodeIllegal},
	{OP_DIV, "OP_DIV", 1, classIllegal, opcodeIllegal},
	{OP_MOD, "OP_MOD", 1, classIllegal, opcodeIllegal},
	{OP_LSHIFT, "OP_LSHIFT", 1, classIllegal, opcodeIllegal},
	{OP_RSHIFT, "OP_RSHIFT", 1, classIllegal, opcodeIllegal},
	{OP_BOOLAND, "OP_BOOLAND", 1, classOrdinary, opcodeBoolAnd},
	{OP_BOOLOR, "OP_BOOLOR", 1, classOrdinary, opcodeBoolOr},
	{OP_NUMEQUAL, "OP_NUMEQUAL", 1, classOrdinary, opcodeNumEqual},
	{OP_NUMEQUALVERIFY, "OP_NUMEQUALVERIFY", 1, classOrdinary, opcodeNumEqualVerify},
	{OP_NUMNOTEQUAL, "OP_NUMNOTEQUAL", 1, classOrdinary, opcodeNumNotEqual},
	{OP_LESSTHAN, "OP_LESSTHAN", 1, classOrdinary, opcodeLessThan},
	{OP_GREATERTHAN, "OP_GREATERTHAN", 1, classOrdinary, opcodeGreaterThan},
	{OP_LESSTHANOREQUAL, "OP_LESSTHANOREQUAL", 1, classOrdinary, opcodeLessThanOrEqual},
	{OP_GREATERTHANOREQUAL, "OP_GREATERTHANOREQUAL", 1, classOrdinary, opcodeGreaterThanOrEqual},
	{OP_MIN, "OP_MIN", 1, classOrdinary, opcodeMin},
	{OP_MAX, "OP_MAX", 1, classOrdinary, opcodeMax},
	{OP_WITHIN, "OP_WITHIN", 1, classOrdinary, opcodeWithin},

	// 密码学
	{OP_RIPEMD160, "OP_RIPEMD160", 1, classOrdinary, opcodeRipemd160},
	{OP_SHA1, "OP_SHA1", 1, classOrdinary, opcodeSha1},
	{OP_SHA256, "OP_SHA256", 1, classOrdinary, opcodeSha256},
	{OP_HASH160, "OP_HASH160", 1, classOrdinary, opcodeHash160},
	{OP_HASH256, "OP_HASH256", 1, classOrdinary, opcodeHash256},
	{OP_CODESEPARATOR, "OP_CODESEPARATOR", 1, classSignature, opcodeCodeSeparator},
	{OP_CHECKSIG, "OP_CHECKSIG", 1, classSignature, opcodeCheckSig},
	{OP_CHECKSIGVERIFY, "OP_CHECKSIGVERIFY", 1, classSignature, opcodeCheckSigVerify},
	{OP_CHECKMULTISIG, "OP_CHECKMULTISIG", 1, classSignature, opcodeCheckMultiSig},
	{OP_CHECKMULTISIGVERIFY, "OP_CHECKMULTISIGVERIFY", 1, classSignature, opcodeCheckMultiSigVerify},

	// 保留的扩展操作码
	{OP_NOP1, "OP_NOP1", 1, classNoOp, opcodeNop},
	{OP_CHECKLOCKTIMEVERIFY, "OP_CHECKLOCKTIMEVERIFY", 1, classOrdinary, opcodeCheckLockTimeVerify},
	{OP_CHECKSEQUENCEVERIFY, "OP_CHECKSEQUENCEVERIFY", 1, classOrdinary, opcodeCheckSequenceVerify},
	{OP_NOP4, "OP_NOP4", 1, classNoOp, opcodeNop},
	{OP_NOP5, "OP_NOP5", 1, classNoOp, opcodeNop},
	{OP_NOP6, "OP_NOP6", 1, classNoOp, opcodeNop},
	{OP_NOP7, "OP_NOP7", 1, classNoOp, opcodeNop},
	{OP_NOP8, "OP_NOP8", 1, classNoOp, opcodeNop},
	{OP_NOP9, "OP_NOP9", 1, classNoOp, opcodeNop},
	{OP_NOP10, "OP_NOP10", 1, classNoOp, opcodeNop},
}

// OpcodeByName 是操作码名称到值的映射，包含 OP_FALSE、OP_TRUE 等别名
var OpcodeByName = make(map[string]byte)

func init() {
	for i := range opcodeArray {
		opcodeArray[i] = opcode{
			value:  byte(i),
			name:   fmt.Sprintf("OP_UNKNOWN%d", i),
			length: 1,
			class:  classReturn,
			opfunc: opcodeReturn,
		}
	}
	for i := OP_DATA_1; i <= OP_DATA_75; i++ {
		opcodeArray[i] = opcode{
			value:  byte(i),
			name:   fmt.Sprintf("OP_DATA_%d", i),
			length: i + 1,
			class:  classPushBytes,
			opfunc: opcodePushData,
		}
	}
	for i := OP_1; i <= OP_16; i++ {
		opcodeArray[i] = opcode{
			value:  byte(i),
			name:   fmt.Sprintf("OP_%d", i-OP_1+1),
			length: 1,
			class:  classPushNum,
			opfunc: opcodeN,
		}
	}
	for _, op := range namedOpcodes {
		opcodeArray[op.value] = op
	}

	for _, op := range opcodeArray {
		OpcodeByName[op.name] = op.value
	}
	OpcodeByName["OP_FALSE"] = OP_FALSE
	OpcodeByName["OP_TRUE"] = OP_TRUE
	OpcodeByName["OP_NOP2"] = OP_CHECKLOCKTIMEVERIFY
	OpcodeByName["OP_NOP3"] = OP_CHECKSEQUENCEVERIFY
}

// evalFalse 表示脚本明确地以失败结束（OP_RETURN 或 *VERIFY 的条件为假），
// 引擎将其转换为 (false, nil) 而不是错误
type evalFalse struct {
	reason string
}

func (e evalFalse) Error() string {
	return e.reason
}

// *******************************************
// 操作码实现
// *******************************************

// opcodeIllegal 对非法操作码返回 ErrIllegalOp
func opcodeIllegal(op *opcode, data []byte, vm *Engine) error {
	str := fmt.Sprintf("attempt to execute illegal opcode %s", op.name)
	return scriptError(ErrIllegalOp, str)
}

// opcodeReturn 结束脚本并判定为失败
func opcodeReturn(op *opcode, data []byte, vm *Engine) error {
	return evalFalse{reason: fmt.Sprintf("script returned early via %s", op.name)}
}

// opcodeNop 不做任何操作
func opcodeNop(op *opcode, data []byte, vm *Engine) error {
	return nil
}

// opcodeFalse 推送空字节串，它表示数字 0 和布尔值 false
func opcodeFalse(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushByteArray(nil)
	return nil
}

// opcodePushData 推送操作码附带的数据
func opcodePushData(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushByteArray(data)
	return nil
}

// opcode1Negate 推送数字 -1
func opcode1Negate(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushInt(scriptNum(-1))
	return nil
}

// opcodeN 推送 OP_1 到 OP_16 表示的数字
func opcodeN(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushInt(scriptNum(op.value - (OP_1 - 1)))
	return nil
}

// popIfBool 弹出 OP_IF/OP_NOTIF 的条件。
// 启用 minimal-if 时条件只能是空字节串或 [0x01]。
func popIfBool(vm *Engine) (bool, error) {
	if !vm.ctx.EnforceMinimalIf() {
		return vm.dstack.PopBool()
	}

	so, err := vm.dstack.PopByteArray()
	if err != nil {
		return false, err
	}
	if len(so) > 1 || (len(so) == 1 && so[0] != 1) {
		str := fmt.Sprintf("conditional has data %x which is not an empty byte array or [0x01]", so)
		return false, scriptError(ErrInvalidOperand, str)
	}
	return len(so) == 1, nil
}

// opcodeIf 进入一层条件分支。
// 在未执行的分支中不弹出条件，直接记录为未执行，以保持嵌套层次。
//
// 条件栈转换: [... bool] -> [... bool cond]
// 数据栈转换: [... x] -> [...]（仅在执行状态下）
func opcodeIf(op *opcode, data []byte, vm *Engine) error {
	condVal := false
	if vm.condStack.executing() {
		ok, err := popIfBool(vm)
		if err != nil {
			return err
		}
		condVal = ok
	}
	vm.condStack.push(condVal)
	return nil
}

// opcodeNotIf 与 opcodeIf 相同，但条件取反
func opcodeNotIf(op *opcode, data []byte, vm *Engine) error {
	condVal := false
	if vm.condStack.executing() {
		ok, err := popIfBool(vm)
		if err != nil {
			return err
		}
		condVal = !ok
	}
	vm.condStack.push(condVal)
	return nil
}

// opcodeElse 翻转当前条件分支的执行状态
func opcodeElse(op *opcode, data []byte, vm *Engine) error {
	if !vm.condStack.toggle() {
		str := fmt.Sprintf("encountered opcode %s with no matching opcode to begin conditional execution",
			op.name)
		return scriptError(ErrUnbalancedIfElse, str)
	}
	return nil
}

// opcodeEndif 结束当前条件分支
func opcodeEndif(op *opcode, data []byte, vm *Engine) error {
	if _, ok := vm.condStack.pop(); !ok {
		str := fmt.Sprintf("encountered opcode %s with no matching opcode to begin conditional execution",
			op.name)
		return scriptError(ErrUnbalancedIfElse, str)
	}
	return nil
}

// abstractVerify 弹出栈顶并解释为布尔值，为 false 时脚本以失败结束
func abstractVerify(op *opcode, vm *Engine) error {
	verified, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !verified {
		return evalFalse{reason: fmt.Sprintf("%s failed", op.name)}
	}
	return nil
}

// opcodeVerify 栈顶为 false 时脚本以失败结束
func opcodeVerify(op *opcode, data []byte, vm *Engine) error {
	return abstractVerify(op, vm)
}

// opcodeToAltStack 将数据栈顶移到备用栈
//
// 主数据栈转换: [... x1 x2 x3] -> [... x1 x2]
// 备用数据栈转换: [... y1 y2 y3] -> [... y1 y2 y3 x3]
func opcodeToAltStack(op *opcode, data []byte, vm *Engine) error {
	so, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	vm.astack.PushByteArray(so)
	return nil
}

// opcodeFromAltStack 将备用栈顶移回数据栈
//
// 主数据栈转换: [... x1 x2 x3] -> [... x1 x2 x3 y3]
// 备用数据栈转换: [... y1 y2 y3] -> [... y1 y2]
func opcodeFromAltStack(op *opcode, data []byte, vm *Engine) error {
	so, err := vm.astack.PopByteArray()
	if err != nil {
		return err
	}
	vm.dstack.PushByteArray(so)
	return nil
}

// opcode2Drop 堆栈转换: [... x1 x2 x3] -> [... x1]
func opcode2Drop(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DropN(2)
}

// opcode2Dup 堆栈转换: [... x1 x2 x3] -> [... x1 x2 x3 x2 x3]
func opcode2Dup(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DupN(2)
}

// opcode3Dup 堆栈转换: [... x1 x2 x3] -> [... x1 x2 x3 x1 x2 x3]
func opcode3Dup(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DupN(3)
}

// opcode2Over 堆栈转换: [... x1 x2 x3 x4] -> [... x1 x2 x3 x4 x1 x2]
func opcode2Over(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.OverN(2)
}

// opcode2Rot 堆栈转换: [... x1 x2 x3 x4 x5 x6] -> [... x3 x4 x5 x6 x1 x2]
func opcode2Rot(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.RotN(2)
}

// opcode2Swap 堆栈转换: [... x1 x2 x3 x4] -> [... x3 x4 x1 x2]
func opcode2Swap(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.SwapN(2)
}

// opcodeIfDup 栈顶为真时复制栈顶
//
// 堆栈转换 (x1==0): [... x1] -> [... x1]
// 堆栈转换 (x1!=0): [... x1] -> [... x1 x1]
func opcodeIfDup(op *opcode, data []byte, vm *Engine) error {
	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	if asBool(so) {
		vm.dstack.PushByteArray(so)
	}
	return nil
}

// opcodeDepth 推送当前数据栈的深度
//
// 堆栈转换: [...] -> [... <num of items on the stack>]
func opcodeDepth(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushInt(scriptNum(vm.dstack.Depth()))
	return nil
}

// opcodeDrop 堆栈转换: [... x1 x2 x3] -> [... x1 x2]
func opcodeDrop(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DropN(1)
}

// opcodeDup 堆栈转换: [... x1 x2 x3] -> [... x1 x2 x3 x3]
func opcodeDup(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DupN(1)
}

// opcodeNip 堆栈转换: [... x1 x2 x3] -> [... x1 x3]
func opcodeNip(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.NipN(1)
}

// opcodeOver 堆栈转换: [... x1 x2 x3] -> [... x1 x2 x3 x2]
func opcodeOver(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.OverN(1)
}

// popIndex 弹出 OP_PICK/OP_ROLL 的索引，负数返回 ErrInvalidOperand
func popIndex(op *opcode, vm *Engine) (int32, error) {
	val, err := vm.dstack.PopInt()
	if err != nil {
		return 0, err
	}
	if val < 0 {
		str := fmt.Sprintf("%s index %d is negative", op.name, val)
		return 0, scriptError(ErrInvalidOperand, str)
	}
	return val.Int32(), nil
}

// opcodePick 弹出索引 n，将距栈顶 n 处的项目复制到栈顶
//
// 堆栈转换: [xn ... x2 x1 x0 n] -> [xn ... x2 x1 x0 xn]
func opcodePick(op *opcode, data []byte, vm *Engine) error {
	n, err := popIndex(op, vm)
	if err != nil {
		return err
	}
	return vm.dstack.PickN(n)
}

// opcodeRoll 弹出索引 n，将距栈顶 n 处的项目移到栈顶
//
// 堆栈转换: [xn ... x2 x1 x0 n] -> [... x2 x1 x0 xn]
func opcodeRoll(op *opcode, data []byte, vm *Engine) error {
	n, err := popIndex(op, vm)
	if err != nil {
		return err
	}
	return vm.dstack.RollN(n)
}

// opcodeRot 堆栈转换: [... x1 x2 x3] -> [... x2 x3 x1]
func opcodeRot(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.RotN(1)
}

// opcodeSwap 堆栈转换: [... x1 x2] -> [... x2 x1]
func opcodeSwap(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.SwapN(1)
}

// opcodeTuck 堆栈转换: [... x1 x2] -> [... x2 x1 x2]
func opcodeTuck(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.Tuck()
}

// opcodeSize 推送栈顶项目的字节长度
//
// 堆栈转换: [... x1] -> [... x1 len(x1)]
func opcodeSize(op *opcode, data []byte, vm *Engine) error {
	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	vm.dstack.PushInt(scriptNum(len(so)))
	return nil
}

// opcodeEqual 比较栈顶两个项目的字节是否相等
//
// 堆栈转换: [... x1 x2] -> [... bool]
func opcodeEqual(op *opcode, data []byte, vm *Engine) error {
	a, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	b, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(bytes.Equal(a, b))
	return nil
}

// opcodeEqualVerify 是 OP_EQUAL 加 OP_VERIFY
func opcodeEqualVerify(op *opcode, data []byte, vm *Engine) error {
	if err := opcodeEqual(op, data, vm); err != nil {
		return err
	}
	return abstractVerify(op, vm)
}

// unaryNumOp 弹出一个数字，推送 fn 的结果
func unaryNumOp(vm *Engine, fn func(scriptNum) scriptNum) error {
	m, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushInt(fn(m))
	return nil
}

// binaryNumOp 依次弹出 b、a 两个数字（b 在栈顶），推送 fn(a, b) 的结果
func binaryNumOp(vm *Engine, fn func(a, b scriptNum) scriptNum) error {
	b, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	a, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushInt(fn(a, b))
	return nil
}

// binaryBoolOp 与 binaryNumOp 相同，但结果为布尔值
func binaryBoolOp(vm *Engine, fn func(a, b scriptNum) bool) error {
	b, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	a, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(fn(a, b))
	return nil
}

// opcode1Add 堆栈转换: [... x1 x2] -> [... x1 x2+1]
func opcode1Add(op *opcode, data []byte, vm *Engine) error {
	return unaryNumOp(vm, func(m scriptNum) scriptNum { return m + 1 })
}

// opcode1Sub 堆栈转换: [... x1 x2] -> [... x1 x2-1]
func opcode1Sub(op *opcode, data []byte, vm *Engine) error {
	return unaryNumOp(vm, func(m scriptNum) scriptNum { return m - 1 })
}

// opcodeNegate 堆栈转换: [... x1 x2] -> [... x1 -x2]
func opcodeNegate(op *opcode, data []byte, vm *Engine) error {
	return unaryNumOp(vm, func(m scriptNum) scriptNum { return -m })
}

// opcodeAbs 堆栈转换: [... x1 x2] -> [... x1 abs(x2)]
func opcodeAbs(op *opcode, data []byte, vm *Engine) error {
	return unaryNumOp(vm, func(m scriptNum) scriptNum {
		if m < 0 {
			return -m
		}
		return m
	})
}

// opcodeNot 栈顶为 0 时推送 1，否则推送 0
//
// 堆栈转换 (x2==0): [... x1 0] -> [... x1 1]
// 堆栈转换 (x2!=0): [... x1 x2] -> [... x1 0]
func opcodeNot(op *opcode, data []byte, vm *Engine) error {
	return unaryNumOp(vm, func(m scriptNum) scriptNum {
		if m == 0 {
			return 1
		}
		return 0
	})
}

// opcode0NotEqual 栈顶不为 0 时推送 1，否则推送 0
func opcode0NotEqual(op *opcode, data []byte, vm *Engine) error {
	return unaryNumOp(vm, func(m scriptNum) scriptNum {
		if m != 0 {
			return 1
		}
		return 0
	})
}

// opcodeAdd 堆栈转换: [... x1 x2] -> [... x1+x2]
func opcodeAdd(op *opcode, data []byte, vm *Engine) error {
	return binaryNumOp(vm, func(a, b scriptNum) scriptNum { return a + b })
}

// opcodeSub 堆栈转换: [... x1 x2] -> [... x1-x2]
func opcodeSub(op *opcode, data []byte, vm *Engine) error {
	return binaryNumOp(vm, func(a, b scriptNum) scriptNum { return a - b })
}

// opcodeBoolAnd 两个数字都不为 0 时推送 1
func opcodeBoolAnd(op *opcode, data []byte, vm *Engine) error {
	return binaryBoolOp(vm, func(a, b scriptNum) bool { return a != 0 && b != 0 })
}

// opcodeBoolOr 任一数字不为 0 时推送 1
func opcodeBoolOr(op *opcode, data []byte, vm *Engine) error {
	return binaryBoolOp(vm, func(a, b scriptNum) bool { return a != 0 || b != 0 })
}

// opcodeNumEqual 两个数字相等时推送 1
func opcodeNumEqual(op *opcode, data []byte, vm *Engine) error {
	return binaryBoolOp(vm, func(a, b scriptNum) bool { return a == b })
}

// opcodeNumEqualVerify 是 OP_NUMEQUAL 加 OP_VERIFY
func opcodeNumEqualVerify(op *opcode, data []byte, vm *Engine) error {
	if err := opcodeNumEqual(op, data, vm); err != nil {
		return err
	}
	return abstractVerify(op, vm)
}

// opcodeNumNotEqual 两个数字不相等时推送 1
func opcodeNumNotEqual(op *opcode, data []byte, vm *Engine) error {
	return binaryBoolOp(vm, func(a, b scriptNum) bool { return a != b })
}

// opcodeLessThan 堆栈转换: [... x1 x2] -> [... x1<x2]
func opcodeLessThan(op *opcode, data []byte, vm *Engine) error {
	return binaryBoolOp(vm, func(a, b scriptNum) bool { return a < b })
}

// opcodeGreaterThan 堆栈转换: [... x1 x2] -> [... x1>x2]
func opcodeGreaterThan(op *opcode, data []byte, vm *Engine) error {
	return binaryBoolOp(vm, func(a, b scriptNum) bool { return a > b })
}

// opcodeLessThanOrEqual 堆栈转换: [... x1 x2] -> [... x1<=x2]
func opcodeLessThanOrEqual(op *opcode, data []byte, vm *Engine) error {
	return binaryBoolOp(vm, func(a, b scriptNum) bool { return a <= b })
}

// opcodeGreaterThanOrEqual 堆栈转换: [... x1 x2] -> [... x1>=x2]
func opcodeGreaterThanOrEqual(op *opcode, data []byte, vm *Engine) error {
	return binaryBoolOp(vm, func(a, b scriptNum) bool { return a >= b })
}

// opcodeMin 堆栈转换: [... x1 x2] -> [... min(x1, x2)]
func opcodeMin(op *opcode, data []byte, vm *Engine) error {
	return binaryNumOp(vm, func(a, b scriptNum) scriptNum {
		if a < b {
			return a
		}
		return b
	})
}

// opcodeMax 堆栈转换: [... x1 x2] -> [... max(x1, x2)]
func opcodeMax(op *opcode, data []byte, vm *Engine) error {
	return binaryNumOp(vm, func(a, b scriptNum) scriptNum {
		if a > b {
			return a
		}
		return b
	})
}

// opcodeWithin 判断 x 是否满足 min <= x < max
//
// 堆栈转换: [... x1 min max] -> [... bool]
func opcodeWithin(op *opcode, data []byte, vm *Engine) error {
	maxVal, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	minVal, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	x, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(x >= minVal && x < maxVal)
	return nil
}

// calcHash 使用给定的哈希器计算 buf 的摘要
func calcHash(buf []byte, hasher hash.Hash) []byte {
	hasher.Write(buf)
	return hasher.Sum(nil)
}

// hashTop 将栈顶替换为 fn 计算出的摘要
func hashTop(vm *Engine, fn func([]byte) []byte) error {
	buf, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	vm.dstack.PushByteArray(fn(buf))
	return nil
}

// opcodeRipemd160 堆栈转换: [... x1] -> [... ripemd160(x1)]
func opcodeRipemd160(op *opcode, data []byte, vm *Engine) error {
	return hashTop(vm, func(buf []byte) []byte {
		return calcHash(buf, ripemd160.New())
	})
}

// opcodeSha1 堆栈转换: [... x1] -> [... sha1(x1)]
func opcodeSha1(op *opcode, data []byte, vm *Engine) error {
	return hashTop(vm, func(buf []byte) []byte {
		sum := sha1.Sum(buf)
		return sum[:]
	})
}

// opcodeSha256 堆栈转换: [... x1] -> [... sha256(x1)]
func opcodeSha256(op *opcode, data []byte, vm *Engine) error {
	return hashTop(vm, func(buf []byte) []byte {
		sum := sha256.Sum256(buf)
		return sum[:]
	})
}

// opcodeHash160 堆栈转换: [... x1] -> [... ripemd160(sha256(x1))]
func opcodeHash160(op *opcode, data []byte, vm *Engine) error {
	return hashTop(vm, btcutil.Hash160)
}

// opcodeHash256 堆栈转换: [... x1] -> [... sha256(sha256(x1))]
func opcodeHash256(op *opcode, data []byte, vm *Engine) error {
	return hashTop(vm, chainhash.DoubleHashB)
}

// opcodeCodeSeparator 记录最后执行的 OP_CODESEPARATOR 的位置，签名会承诺该位置
func opcodeCodeSeparator(op *opcode, data []byte, vm *Engine) error {
	vm.lastCodeSep = uint32(vm.tokenizer.OpcodePosition())
	return nil
}

// checkSig 使用上下文验证一个签名。
// 保留类型的公钥直接通过；空签名视为验证失败；无法解析的非空签名返回 ErrSignatureFormat。
func checkSig(vm *Engine, sigBytes, pkBytes []byte) (bool, error) {
	pk, status := vm.ctx.ParsePubKey(pkBytes)
	switch status {
	case KeyReserved:
		return true, nil
	case KeyInvalid:
		str := fmt.Sprintf("unable to parse public key %x", pkBytes)
		return false, scriptError(ErrPubkeyFormat, str)
	}

	if len(sigBytes) == 0 {
		return false, nil
	}

	sig, ok := vm.ctx.ParseSignature(pk, sigBytes)
	if !ok {
		str := fmt.Sprintf("unable to parse signature %x", sigBytes)
		return false, scriptError(ErrSignatureFormat, str)
	}

	return vm.ctx.VerifySignature(sig, pk, vm.lastCodeSep), nil
}

// opcodeCheckSig 弹出公钥和签名，推送签名验证的结果
//
// 堆栈转换: [... signature pubkey] -> [... bool]
func opcodeCheckSig(op *opcode, data []byte, vm *Engine) error {
	pkBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	sigBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	valid, err := checkSig(vm, sigBytes, pkBytes)
	if err != nil {
		return err
	}
	vm.dstack.PushBool(valid)
	return nil
}

// opcodeCheckSigVerify 是 OP_CHECKSIG 加 OP_VERIFY
func opcodeCheckSigVerify(op *opcode, data []byte, vm *Engine) error {
	if err := opcodeCheckSig(op, data, vm); err != nil {
		return err
	}
	return abstractVerify(op, vm)
}

// opcodeCheckMultiSig 检查 m-of-n 多重签名。
//
// 签名必须与公钥的顺序一致：每个签名从上一个匹配的公钥之后开始查找，
// 每次尝试都消耗一个公钥，剩余的公钥少于剩余的签名时立即失败。
// 最底部的占位项目必须为空字节串。
//
// 堆栈转换:
// [... dummy [sig ...] numsigs [pubkey ...] numpubkeys] -> [... bool]
func opcodeCheckMultiSig(op *opcode, data []byte, vm *Engine) error {
	numKeys, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	numPubKeys := int(numKeys.Int32())
	if numPubKeys < 0 || numPubKeys > vm.ctx.MaxPubKeysPerMultiSig() {
		str := fmt.Sprintf("number of pubkeys %d is out of range [0, %d]", numPubKeys,
			vm.ctx.MaxPubKeysPerMultiSig())
		return scriptError(ErrInvalidOperand, str)
	}
	vm.numOps += numPubKeys
	if vm.numOps > MaxOpsPerScript {
		str := fmt.Sprintf("exceeded max operation limit of %d", MaxOpsPerScript)
		return scriptError(ErrTooManyOperations, str)
	}

	pubKeys := make([][]byte, 0, numPubKeys)
	for i := 0; i < numPubKeys; i++ {
		pubKey, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		pubKeys = append(pubKeys, pubKey)
	}

	numSigs, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	numSignatures := int(numSigs.Int32())
	if numSignatures < 0 || numSignatures > numPubKeys {
		str := fmt.Sprintf("number of signatures %d is out of range [0, %d]", numSignatures, numPubKeys)
		return scriptError(ErrInvalidOperand, str)
	}

	signatures := make([][]byte, 0, numSignatures)
	for i := 0; i < numSignatures; i++ {
		signature, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		signatures = append(signatures, signature)
	}

	dummy, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	if len(dummy) != 0 {
		str := fmt.Sprintf("multisig dummy argument has length %d instead of 0", len(dummy))
		return scriptError(ErrInvalidOperand, str)
	}

	success := true
	pubKeyIdx, sigIdx := 0, 0
	for sigIdx < len(signatures) {
		// There are not enough public keys left to match the remaining
		// signatures.
		if len(signatures)-sigIdx > len(pubKeys)-pubKeyIdx {
			success = false
			break
		}

		pkBytes := pubKeys[pubKeyIdx]
		pubKeyIdx++

		valid, err := checkSig(vm, signatures[sigIdx], pkBytes)
		if err != nil {
			return err
		}
		if valid {
			sigIdx++
		}
	}

	vm.dstack.PushBool(success)
	return nil
}

// opcodeCheckMultiSigVerify 是 OP_CHECKMULTISIG 加 OP_VERIFY
func opcodeCheckMultiSigVerify(op *opcode, data []byte, vm *Engine) error {
	if err := opcodeCheckMultiSig(op, data, vm); err != nil {
		return err
	}
	return abstractVerify(op, vm)
}

// peekLockValue 读取栈顶的时间锁数值（最长 5 字节），不弹出，负数返回 ErrInvalidOperand
func peekLockValue(op *opcode, vm *Engine) (int64, error) {
	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return 0, err
	}
	val, err := makeScriptNum(so, vm.dstack.verifyMinimalData, lockTimeNumLen)
	if err != nil {
		return 0, err
	}
	if val < 0 {
		str := fmt.Sprintf("%s value %d is negative", op.name, val)
		return 0, scriptError(ErrInvalidOperand, str)
	}
	return int64(val), nil
}

// opcodeCheckLockTimeVerify 检查交易的绝对时间锁，栈顶保持不变
func opcodeCheckLockTimeVerify(op *opcode, data []byte, vm *Engine) error {
	lockTime, err := peekLockValue(op, vm)
	if err != nil {
		return err
	}
	if !vm.ctx.CheckLockTime(lockTime) {
		str := fmt.Sprintf("locktime requirement %d not satisfied", lockTime)
		return scriptError(ErrTimeLock, str)
	}
	return nil
}

// opcodeCheckSequenceVerify 检查输入的相对时间锁，栈顶保持不变
func opcodeCheckSequenceVerify(op *opcode, data []byte, vm *Engine) error {
	sequence, err := peekLockValue(op, vm)
	if err != nil {
		return err
	}
	if !vm.ctx.CheckSequence(sequence) {
		str := fmt.Sprintf("sequence requirement %d not satisfied", sequence)
		return scriptError(ErrTimeLock, str)
	}
	return nil
}

// disasmOpcode 将一条指令的反汇编写入 buf。
// 小整数以数字形式输出，推送数据以十六进制输出，其余输出操作码名称。
func disasmOpcode(buf *strings.Builder, op *opcode, data []byte) {
	switch {
	case op.value == OP_0:
		buf.WriteString("0")
	case op.value == OP_1NEGATE:
		buf.WriteString("-1")
	case op.value >= OP_1 && op.value <= OP_16:
		fmt.Fprintf(buf, "%d", op.value-(OP_1-1))
	case op.class == classPushBytes:
		buf.WriteString(hex.EncodeToString(data))
	default:
		buf.WriteString(op.name)
	}
}

// DisasmString 返回脚本的单行反汇编。
// 解析失败时已解析的部分照常输出，并在末尾追加 [error]，同时返回错误。
func DisasmString(script []byte) (string, error) {
	var buf strings.Builder
	tokenizer := MakeScriptTokenizer(script, false, len(script))
	for tokenizer.Next() {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		disasmOpcode(&buf, &opcodeArray[tokenizer.Opcode()], tokenizer.Data())
	}
	if err := tokenizer.Err(); err != nil {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString("[error]")
		return buf.String(), err
	}
	return buf.String(), nil
}
