// 指令解码器：将脚本字节串逐条解析为操作码和推送数据
package txscript

import (
	"encoding/binary"
	"fmt"
)

// ScriptTokenizer 按顺序、惰性地解析脚本中的指令，且只能遍历一次。
//
// 典型用法:
//
//	tokenizer := MakeScriptTokenizer(script, true, MaxScriptElementSize)
//	for tokenizer.Next() {
//		// 使用 tokenizer.Opcode() 和 tokenizer.Data()
//	}
//	if err := tokenizer.Err(); err != nil {
//		// 脚本格式错误
//	}
type ScriptTokenizer struct {
	script         []byte
	minimalPush    bool
	maxElementSize int

	offset    int32
	opcodePos int32
	op        *opcode
	data      []byte
	err       error
}

// MakeScriptTokenizer 返回一个新的指令解码器。
// minimalPush 为 true 时要求推送数据使用最短编码；maxElementSize 为单次推送的最大字节数。
func MakeScriptTokenizer(script []byte, minimalPush bool, maxElementSize int) ScriptTokenizer {
	return ScriptTokenizer{
		script:         script,
		minimalPush:    minimalPush,
		maxElementSize: maxElementSize,
		opcodePos:      -1,
	}
}

// Done 判断是否已经没有可解析的指令（到达脚本末尾或出现错误）
func (t *ScriptTokenizer) Done() bool {
	return t.err != nil || t.offset >= int32(len(t.script))
}

// Next 解析下一条指令，成功时返回 true。
// 返回 false 时应检查 Err 区分正常结束与解析失败。
func (t *ScriptTokenizer) Next() bool {
	if t.Done() {
		return false
	}

	op := &opcodeArray[t.script[t.offset]]
	t.opcodePos++

	// 全部检查通过之后才移动 offset，失败时停在出错指令处
	var data []byte
	next := t.offset
	switch {
	// No additional data.
	case op.length == 1:
		t.offset++
		t.op = op
		t.data = nil
		return true

	// Data pushes of specific lengths -- OP_DATA_[1-75].
	case op.length > 1:
		script := t.script[t.offset:]
		if len(script) < op.length {
			str := fmt.Sprintf("opcode %s requires %d bytes, but script only has %d remaining",
				op.name, op.length, len(script))
			t.fail(scriptError(ErrEarlyEndOfScript, str))
			return false
		}

		data = script[1:op.length]
		next += int32(op.length)

	// Data pushes with parsed lengths -- OP_PUSHDATA{1,2,4}.
	case op.length < 0:
		script := t.script[t.offset+1:]
		prefixLen := -op.length
		if len(script) < prefixLen {
			str := fmt.Sprintf("opcode %s requires %d bytes, but script only has %d remaining",
				op.name, prefixLen, len(script))
			t.fail(scriptError(ErrEarlyEndOfScript, str))
			return false
		}

		var dataLen uint64
		switch prefixLen {
		case 1:
			dataLen = uint64(script[0])
		case 2:
			dataLen = uint64(binary.LittleEndian.Uint16(script[:2]))
		case 4:
			dataLen = uint64(binary.LittleEndian.Uint32(script[:4]))
		default:
			str := fmt.Sprintf("invalid opcode length %d", op.length)
			t.fail(scriptError(ErrInternal, str))
			return false
		}

		script = script[prefixLen:]
		if uint64(len(script)) < dataLen {
			str := fmt.Sprintf("opcode %s pushes %d bytes, but script only has %d remaining",
				op.name, dataLen, len(script))
			t.fail(scriptError(ErrEarlyEndOfScript, str))
			return false
		}

		data = script[:dataLen]
		next += 1 + int32(prefixLen) + int32(dataLen)

	default:
		str := fmt.Sprintf("invalid opcode length %d", op.length)
		t.fail(scriptError(ErrInternal, str))
		return false
	}

	if len(data) > t.maxElementSize {
		str := fmt.Sprintf("element size %d exceeds max allowed size %d", len(data), t.maxElementSize)
		t.fail(scriptError(ErrPushSize, str))
		return false
	}

	if t.minimalPush {
		if err := checkMinimalDataPush(op, data); err != nil {
			t.fail(err.(Error))
			return false
		}
	}

	t.op = op
	t.data = data
	t.offset = next
	return true
}

// fail 记录解析错误，错误中带上出错指令的位置
func (t *ScriptTokenizer) fail(err Error) {
	err.OpcodePos = t.opcodePos
	t.err = err
	t.op = nil
	t.data = nil
}

// checkMinimalDataPush 检查推送数据是否使用了最短的编码方式
func checkMinimalDataPush(op *opcode, data []byte) error {
	opcodeVal := op.value
	dataLen := len(data)
	switch {
	case dataLen == 0 && opcodeVal != OP_0:
		str := fmt.Sprintf("zero length data push is encoded with opcode %s instead of OP_0", op.name)
		return scriptError(ErrNonMinimalPush, str)
	case dataLen == 1 && data[0] >= 1 && data[0] <= 16:
		if opcodeVal != OP_1+data[0]-1 {
			// Should have used OP_1 .. OP_16
			str := fmt.Sprintf("data push of the value %d encoded with opcode %s instead of OP_%d",
				data[0], op.name, data[0])
			return scriptError(ErrNonMinimalPush, str)
		}
	case dataLen == 1 && data[0] == 0x81:
		if opcodeVal != OP_1NEGATE {
			str := fmt.Sprintf("data push of the value -1 encoded with opcode %s instead of OP_1NEGATE",
				op.name)
			return scriptError(ErrNonMinimalPush, str)
		}
	case dataLen <= 75:
		if int(opcodeVal) != dataLen {
			// Should have used a direct push
			str := fmt.Sprintf("data push of %d bytes encoded with opcode %s instead of OP_DATA_%d",
				dataLen, op.name, dataLen)
			return scriptError(ErrNonMinimalPush, str)
		}
	case dataLen <= 255:
		if opcodeVal != OP_PUSHDATA1 {
			str := fmt.Sprintf("data push of %d bytes encoded with opcode %s instead of OP_PUSHDATA1",
				dataLen, op.name)
			return scriptError(ErrNonMinimalPush, str)
		}
	case dataLen <= 65535:
		if opcodeVal != OP_PUSHDATA2 {
			str := fmt.Sprintf("data push of %d bytes encoded with opcode %s instead of OP_PUSHDATA2",
				dataLen, op.name)
			return scriptError(ErrNonMinimalPush, str)
		}
	}
	return nil
}

// Opcode 返回当前指令的操作码，没有当前指令时返回 0
func (t *ScriptTokenizer) Opcode() byte {
	if t.op == nil {
		return 0
	}
	return t.op.value
}

// Data 返回当前指令推送的数据，非推送指令返回 nil。
// 返回的切片引用脚本本身，调用方不得修改。
func (t *ScriptTokenizer) Data() []byte {
	return t.data
}

// ByteIndex 返回下一条指令在脚本中的字节偏移
func (t *ScriptTokenizer) ByteIndex() int32 {
	return t.offset
}

// OpcodePosition 返回当前指令的序号（从 0 开始），尚未解析任何指令时为 -1
func (t *ScriptTokenizer) OpcodePosition() int32 {
	return t.opcodePos
}

// Script 返回正在解析的完整脚本
func (t *ScriptTokenizer) Script() []byte {
	return t.script
}

// Err 返回解析过程中遇到的错误，正常结束时为 nil
func (t *ScriptTokenizer) Err() error {
	return t.err
}
