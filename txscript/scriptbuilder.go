// 脚本构建器：以最短编码拼装脚本
package txscript

import (
	"encoding/binary"
	"fmt"
)

const (
	// defaultScriptAlloc 是构建器初始分配的脚本容量
	defaultScriptAlloc = 500
)

// ScriptBuilder 用于构建自定义脚本。
// 所有数据推送都使用最短编码，因此构建出的脚本总能通过最短推送检查。
//
// 任何操作出错后，后续操作都不再生效，错误在调用 Script 时返回。
//
//	builder := txscript.NewScriptBuilder()
//	builder.AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160)
//	builder.AddData(pubKeyHash).AddOp(txscript.OP_EQUALVERIFY)
//	builder.AddOp(txscript.OP_CHECKSIG)
//	script, err := builder.Script()
type ScriptBuilder struct {
	script []byte
	err    error
}

// NewScriptBuilder 返回一个新的脚本构建器
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{
		script: make([]byte, 0, defaultScriptAlloc),
	}
}

// AddOp 追加一个操作码
func (b *ScriptBuilder) AddOp(opcode byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	if len(b.script)+1 > MaxScriptSize {
		str := fmt.Sprintf("adding an opcode would exceed the maximum allowed canonical script length of %d",
			MaxScriptSize)
		b.err = scriptError(ErrScriptTooBig, str)
		return b
	}

	b.script = append(b.script, opcode)
	return b
}

// AddOps 依次追加多个操作码
func (b *ScriptBuilder) AddOps(opcodes []byte) *ScriptBuilder {
	for _, op := range opcodes {
		b.AddOp(op)
	}
	return b
}

// canonicalDataSize 返回以最短编码推送 data 所需的字节数
func canonicalDataSize(data []byte) int {
	dataLen := len(data)

	// Pushes of a small integer or an empty value use a single opcode.
	if dataLen == 0 {
		return 1
	} else if dataLen == 1 && (data[0] <= 16 || data[0] == 0x81) {
		return 1
	}

	if dataLen < OP_PUSHDATA1 {
		return 1 + dataLen
	} else if dataLen <= 0xff {
		return 2 + dataLen
	} else if dataLen <= 0xffff {
		return 3 + dataLen
	}

	return 5 + dataLen
}

// addData 以最短编码追加数据推送，不检查长度
func (b *ScriptBuilder) addData(data []byte) *ScriptBuilder {
	dataLen := len(data)

	if dataLen == 0 || dataLen == 1 && data[0] == 0 {
		b.script = append(b.script, OP_0)
		return b
	} else if dataLen == 1 && data[0] <= 16 {
		b.script = append(b.script, (OP_1-1)+data[0])
		return b
	} else if dataLen == 1 && data[0] == 0x81 {
		b.script = append(b.script, byte(OP_1NEGATE))
		return b
	}

	if dataLen < OP_PUSHDATA1 {
		b.script = append(b.script, byte((OP_DATA_1-1)+dataLen))
	} else if dataLen <= 0xff {
		b.script = append(b.script, OP_PUSHDATA1, byte(dataLen))
	} else if dataLen <= 0xffff {
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(dataLen))
		b.script = append(b.script, OP_PUSHDATA2)
		b.script = append(b.script, buf...)
	} else {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(dataLen))
		b.script = append(b.script, OP_PUSHDATA4)
		b.script = append(b.script, buf...)
	}

	b.script = append(b.script, data...)
	return b
}

// AddData 以最短编码追加数据推送。
// 注意单字节 0 会编码为 OP_0（空字节串），单字节 1..16 会编码为 OP_1..OP_16，
// 二者作为数字时等价。
func (b *ScriptBuilder) AddData(data []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	dataSize := canonicalDataSize(data)
	if len(b.script)+dataSize > MaxScriptSize {
		str := fmt.Sprintf("adding %d bytes of data would exceed the maximum allowed canonical script length of %d",
			dataSize, MaxScriptSize)
		b.err = scriptError(ErrScriptTooBig, str)
		return b
	}

	if dataLen := len(data); dataLen > MaxScriptElementSize {
		str := fmt.Sprintf("adding a data element of %d bytes would exceed the maximum allowed script element size of %d",
			dataLen, MaxScriptElementSize)
		b.err = scriptError(ErrPushSize, str)
		return b
	}

	return b.addData(data)
}

// AddInt64 追加一个数字的推送
func (b *ScriptBuilder) AddInt64(val int64) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	if len(b.script)+1 > MaxScriptSize {
		str := fmt.Sprintf("adding an integer would exceed the maximum allowed canonical script length of %d",
			MaxScriptSize)
		b.err = scriptError(ErrScriptTooBig, str)
		return b
	}

	// Fast path for small integers and OP_1NEGATE.
	if val == 0 {
		b.script = append(b.script, OP_0)
		return b
	}
	if val == -1 || (val >= 1 && val <= 16) {
		b.script = append(b.script, byte((OP_1-1)+val))
		return b
	}

	return b.AddData(scriptNum(val).Bytes())
}

// Reset 清空构建器
func (b *ScriptBuilder) Reset() *ScriptBuilder {
	b.script = b.script[:0]
	b.err = nil
	return b
}

// Script 返回构建出的脚本以及构建过程中的第一个错误
func (b *ScriptBuilder) Script() ([]byte, error) {
	return b.script, b.err
}
