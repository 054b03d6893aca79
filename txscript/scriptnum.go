// 脚本数字的编码与解码
package txscript

import (
	"fmt"
)

const (
	maxInt32 = 1<<31 - 1
	minInt32 = -1 << 31

	// maxScriptNumLen 是算术操作码接受的数字的最大字节长度
	maxScriptNumLen = 4

	// lockTimeNumLen 是锁定时间操作码接受的数字的最大字节长度。
	// 5 字节可以表示到 2^39-1，足以覆盖 uint32 范围的时间戳。
	lockTimeNumLen = 5
)

// scriptNum 表示脚本引擎中使用的数值。
//
// 数字以小端序存储，最高字节的最高位是符号位，其余位表示绝对值。
// 0 编码为空字节串，负零（例如 0x80）解码为 0。
//
// 算术操作码的输入最长 4 字节，但运算结果可能超出 int32 范围，
// 因此内部使用 int64 表示，结果重新编码后再压栈。
type scriptNum int64

// checkMinimalDataEncoding 检查字节串是否为数字的最小编码
func checkMinimalDataEncoding(v []byte) error {
	if len(v) == 0 {
		return nil
	}

	// Check that the number is encoded with the minimum possible number
	// of bytes.
	//
	// If the most-significant-byte - excluding the sign bit - is zero
	// then we're not minimal.  Note how this test also rejects the
	// negative-zero encoding, [0x80].
	if v[len(v)-1]&0x7f == 0 {
		// One exception: if there's more than one byte and the most
		// significant bit of the second-most-significant-byte is set it
		// would conflict with the sign bit.
		if len(v) == 1 || v[len(v)-2]&0x80 == 0 {
			str := fmt.Sprintf("numeric value encoded as %x is not minimally encoded", v)
			return scriptError(ErrInvalidOperand, str)
		}
	}

	return nil
}

// Bytes 返回数字的最小编码
//
// Example encodings:
//	   127 -> [0x7f]
//	  -127 -> [0xff]
//	   128 -> [0x80 0x00]
//	  -128 -> [0x80 0x80]
//	   129 -> [0x81 0x00]
//	  -129 -> [0x81 0x80]
//	   256 -> [0x00 0x01]
//	  -256 -> [0x00 0x81]
//	 32767 -> [0xff 0x7f]
//	-32767 -> [0xff 0xff]
//	 32768 -> [0x00 0x80 0x00]
//	-32768 -> [0x00 0x80 0x80]
func (n scriptNum) Bytes() []byte {
	if n == 0 {
		return nil
	}

	isNegative := n < 0
	if isNegative {
		n = -n
	}

	result := make([]byte, 0, 9)
	for n > 0 {
		result = append(result, byte(n&0xff))
		n >>= 8
	}

	// When the most significant byte already has the high bit set, an
	// additional high byte is required to indicate whether the number is
	// negative or positive.
	if result[len(result)-1]&0x80 != 0 {
		extraByte := byte(0x00)
		if isNegative {
			extraByte = 0x80
		}
		result = append(result, extraByte)
	} else if isNegative {
		result[len(result)-1] |= 0x80
	}

	return result
}

// Int32 返回限制在 int32 范围内的数值
func (n scriptNum) Int32() int32 {
	if n > maxInt32 {
		return maxInt32
	}
	if n < minInt32 {
		return minInt32
	}
	return int32(n)
}

// makeScriptNum 将字节串解释为脚本数字。
// 长度超过 scriptNumLen 时返回 ErrNumericOverflow；
// requireMinimal 为 true 时非最小编码返回 ErrInvalidOperand。
func makeScriptNum(v []byte, requireMinimal bool, scriptNumLen int) (scriptNum, error) {
	if len(v) > scriptNumLen {
		str := fmt.Sprintf("numeric value encoded as %x is %d bytes which exceeds the max allowed of %d",
			v, len(v), scriptNumLen)
		return 0, scriptError(ErrNumericOverflow, str)
	}

	if requireMinimal {
		if err := checkMinimalDataEncoding(v); err != nil {
			return 0, err
		}
	}

	if len(v) == 0 {
		return 0, nil
	}

	var result int64
	for i, val := range v {
		result |= int64(val) << uint8(8*i)
	}

	// When the most significant byte of the input bytes has the sign bit
	// set, the result is negative.  So, remove the sign bit from the
	// result and make it negative.
	if v[len(v)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint8(8*(len(v)-1)))
		return scriptNum(-result), nil
	}

	return scriptNum(result), nil
}
