// 测试脚本数字的编码与解码
package txscript

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// hexToBytes 将硬编码的十六进制字符串转换为字节，格式错误时 panic
func hexToBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("invalid hex in source file: " + s)
	}
	return b
}

// TestScriptNumBytes 测试数字到最小编码的转换
func TestScriptNumBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		num        scriptNum
		serialized []byte
	}{
		{0, nil},
		{1, hexToBytes("01")},
		{-1, hexToBytes("81")},
		{127, hexToBytes("7f")},
		{-127, hexToBytes("ff")},
		{128, hexToBytes("8000")},
		{-128, hexToBytes("8080")},
		{129, hexToBytes("8100")},
		{-129, hexToBytes("8180")},
		{256, hexToBytes("0001")},
		{-256, hexToBytes("0081")},
		{32767, hexToBytes("ff7f")},
		{-32767, hexToBytes("ffff")},
		{32768, hexToBytes("008000")},
		{-32768, hexToBytes("008080")},
		{8388608, hexToBytes("00008000")},
		{-8388608, hexToBytes("00008080")},
		{2147483647, hexToBytes("ffffff7f")},
		{-2147483647, hexToBytes("ffffffff")},

		// Results of arithmetic may exceed four bytes.
		{2147483648, hexToBytes("0000008000")},
		{-2147483648, hexToBytes("0000008080")},
		{4294967294, hexToBytes("feffffff00")},
	}

	for _, test := range tests {
		gotBytes := test.num.Bytes()
		if !bytes.Equal(gotBytes, test.serialized) {
			t.Errorf("Bytes: did not get expected bytes for %d - got %x, want %x",
				test.num, gotBytes, test.serialized)
		}
	}
}

// TestMakeScriptNum 测试字节串到数字的解析，包括最小编码和长度限制
func TestMakeScriptNum(t *testing.T) {
	t.Parallel()

	errNumTooBig := scriptError(ErrNumericOverflow, "")
	errMinimalData := scriptError(ErrInvalidOperand, "")

	tests := []struct {
		serialized      []byte
		num             scriptNum
		numLen          int
		minimalEncoding bool
		err             error
	}{
		{nil, 0, maxScriptNumLen, true, nil},
		{hexToBytes("01"), 1, maxScriptNumLen, true, nil},
		{hexToBytes("81"), -1, maxScriptNumLen, true, nil},
		{hexToBytes("7f"), 127, maxScriptNumLen, true, nil},
		{hexToBytes("8000"), 128, maxScriptNumLen, true, nil},
		{hexToBytes("8080"), -128, maxScriptNumLen, true, nil},
		{hexToBytes("ffffff7f"), 2147483647, maxScriptNumLen, true, nil},
		{hexToBytes("ffffffff"), -2147483647, maxScriptNumLen, true, nil},
		{hexToBytes("ffffffff7f"), 549755813887, lockTimeNumLen, true, nil},
		{hexToBytes("ffffffffff"), -549755813887, lockTimeNumLen, true, nil},

		// Longer than the allowed number of bytes.
		{hexToBytes("0000008000"), 0, maxScriptNumLen, true, errNumTooBig},
		{hexToBytes("ffffffffffffffff"), 0, maxScriptNumLen, false, errNumTooBig},

		// Non-minimal encodings.
		{hexToBytes("00"), 0, maxScriptNumLen, true, errMinimalData},
		{hexToBytes("80"), 0, maxScriptNumLen, true, errMinimalData},
		{hexToBytes("0100"), 0, maxScriptNumLen, true, errMinimalData},
		{hexToBytes("7f80"), 0, maxScriptNumLen, true, errMinimalData},

		// The same encodings are accepted when minimal data is not required.
		{hexToBytes("00"), 0, maxScriptNumLen, false, nil},
		{hexToBytes("80"), 0, maxScriptNumLen, false, nil},
		{hexToBytes("0100"), 1, maxScriptNumLen, false, nil},
		{hexToBytes("7f80"), -127, maxScriptNumLen, false, nil},
	}

	for _, test := range tests {
		gotNum, err := makeScriptNum(test.serialized, test.minimalEncoding, test.numLen)
		if e := tstCheckScriptError(err, test.err); e != nil {
			t.Errorf("makeScriptNum(%#x): %v", test.serialized, e)
			continue
		}
		if gotNum != test.num {
			t.Errorf("makeScriptNum(%#x): did not get expected number - got %d, want %d",
				test.serialized, gotNum, test.num)
		}
	}
}

// TestScriptNumReencode 测试对所有合法的最小编码（最长 4 字节），
// 解码后重新编码再解码得到相同的数字，并且 0 编码为空字节串
func TestScriptNumReencode(t *testing.T) {
	t.Parallel()

	if got := scriptNum(0).Bytes(); len(got) != 0 {
		t.Fatalf("encoding of 0 is %x, want empty", got)
	}

	check := func(v []byte) {
		first, err := makeScriptNum(v, true, maxScriptNumLen)
		if err != nil {
			return // not a minimal encoding
		}
		encoded := first.Bytes()
		if !bytes.Equal(encoded, v) && len(v) != 0 {
			t.Errorf("minimal encoding %x re-encoded as %x", v, encoded)
		}
		second, err := makeScriptNum(encoded, true, maxScriptNumLen)
		if err != nil {
			t.Errorf("re-encoded %x failed to decode: %v", encoded, err)
			return
		}
		if first != second {
			t.Errorf("%x decoded to %d then %d", v, first, second)
		}
	}

	check(nil)
	for i := 0; i < 256; i++ {
		check([]byte{byte(i)})
		for j := 0; j < 256; j++ {
			check([]byte{byte(i), byte(j)})
		}
	}
	for _, v := range []scriptNum{65535, -65535, 1 << 20, -(1 << 20), 16777215, -16777215,
		16777216, -16777216, maxInt32, -maxInt32} {
		check(v.Bytes())
	}
}

// TestScriptNumInt32 测试 Int32 的截断行为
func TestScriptNumInt32(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   scriptNum
		want int32
	}{
		{0, 0},
		{-1, -1},
		{2147483647, 2147483647},
		{-2147483648, -2147483648},
		{2147483648, 2147483647},
		{-2147483649, -2147483648},
		{9223372036854775807, 2147483647},
	}

	for _, test := range tests {
		if got := test.in.Int32(); got != test.want {
			t.Errorf("Int32(%d): got %d, want %d", test.in, got, test.want)
		}
	}
}
