// 测试指令解码器
package txscript

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScriptTokenizer 测试各种推送和操作码的解析结果
func TestScriptTokenizer(t *testing.T) {
	t.Parallel()

	type expectedResult struct {
		op    byte   // 预期的操作码
		data  []byte // 预期的数据
		index int32  // 解析后在脚本中的字节偏移
	}

	type tokenizerTest struct {
		name     string
		script   []byte
		minimal  bool
		expected []expectedResult
		finalIdx int32
		err      error
	}

	errEarlyEnd := scriptError(ErrEarlyEndOfScript, "")
	errNonMinimal := scriptError(ErrNonMinimalPush, "")

	const numTestsHint = 200
	tests := make([]tokenizerTest, 0, numTestsHint)
	for op := byte(OP_DATA_1); op <= OP_DATA_75; op++ {
		data := bytes.Repeat([]byte{0x42}, int(op))
		tests = append(tests, tokenizerTest{
			name:     fmt.Sprintf("OP_DATA_%d", op),
			script:   append([]byte{op}, data...),
			minimal:  true,
			expected: []expectedResult{{op, data, 1 + int32(op)}},
			finalIdx: 1 + int32(op),
		})

		// One byte short of the required data.
		tests = append(tests, tokenizerTest{
			name:     fmt.Sprintf("short OP_DATA_%d", op),
			script:   append([]byte{op}, data[1:]...),
			minimal:  true,
			finalIdx: 0,
			err:      errEarlyEnd,
		})
	}

	tests = append(tests, []tokenizerTest{{
		name:     "OP_PUSHDATA1 76 bytes",
		script:   append([]byte{OP_PUSHDATA1, 76}, bytes.Repeat([]byte{0x42}, 76)...),
		minimal:  true,
		expected: []expectedResult{{OP_PUSHDATA1, bytes.Repeat([]byte{0x42}, 76), 78}},
		finalIdx: 78,
	}, {
		name:     "OP_PUSHDATA1 no length",
		script:   []byte{OP_PUSHDATA1},
		minimal:  true,
		err:      errEarlyEnd,
	}, {
		name:     "OP_PUSHDATA1 short data",
		script:   append([]byte{OP_PUSHDATA1, 80}, bytes.Repeat([]byte{0x42}, 79)...),
		minimal:  true,
		err:      errEarlyEnd,
	}, {
		name:     "OP_PUSHDATA2 256 bytes",
		script:   append([]byte{OP_PUSHDATA2, 0x00, 0x01}, bytes.Repeat([]byte{0x42}, 256)...),
		minimal:  true,
		expected: []expectedResult{{OP_PUSHDATA2, bytes.Repeat([]byte{0x42}, 256), 259}},
		finalIdx: 259,
	}, {
		name:    "OP_PUSHDATA2 truncated length",
		script:  []byte{OP_PUSHDATA2, 0x00},
		minimal: true,
		err:     errEarlyEnd,
	}, {
		name:    "OP_PUSHDATA4 truncated length",
		script:  []byte{OP_PUSHDATA4, 0x01, 0x00, 0x00},
		minimal: true,
		err:     errEarlyEnd,
	}, {
		name:    "OP_PUSHDATA1 of 10 bytes enforced",
		script:  append([]byte{OP_PUSHDATA1, 10}, bytes.Repeat([]byte{0x42}, 10)...),
		minimal: true,
		err:     errNonMinimal,
	}, {
		name:     "OP_PUSHDATA1 of 10 bytes relaxed",
		script:   append([]byte{OP_PUSHDATA1, 10}, bytes.Repeat([]byte{0x42}, 10)...),
		minimal:  false,
		expected: []expectedResult{{OP_PUSHDATA1, bytes.Repeat([]byte{0x42}, 10), 12}},
		finalIdx: 12,
	}, {
		name:    "OP_PUSHDATA2 of 75 bytes enforced",
		script:  append([]byte{OP_PUSHDATA2, 75, 0}, bytes.Repeat([]byte{0x42}, 75)...),
		minimal: true,
		err:     errNonMinimal,
	}, {
		name:    "OP_PUSHDATA4 of 200 bytes enforced",
		script:  append([]byte{OP_PUSHDATA4, 200, 0, 0, 0}, bytes.Repeat([]byte{0x42}, 200)...),
		minimal: true,
		err:     errNonMinimal,
	}, {
		name:    "OP_PUSHDATA1 empty enforced",
		script:  []byte{OP_PUSHDATA1, 0},
		minimal: true,
		err:     errNonMinimal,
	}, {
		name:    "OP_DATA_1 small int enforced",
		script:  []byte{OP_DATA_1, 0x05},
		minimal: true,
		err:     errNonMinimal,
	}, {
		name:    "OP_DATA_1 negative one enforced",
		script:  []byte{OP_DATA_1, 0x81},
		minimal: true,
		err:     errNonMinimal,
	}, {
		name:     "OP_DATA_1 small int relaxed",
		script:   []byte{OP_DATA_1, 0x05},
		minimal:  false,
		expected: []expectedResult{{OP_DATA_1, []byte{0x05}, 2}},
		finalIdx: 2,
	}, {
		name:     "non-minimal push after valid op stops at the push",
		script:   []byte{OP_1, OP_PUSHDATA1, 1, 0x42},
		minimal:  true,
		expected: []expectedResult{{OP_1, nil, 1}},
		finalIdx: 1,
		err:      errNonMinimal,
	}, {
		name:    "push larger than max element",
		script:  append([]byte{OP_PUSHDATA2, 0x09, 0x02}, bytes.Repeat([]byte{0x42}, 521)...),
		minimal: true,
		err:     scriptError(ErrPushSize, ""),
	}, {
		name:    "ops and pushes",
		script:  []byte{OP_0, OP_1, OP_DATA_1, 0x42, OP_DUP, OP_16, 0xff},
		minimal: true,
		expected: []expectedResult{
			{OP_0, nil, 1},
			{OP_1, nil, 2},
			{OP_DATA_1, []byte{0x42}, 4},
			{OP_DUP, nil, 5},
			{OP_16, nil, 6},
			{0xff, nil, 7},
		},
		finalIdx: 7,
	}, {
		name:     "empty script",
		script:   nil,
		minimal:  true,
		finalIdx: 0,
	}}...)

	for _, test := range tests {
		tokenizer := MakeScriptTokenizer(test.script, test.minimal, MaxScriptElementSize)
		var opcodeNum int
		for tokenizer.Next() {
			if opcodeNum >= len(test.expected) {
				t.Fatalf("%q: unexpected token '%d' (num %d)", test.name,
					tokenizer.Opcode(), opcodeNum)
			}
			expected := &test.expected[opcodeNum]

			if tokenizer.Opcode() != expected.op {
				t.Fatalf("%q: unexpected opcode -- got %v, want %v", test.name,
					tokenizer.Opcode(), expected.op)
			}
			if !bytes.Equal(tokenizer.Data(), expected.data) {
				t.Fatalf("%q: unexpected data -- got %x, want %x", test.name,
					tokenizer.Data(), expected.data)
			}
			if tokenizer.ByteIndex() != expected.index {
				t.Fatalf("%q: unexpected byte index -- got %d, want %d",
					test.name, tokenizer.ByteIndex(), expected.index)
			}
			if tokenizer.OpcodePosition() != int32(opcodeNum) {
				t.Fatalf("%q: unexpected opcode position -- got %d, want %d",
					test.name, tokenizer.OpcodePosition(), opcodeNum)
			}

			opcodeNum++
		}

		if opcodeNum != len(test.expected) {
			t.Fatalf("%q: unexpected number of tokens -- got %d, want %d",
				test.name, opcodeNum, len(test.expected))
		}
		if err := tstCheckScriptError(tokenizer.Err(), test.err); err != nil {
			t.Fatalf("%q: %v", test.name, err)
		}
		if tokenizer.ByteIndex() != test.finalIdx {
			t.Fatalf("%q: unexpected final byte index -- got %d, want %d",
				test.name, tokenizer.ByteIndex(), test.finalIdx)
		}
		if !tokenizer.Done() {
			t.Fatalf("%q: tokenizer not done after iteration", test.name)
		}
		if tokenizer.Next() {
			t.Fatalf("%q: tokenizer restarted after completion", test.name)
		}
	}
}

// TestNonMinimalPushStackEffect 测试非最短推送在关闭检查时与最短推送的栈效果相同
func TestNonMinimalPushStackEffect(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0x07}, 40)
	minimalScript := append([]byte{byte(len(payload))}, payload...)
	longScript := append([]byte{OP_PUSHDATA1, byte(len(payload))}, payload...)

	_, err := Run(strictContext{}, longScript, nil)
	require.True(t, IsErrorCode(err, ErrNonMinimalPush), "got %v", err)

	want, err := NewEngine(relaxedContext{}, minimalScript, nil)
	require.NoError(t, err)
	ok, err := want.Execute()
	require.NoError(t, err)
	require.True(t, ok)

	got, err := NewEngine(relaxedContext{}, longScript, nil)
	require.NoError(t, err)
	ok, err = got.Execute()
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, want.GetStack(), got.GetStack())
	require.Equal(t, [][]byte{payload}, got.GetStack())
}

// TestDisasmString 测试反汇编输出
func TestDisasmString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		script []byte
		want   string
		err    bool
	}{
		{[]byte{OP_0, OP_1NEGATE, OP_1, OP_16}, "0 -1 1 16", false},
		{[]byte{OP_DATA_1, 0xab, OP_DUP, OP_HASH160}, "ab OP_DUP OP_HASH160", false},
		{[]byte{OP_IF, OP_ELSE, OP_ENDIF, 0xba}, "OP_IF OP_ELSE OP_ENDIF OP_UNKNOWN186", false},
		{[]byte{OP_DUP, OP_DATA_20, 0x01}, "OP_DUP [error]", true},
	}

	for _, test := range tests {
		got, err := DisasmString(test.script)
		require.Equal(t, test.want, got)
		require.Equal(t, test.err, err != nil)
	}
}
