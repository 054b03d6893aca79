// 数据栈：脚本执行过程中保存字节串的栈
package txscript

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// asBool 获取字节串的布尔值。
// 全零以及负零（最后一个字节为 0x80，其余为 0）都为 false。
func asBool(t []byte) bool {
	for i := range t {
		if t[i] != 0 {
			// Negative 0 is also considered false.
			if i == len(t)-1 && t[i] == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

// fromBool 将布尔值转换为字节串：true 为 [0x01]，false 为空字节串
func fromBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return nil
}

// stack 表示脚本使用的字节串栈，索引总是相对于栈顶（0 为栈顶）。
//
// 栈中的项目可能是脚本或见证数据的子切片，也可能是新分配的计算结果。
// 项目在栈上是不可变的，复制类操作只复制切片头，任何操作都不能原地修改项目。
type stack struct {
	stk               [][]byte
	verifyMinimalData bool
}

// underflow 返回栈深度不足的错误
func (s *stack) underflow(need int32) error {
	str := fmt.Sprintf("operation requires %d stack items, stack has %d", need, len(s.stk))
	return scriptError(ErrNotEnoughElementsOnStack, str)
}

// Depth 返回栈上的项目数
func (s *stack) Depth() int32 {
	return int32(len(s.stk))
}

// PushByteArray 将字节串压入栈顶
//
// 堆栈转换: [... x1 x2] -> [... x1 x2 data]
func (s *stack) PushByteArray(so []byte) {
	s.stk = append(s.stk, so)
}

// PushInt 将数字按最小编码压入栈顶
//
// 堆栈转换: [... x1 x2] -> [... x1 x2 int]
func (s *stack) PushInt(val scriptNum) {
	s.PushByteArray(val.Bytes())
}

// PushBool 将布尔值压入栈顶
//
// 堆栈转换: [... x1 x2] -> [... x1 x2 bool]
func (s *stack) PushBool(val bool) {
	s.PushByteArray(fromBool(val))
}

// PopByteArray 弹出并返回栈顶项目
//
// 堆栈转换: [... x1 x2 x3] -> [... x1 x2]
func (s *stack) PopByteArray() ([]byte, error) {
	return s.nipN(0)
}

// PopInt 弹出栈顶项目并解释为最长 4 字节的数字
//
// 堆栈转换: [... x1 x2 x3] -> [... x1 x2]
func (s *stack) PopInt() (scriptNum, error) {
	so, err := s.PopByteArray()
	if err != nil {
		return 0, err
	}

	return makeScriptNum(so, s.verifyMinimalData, maxScriptNumLen)
}

// PopBool 弹出栈顶项目并解释为布尔值
//
// 堆栈转换: [... x1 x2 x3] -> [... x1 x2]
func (s *stack) PopBool() (bool, error) {
	so, err := s.PopByteArray()
	if err != nil {
		return false, err
	}

	return asBool(so), nil
}

// PeekByteArray 返回距栈顶 idx 处的项目而不移除它
func (s *stack) PeekByteArray(idx int32) ([]byte, error) {
	sz := int32(len(s.stk))
	if idx < 0 || idx >= sz {
		return nil, s.underflow(idx + 1)
	}

	return s.stk[sz-idx-1], nil
}

// PeekInt 将距栈顶 idx 处的项目作为数字返回而不移除它
func (s *stack) PeekInt(idx int32) (scriptNum, error) {
	so, err := s.PeekByteArray(idx)
	if err != nil {
		return 0, err
	}

	return makeScriptNum(so, s.verifyMinimalData, maxScriptNumLen)
}

// PeekBool 将距栈顶 idx 处的项目作为布尔值返回而不移除它
func (s *stack) PeekBool(idx int32) (bool, error) {
	so, err := s.PeekByteArray(idx)
	if err != nil {
		return false, err
	}

	return asBool(so), nil
}

// nipN 移除并返回距栈顶 idx 处的项目。
//
// 堆栈转换:
// nipN(0): [... x1 x2 x3] -> [... x1 x2]
// nipN(1): [... x1 x2 x3] -> [... x1 x3]
// nipN(2): [... x1 x2 x3] -> [... x2 x3]
func (s *stack) nipN(idx int32) ([]byte, error) {
	sz := int32(len(s.stk))
	if idx < 0 || idx >= sz {
		return nil, s.underflow(idx + 1)
	}

	pos := sz - idx - 1
	so := s.stk[pos]
	copy(s.stk[pos:], s.stk[pos+1:])
	s.stk[sz-1] = nil
	s.stk = s.stk[:sz-1]
	return so, nil
}

// NipN 移除距栈顶 idx 处的项目
//
// 堆栈转换:
// NipN(0): [... x1 x2 x3] -> [... x1 x2]
// NipN(1): [... x1 x2 x3] -> [... x1 x3]
// NipN(2): [... x1 x2 x3] -> [... x2 x3]
func (s *stack) NipN(idx int32) error {
	_, err := s.nipN(idx)
	return err
}

// Tuck 复制栈顶项目并插入到第二个项目之下
//
// 堆栈转换: [... x1 x2] -> [... x2 x1 x2]
func (s *stack) Tuck() error {
	if len(s.stk) < 2 {
		return s.underflow(2)
	}
	sz := len(s.stk)
	top := s.stk[sz-1]
	s.stk = append(s.stk, top)
	s.stk[sz-1] = s.stk[sz-2]
	s.stk[sz-2] = top
	return nil
}

// DropN 移除栈顶的 n 个项目
//
// 堆栈转换:
// DropN(1): [... x1 x2] -> [... x1]
// DropN(2): [... x1 x2] -> [...]
func (s *stack) DropN(n int32) error {
	if n < 1 {
		return scriptError(ErrInternal, fmt.Sprintf("attempt to drop %d items from stack", n))
	}
	if int32(len(s.stk)) < n {
		return s.underflow(n)
	}

	s.stk = s.stk[:int32(len(s.stk))-n]
	return nil
}

// DupN 按顺序复制栈顶的 n 个项目
//
// 堆栈转换:
// DupN(1): [... x1 x2] -> [... x1 x2 x2]
// DupN(2): [... x1 x2] -> [... x1 x2 x1 x2]
func (s *stack) DupN(n int32) error {
	if n < 1 {
		return scriptError(ErrInternal, fmt.Sprintf("attempt to dup %d stack items", n))
	}
	sz := int32(len(s.stk))
	if sz < n {
		return s.underflow(n)
	}

	s.stk = append(s.stk, s.stk[sz-n:]...)
	return nil
}

// RotN 将栈顶的 3n 个项目中最底部的 n 个移到栈顶
//
// 堆栈转换:
// RotN(1): [... x1 x2 x3] -> [... x2 x3 x1]
// RotN(2): [... x1 x2 x3 x4 x5 x6] -> [... x3 x4 x5 x6 x1 x2]
func (s *stack) RotN(n int32) error {
	if n < 1 {
		return scriptError(ErrInternal, fmt.Sprintf("attempt to rotate %d stack items", n))
	}
	if int32(len(s.stk)) < 3*n {
		return s.underflow(3 * n)
	}

	// Nip the 3n-1th item from the stack to the top n times to rotate
	// them up to the head of the stack.
	entry := 3*n - 1
	for i := n; i > 0; i-- {
		so, err := s.nipN(entry)
		if err != nil {
			return err
		}
		s.PushByteArray(so)
	}
	return nil
}

// SwapN 交换栈顶的 n 个项目和其下方的 n 个项目
//
// 堆栈转换:
// SwapN(1): [... x1 x2] -> [... x2 x1]
// SwapN(2): [... x1 x2 x3 x4] -> [... x3 x4 x1 x2]
func (s *stack) SwapN(n int32) error {
	if n < 1 {
		return scriptError(ErrInternal, fmt.Sprintf("attempt to swap %d stack items", n))
	}
	if int32(len(s.stk)) < 2*n {
		return s.underflow(2 * n)
	}

	entry := 2*n - 1
	for i := n; i > 0; i-- {
		// Swap 2n-1th entry to top.
		so, err := s.nipN(entry)
		if err != nil {
			return err
		}
		s.PushByteArray(so)
	}
	return nil
}

// OverN 将第二组 n 个项目复制到栈顶
//
// 堆栈转换:
// OverN(1): [... x1 x2 x3] -> [... x1 x2 x3 x2]
// OverN(2): [... x1 x2 x3 x4] -> [... x1 x2 x3 x4 x1 x2]
func (s *stack) OverN(n int32) error {
	if n < 1 {
		return scriptError(ErrInternal, fmt.Sprintf("attempt to perform over on %d stack items", n))
	}
	sz := int32(len(s.stk))
	if sz < 2*n {
		return s.underflow(2 * n)
	}

	s.stk = append(s.stk, s.stk[sz-2*n:sz-n]...)
	return nil
}

// PickN 将距栈顶 n 处的项目复制到栈顶
//
// 堆栈转换:
// PickN(0): [x1 x2 x3] -> [x1 x2 x3 x3]
// PickN(1): [x1 x2 x3] -> [x1 x2 x3 x2]
// PickN(2): [x1 x2 x3] -> [x1 x2 x3 x1]
func (s *stack) PickN(n int32) error {
	so, err := s.PeekByteArray(n)
	if err != nil {
		return err
	}
	s.PushByteArray(so)

	return nil
}

// RollN 将距栈顶 n 处的项目移到栈顶
//
// 堆栈转换:
// RollN(0): [x1 x2 x3] -> [x1 x2 x3]
// RollN(1): [x1 x2 x3] -> [x1 x3 x2]
// RollN(2): [x1 x2 x3] -> [x2 x3 x1]
func (s *stack) RollN(n int32) error {
	so, err := s.nipN(n)
	if err != nil {
		return err
	}
	s.PushByteArray(so)

	return nil
}

// String 以十六进制转储格式返回栈内容，栈底在前
func (s *stack) String() string {
	var b strings.Builder
	for _, item := range s.stk {
		if len(item) == 0 {
			b.WriteString("00000000  <empty>\n")
			continue
		}
		b.WriteString(hex.Dump(item))
	}
	return b.String()
}
