// 执行栈：记录 IF/ELSE/ENDIF 嵌套分支的激活状态
package txscript

// execStack 保存每一层条件分支是否处于执行状态，并维护未执行层的计数。
// 只要有任意一层未执行，当前位置就处于屏蔽状态，因此
// executing() 等价于 idle == 0，且不必扫描整个栈。
type execStack struct {
	masks []bool
	idle  int
}

// push 进入一层新的条件分支
func (e *execStack) push(executing bool) {
	if !executing {
		e.idle++
	}
	e.masks = append(e.masks, executing)
}

// pop 退出当前的条件分支，返回该层的状态；栈为空时 ok 为 false
func (e *execStack) pop() (executing bool, ok bool) {
	n := len(e.masks)
	if n == 0 {
		return false, false
	}
	executing = e.masks[n-1]
	e.masks = e.masks[:n-1]
	if !executing {
		e.idle--
	}
	return executing, true
}

// toggle 翻转当前层的状态（OP_ELSE），栈为空时返回 false
func (e *execStack) toggle() bool {
	v, ok := e.pop()
	if !ok {
		return false
	}
	e.push(!v)
	return true
}

// executing 判断当前位置是否处于执行状态
func (e *execStack) executing() bool {
	return e.idle == 0
}

// isEmpty 判断是否所有条件分支都已关闭
func (e *execStack) isEmpty() bool {
	return len(e.masks) == 0
}

// depth 返回当前嵌套的层数
func (e *execStack) depth() int {
	return len(e.masks)
}
