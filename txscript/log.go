package txscript

// logClosure 用于延迟生成日志内容，只有在日志级别启用时才会计算
type logClosure func() string

// String 调用闭包生成日志内容
func (c logClosure) String() string {
	return c()
}

// newLogClosure 返回一个延迟计算的日志内容
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
