// 时间锁相关的共识常量

package txscript

const (
	// LockTimeThreshold 是区分区块高度和时间戳的界限：
	// 小于该值的时间锁表示区块高度，否则表示 Unix 时间戳。
	LockTimeThreshold = 5e8 // 1985 年 11 月 5 日 00:53:20 UTC
)
