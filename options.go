package bpfsutxo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/sirupsen/logrus"
)

// 根路径下的目录名称
const (
	dbDir      = "db"      // 数据库目录
	logsDir    = "logs"    // 日志目录
	vectorsDir = "vectors" // 测试向量目录
)

// Options 是用于创建账本的参数
type Options struct {
	IsOpen bool `optional:"false"  default:"false"` // 账本实例是否已打开

	InstanceId string // 账本的实例标识符
	RootPath   string // 文件根路径
	InMemory   bool   // 未花费输出和交易日志不落盘

	MaxInputs     int  // 交易的最大输入数量
	MaxOutputs    int  // 交易的最大输出数量
	MaxScriptSize int  // 见证和锁定脚本的最大字节数
	MinimalPush   bool // 要求最短的数据推送
	MinimalIf     bool // 要求 IF/NOTIF 的条件为空或者 0x01

	RequireStandard bool // 内存池只接受标准交易
	Workers         int  // 批量验证的并发数

	LogLevel logrus.Level // 日志级别
}

// DefaultOptions 设置一个推荐选项列表
func DefaultOptions() *Options {
	return &Options{
		RootPath:        filepath.Join(os.TempDir(), "bpfsutxo"),
		MaxInputs:       DefaultMaxInputs,
		MaxOutputs:      DefaultMaxOutputs,
		MaxScriptSize:   txscript.MaxScriptSize,
		MinimalPush:     true,
		MinimalIf:       true,
		RequireStandard: true,
		Workers:         4,
		LogLevel:        logrus.InfoLevel,
	}
}

// BuildInstanceId 设置实例ID
func (opt *Options) BuildInstanceId(instanceId ...string) {
	if opt.IsOpen { // 账本实例已打开
		return
	}

	if len(instanceId) > 0 {
		opt.InstanceId = instanceId[0]
		return
	}
	id, err := defaultInstanceId()
	if err != nil {
		// 生成随机字符串作为替代值
		id, _ = generateRandomString(12)
	}
	opt.InstanceId = id
}

// BuildRootPath 设置文件根路径
func (opt *Options) BuildRootPath(path string) {
	if opt.IsOpen {
		return
	}
	// 检查路径是否为空
	if path == "" {
		return
	}
	// 检查路径是否是一个绝对路径
	if !filepath.IsAbs(path) {
		return
	}

	opt.RootPath = path
}

// BuildInMemory 设置为内存模式
func (opt *Options) BuildInMemory() {
	if opt.IsOpen {
		return
	}
	opt.InMemory = true
}

// BuildLimits 设置交易的输入输出数量上限
func (opt *Options) BuildLimits(maxInputs, maxOutputs int) {
	if opt.IsOpen {
		return
	}
	opt.MaxInputs = maxInputs
	opt.MaxOutputs = maxOutputs
}

// BuildMinimal 设置最短推送和最短条件的要求
func (opt *Options) BuildMinimal(push, cond bool) {
	if opt.IsOpen {
		return
	}
	opt.MinimalPush = push
	opt.MinimalIf = cond
}

// BuildRequireStandard 设置内存池是否只接受标准交易
func (opt *Options) BuildRequireStandard(require bool) {
	if opt.IsOpen {
		return
	}
	opt.RequireStandard = require
}

// BuildLogLevel 设置日志级别，无法解析时保持不变
func (opt *Options) BuildLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Errorf("[BuildLogLevel] 失败:\t%v", err)
		return
	}
	opt.LogLevel = lvl
}

// DBPath 返回数据库目录
func (opt *Options) DBPath() string {
	return filepath.Join(opt.RootPath, dbDir)
}

// LogsPath 返回日志目录
func (opt *Options) LogsPath() string {
	return filepath.Join(opt.RootPath, logsDir)
}

// VectorsPath 返回测试向量目录
func (opt *Options) VectorsPath() string {
	return filepath.Join(opt.RootPath, vectorsDir)
}

// CheckAndSetOptions 检查并设置选项
func (opt *Options) CheckAndSetOptions() error {
	if opt.IsOpen { // 账本实例已打开
		return fmt.Errorf("'%s' 账本实例已打开", opt.InstanceId)
	}
	if opt.InstanceId == "" {
		opt.BuildInstanceId()
	}
	if opt.MaxInputs <= 0 || opt.MaxOutputs <= 0 {
		return fmt.Errorf("输入输出数量上限必须为正数: %d/%d", opt.MaxInputs, opt.MaxOutputs)
	}
	if opt.MaxScriptSize <= 0 || opt.MaxScriptSize > txscript.MaxScriptSize {
		opt.MaxScriptSize = txscript.MaxScriptSize
	}
	if opt.Workers <= 0 {
		opt.Workers = 1
	}
	if !opt.InMemory && opt.RootPath == "" {
		return fmt.Errorf("未设置文件根路径")
	}

	return nil
}

// ValidatorConfig 返回选项对应的验证器配置
func (opt *Options) ValidatorConfig() *ValidatorConfig {
	cfg := DefaultValidatorConfig()
	cfg.MaxInputs = opt.MaxInputs
	cfg.MaxOutputs = opt.MaxOutputs
	cfg.MaxScriptSize = opt.MaxScriptSize
	cfg.MinimalPush = opt.MinimalPush
	cfg.MinimalIf = opt.MinimalIf
	cfg.Workers = opt.Workers
	return cfg
}
