package bpfsutxo

import (
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/snowzach/rotatefilehook"
	"github.com/vrecan/death/v3"
)

// EncodeToBytes 使用 gob 编码将任意数据转换为 []byte
func EncodeToBytes(data interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := gob.NewEncoder(&buffer)

	err := encoder.Encode(data)
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// DecodeFromBytes 使用 gob 解码将 []byte 转换为指定的数据结构
func DecodeFromBytes(data []byte, result interface{}) error {
	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)

	err := decoder.Decode(result)
	if err != nil {
		return err
	}

	return nil
}

// WaitForShutdown 阻塞，直到收到程序终止信号，然后调用 fn
func WaitForShutdown(fn func()) {
	//syscall.SIGINT ctr+c触发
	//syscall.SIGTERM 当前进程被kill(即收到SIGTERM)
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(fn)
}

const (
	logName = "console"
)

// SetLog 为每一个实例创建一个log文件，记录日志信息；logsDir 为空时只输出到控制台
func SetLog(instanceId, logsDir string, logLevel logrus.Level) error {
	logrus.SetLevel(logLevel)
	logrus.SetOutput(colorable.NewColorableStdout())
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC822,
	})
	if logsDir == "" {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return err
	}
	filename := filepath.Join(logsDir, fmt.Sprintf("%s.log", logName))
	if instanceId != "" {
		filename = filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", logName, instanceId))
	}
	// logrus 的回调钩子
	rotateFileHook, err := rotatefilehook.NewRotateFileHook(rotatefilehook.RotateFileConfig{
		Filename:   filename,
		MaxSize:    50, // 文件最大50M
		MaxBackups: 3,
		MaxAge:     28, // 存储28天
		Level:      logLevel,
		Formatter: &logrus.JSONFormatter{ // 默认为ASCII formatter，转为JSON formatter
			TimestampFormat: "2006-01-02 15:04:05", // 时间戳字符串格式
		},
	})
	if err != nil {
		logrus.Errorf("[SetLog] 初始化文件回调钩子失败:\t%v", err)
		return err
	}

	logrus.AddHook(rotateFileHook)
	return nil
}

// generateRandomString 生成一个指定长度的随机字符串
func generateRandomString(length int) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	var result strings.Builder
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		result.WriteByte(letters[num.Int64()])
	}
	return result.String(), nil
}
