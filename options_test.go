package bpfsutxo

import (
	"testing"

	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestOptionsBuild(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions()
	opt.BuildInstanceId("node-1")
	opt.BuildRootPath("/var/lib/bpfsutxo")
	opt.BuildRootPath("relative/path")
	opt.BuildRootPath("")
	opt.BuildInMemory()
	opt.BuildLimits(10, 20)
	opt.BuildMinimal(false, true)
	opt.BuildRequireStandard(false)
	opt.BuildLogLevel("debug")
	opt.BuildLogLevel("loud")

	require.Equal(t, "node-1", opt.InstanceId)
	require.Equal(t, "/var/lib/bpfsutxo", opt.RootPath)
	require.True(t, opt.InMemory)
	require.Equal(t, 10, opt.MaxInputs)
	require.Equal(t, 20, opt.MaxOutputs)
	require.False(t, opt.MinimalPush)
	require.True(t, opt.MinimalIf)
	require.False(t, opt.RequireStandard)
	require.Equal(t, logrus.DebugLevel, opt.LogLevel)

	require.Equal(t, "/var/lib/bpfsutxo/db", opt.DBPath())
	require.Equal(t, "/var/lib/bpfsutxo/logs", opt.LogsPath())
	require.Equal(t, "/var/lib/bpfsutxo/vectors", opt.VectorsPath())

	// 打开之后的修改被忽略
	opt.IsOpen = true
	opt.BuildInstanceId("node-2")
	opt.BuildRootPath("/tmp/other")
	opt.BuildLimits(1, 1)
	opt.BuildRequireStandard(true)
	require.Equal(t, "node-1", opt.InstanceId)
	require.Equal(t, "/var/lib/bpfsutxo", opt.RootPath)
	require.Equal(t, 10, opt.MaxInputs)
	require.False(t, opt.RequireStandard)
}

func TestCheckAndSetOptions(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions()
	opt.MaxScriptSize = 0
	opt.Workers = -3
	require.NoError(t, opt.CheckAndSetOptions())
	require.NotEmpty(t, opt.InstanceId)
	require.Equal(t, txscript.MaxScriptSize, opt.MaxScriptSize)
	require.Equal(t, 1, opt.Workers)

	opt = DefaultOptions()
	opt.MaxScriptSize = txscript.MaxScriptSize + 1
	require.NoError(t, opt.CheckAndSetOptions())
	require.Equal(t, txscript.MaxScriptSize, opt.MaxScriptSize)

	opt = DefaultOptions()
	opt.BuildLimits(0, 5)
	require.Error(t, opt.CheckAndSetOptions())

	opt = DefaultOptions()
	opt.RootPath = ""
	require.Error(t, opt.CheckAndSetOptions())
	opt.BuildInMemory()
	require.NoError(t, opt.CheckAndSetOptions())

	opt.IsOpen = true
	require.Error(t, opt.CheckAndSetOptions())
}

func TestOptionsValidatorConfig(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions()
	opt.BuildLimits(3, 4)
	opt.BuildMinimal(false, false)
	opt.MaxScriptSize = 500
	opt.Workers = 2

	cfg := opt.ValidatorConfig()
	require.Equal(t, 3, cfg.MaxInputs)
	require.Equal(t, 4, cfg.MaxOutputs)
	require.Equal(t, 500, cfg.MaxScriptSize)
	require.False(t, cfg.MinimalPush)
	require.False(t, cfg.MinimalIf)
	require.Equal(t, 2, cfg.Workers)
	require.Nil(t, cfg.SequenceChecker)
}
