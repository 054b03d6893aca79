package bpfsutxo

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// openTestTxLog 打开一个内存中的交易日志，测试结束时关闭
func openTestTxLog(t *testing.T) *TxLog {
	t.Helper()

	txlog, err := OpenTxLog(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, txlog.Close())
	})
	return txlog
}

func TestTxLogRecordAndGet(t *testing.T) {
	t.Parallel()

	txlog := openTestTxLog(t)

	tx := sampleTx()
	tokenID := chainhash.Hash{0x42}
	summary := &ValidationSummary{
		TxID:      tx.TxHash(),
		Fee:       125,
		TokenFees: map[chainhash.Hash]uint64{tokenID: 9},
	}
	at := time.Unix(1700000000, 123)
	require.NoError(t, txlog.Record(tx, summary, at))

	ok, err := txlog.Exists(summary.TxID)
	require.NoError(t, err)
	require.True(t, ok)

	record, err := txlog.Get(summary.TxID)
	require.NoError(t, err)
	require.Equal(t, summary.TxID, record.TxID)
	require.Equal(t, uint64(125), record.Fee)
	require.Equal(t, summary.TokenFees, record.TokenFees)
	require.Equal(t, len(tx.Inputs), record.Inputs)
	require.Equal(t, len(tx.Outputs), record.Outputs)
	require.True(t, at.Equal(record.AcceptedAt))

	// 重复记录覆盖旧值
	summary.Fee = 130
	summary.TokenFees = nil
	require.NoError(t, txlog.Record(tx, summary, at))
	record, err = txlog.Get(summary.TxID)
	require.NoError(t, err)
	require.Equal(t, uint64(130), record.Fee)
	require.Empty(t, record.TokenFees)

	count, err := txlog.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestTxLogDelete(t *testing.T) {
	t.Parallel()

	txlog := openTestTxLog(t)

	tx := seedTx(1, 1)
	summary := &ValidationSummary{TxID: tx.TxHash(), Fee: 1}
	require.NoError(t, txlog.Record(tx, summary, time.Unix(1700000000, 0)))
	require.NoError(t, txlog.Delete(summary.TxID))

	ok, err := txlog.Exists(summary.TxID)
	require.NoError(t, err)
	require.False(t, ok)

	// 删除不存在的记录不报错
	require.NoError(t, txlog.Delete(summary.TxID))
}

func TestTxLogMissing(t *testing.T) {
	t.Parallel()

	txlog := openTestTxLog(t)

	ok, err := txlog.Exists(chainhash.Hash{0x01})
	require.NoError(t, err)
	require.False(t, ok)

	record, err := txlog.Get(chainhash.Hash{0x01})
	require.NoError(t, err)
	require.Nil(t, record)

	records, err := txlog.Recent(10)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestTxLogRecent(t *testing.T) {
	t.Parallel()

	txlog := openTestTxLog(t)

	base := time.Unix(1700000000, 0)
	var txids []chainhash.Hash
	for i := 0; i < 4; i++ {
		tx := seedTx(byte(i), 1)
		summary := &ValidationSummary{TxID: tx.TxHash(), Fee: uint64(i)}
		require.NoError(t, txlog.Record(tx, summary, base.Add(time.Duration(i)*time.Second)))
		txids = append(txids, summary.TxID)
	}

	records, err := txlog.Recent(3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, txids[3], records[0].TxID)
	require.Equal(t, txids[2], records[1].TxID)
	require.Equal(t, txids[1], records[2].TxID)
	require.Equal(t, uint64(3), records[0].Fee)
}
