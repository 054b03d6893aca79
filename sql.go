// 已接受交易的 sqlite 日志
package bpfsutxo

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DbFile 是交易日志的数据库文件名
	DbFile = "database.db"

	// acceptedTable 是已接受交易的表名
	acceptedTable = "accepted"
)

// TxRecord 是一条已接受交易的记录
type TxRecord struct {
	TxID       chainhash.Hash
	Fee        uint64
	TokenFees  map[chainhash.Hash]uint64
	Inputs     int
	Outputs    int
	AcceptedAt time.Time
}

// TxLog 记录已经提交的交易
type TxLog struct {
	db *sql.DB
}

// OpenTxLog 打开 path 下的交易日志，path 为 ":memory:" 时使用内存数据库
func OpenTxLog(path string) (*TxLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logrus.Errorf("[OpenTxLog] 打开数据库失败:\t%v", err)
		return nil, errors.Wrap(err, "open tx log")
	}
	// 内存数据库只对单个连接可见
	db.SetMaxOpenConns(1)

	l := &TxLog{db: db}
	if err := l.initDBTable(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close 关闭数据库
func (l *TxLog) Close() error {
	return l.db.Close()
}

// initDBTable 创建数据库表
func (l *TxLog) initDBTable() error {
	table := []string{
		"txid VARCHAR(64) PRIMARY KEY", // 交易标识
		"fee INTEGER NOT NULL",         // 原生金额手续费
		"token_fees BLOB",              // 代币手续费，gob 编码
		"inputs INTEGER NOT NULL",      // 输入数量
		"outputs INTEGER NOT NULL",     // 输出数量
		"accepted_at INTEGER NOT NULL", // 接受时间，Unix 纳秒
	}
	return l.createTable(acceptedTable, table)
}

// createTable 创建表
func (l *TxLog) createTable(name string, columns []string) error {
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(columns, ", "))
	if _, err := l.db.Exec(query); err != nil {
		logrus.Errorf("[createTable] 创建表 %s 失败:\t%v", name, err)
		return errors.Wrapf(err, "create table %s", name)
	}
	return nil
}

// Record 保存一笔已接受的交易，重复记录覆盖旧值
func (l *TxLog) Record(tx *Transaction, summary *ValidationSummary, at time.Time) error {
	var tokenFees []byte
	if len(summary.TokenFees) > 0 {
		var err error
		if tokenFees, err = EncodeToBytes(summary.TokenFees); err != nil {
			return errors.Wrap(err, "encode token fees")
		}
	}

	_, err := l.db.Exec(
		"INSERT OR REPLACE INTO "+acceptedTable+
			" (txid, fee, token_fees, inputs, outputs, accepted_at) VALUES (?, ?, ?, ?, ?, ?)",
		summary.TxID.String(), int64(summary.Fee), tokenFees,
		len(tx.Inputs), len(tx.Outputs), at.UnixNano(),
	)
	if err != nil {
		logrus.Errorf("[Record] 保存交易 %v 失败:\t%v", summary.TxID, err)
		return errors.Wrapf(err, "record transaction %v", summary.TxID)
	}
	return nil
}

// Delete 删除交易的记录，记录不存在时不报错
func (l *TxLog) Delete(txid chainhash.Hash) error {
	if _, err := l.db.Exec("DELETE FROM "+acceptedTable+" WHERE txid=?", txid.String()); err != nil {
		return errors.Wrapf(err, "delete transaction %v", txid)
	}
	return nil
}

// Exists 判断交易是否已经记录
func (l *TxLog) Exists(txid chainhash.Hash) (bool, error) {
	var n int
	err := l.db.QueryRow("SELECT COUNT(1) FROM "+acceptedTable+" WHERE txid=?", txid.String()).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "query transaction")
	}
	return n > 0, nil
}

// Get 返回交易的记录，不存在时返回 (nil, nil)
func (l *TxLog) Get(txid chainhash.Hash) (*TxRecord, error) {
	row := l.db.QueryRow("SELECT txid, fee, token_fees, inputs, outputs, accepted_at FROM "+
		acceptedTable+" WHERE txid=?", txid.String())
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

// Count 返回记录的数量
func (l *TxLog) Count() (int, error) {
	var n int
	if err := l.db.QueryRow("SELECT COUNT(1) FROM " + acceptedTable).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count transactions")
	}
	return n, nil
}

// Recent 按接受时间从新到旧返回至多 limit 条记录
func (l *TxLog) Recent(limit int) ([]*TxRecord, error) {
	rows, err := l.db.Query("SELECT txid, fee, token_fees, inputs, outputs, accepted_at FROM "+
		acceptedTable+" ORDER BY accepted_at DESC, txid LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "query recent transactions")
	}
	defer rows.Close()

	var records []*TxRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// scanner 是 *sql.Row 和 *sql.Rows 共有的方法
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*TxRecord, error) {
	var (
		txid       string
		fee        int64
		tokenFees  []byte
		record     TxRecord
		acceptedAt int64
	)
	if err := s.Scan(&txid, &fee, &tokenFees, &record.Inputs, &record.Outputs, &acceptedAt); err != nil {
		return nil, err
	}

	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, errors.Wrapf(err, "decode txid %s", txid)
	}
	record.TxID = *hash
	record.Fee = uint64(fee)
	record.AcceptedAt = time.Unix(0, acceptedAt)
	record.TokenFees = make(map[chainhash.Hash]uint64)
	if len(tokenFees) > 0 {
		if err := DecodeFromBytes(tokenFees, &record.TokenFees); err != nil {
			return nil, errors.Wrap(err, "decode token fees")
		}
	}
	return &record, nil
}
