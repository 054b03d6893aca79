// 交易内存池：验证通过的交易挂起，缺少输入的交易排队等待重新处理
package bpfsutxo

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

// 队列名称
const (
	QueuePending = "pending"
	QueueQueued  = "queued"
)

// poolEntry 是内存池中的一笔交易
type poolEntry struct {
	tx      *Transaction
	summary *ValidationSummary
}

// MemoryPool 交易内存池
type MemoryPool struct {
	mu        sync.RWMutex
	validator *Validator

	Pending map[chainhash.Hash]*poolEntry // 挂起的交易队列
	Queued  map[chainhash.Hash]*poolEntry // 排队的交易队列

	spent map[OutPoint]chainhash.Hash // 挂起交易花费的输出点
}

type NewMemoryPoolInput struct {
	fx.In

	Validator *Validator // 交易验证器
}

type NewMemoryPoolOutput struct {
	fx.Out

	Pool *MemoryPool // 交易内存池
}

// NewMemoryPool 初始化一个新的交易内存池
func NewMemoryPool(lc fx.Lifecycle, input NewMemoryPoolInput) (out NewMemoryPoolOutput, err error) {
	out.Pool = newMemoryPool(input.Validator)
	return out, nil
}

// newMemoryPool 返回空的内存池
func newMemoryPool(validator *Validator) *MemoryPool {
	return &MemoryPool{
		validator: validator,
		Pending:   make(map[chainhash.Hash]*poolEntry),
		Queued:    make(map[chainhash.Hash]*poolEntry),
		spent:     make(map[OutPoint]chainhash.Hash),
	}
}

// Submit 验证交易并放入内存池：验证通过的进入挂起队列，缺少输入的进入排队队列
func (memo *MemoryPool) Submit(tx *Transaction) (*ValidationSummary, error) {
	txid := tx.TxHash()

	memo.mu.Lock()
	defer memo.mu.Unlock()

	if memo.has(txid) {
		str := fmt.Sprintf("transaction %v is already in the memory pool", txid)
		return nil, ruleError(ErrAlreadyKnown, str)
	}
	if err := memo.checkDoubleSpend(tx); err != nil {
		return nil, err
	}

	summary, err := memo.validator.ValidateTransaction(tx)
	if err != nil {
		logrus.Debugf("[Submit] 拒绝交易 %v:\t%v", txid, err)
		if logrus.IsLevelEnabled(logrus.TraceLevel) {
			logrus.Tracef("[Submit] 被拒绝的交易:\n%s", spew.Sdump(tx))
		}
		return nil, err
	}

	entry := &poolEntry{tx: tx, summary: summary}
	if summary.HasMissingInputs() {
		memo.Queued[txid] = entry
		logrus.Debugf("[Submit] 交易 %v 缺少输入，进入排队队列", txid)
		return summary, nil
	}

	memo.addPending(txid, entry)
	logrus.Debugf("[Submit] 接受交易 %v，手续费 %d", txid, summary.Fee)
	return summary, nil
}

// Reprocess 重新验证排队的交易，返回进入挂起队列的交易标识。
// 验证失败的交易从排队队列中删除，仍然缺少输入的保持不变。
func (memo *MemoryPool) Reprocess() []chainhash.Hash {
	memo.mu.Lock()
	defer memo.mu.Unlock()

	var accepted []chainhash.Hash
	for _, txid := range sortedHashes(memo.Queued) {
		entry := memo.Queued[txid]
		if err := memo.checkDoubleSpend(entry.tx); err != nil {
			logrus.Debugf("[Reprocess] 删除交易 %v:\t%v", txid, err)
			delete(memo.Queued, txid)
			continue
		}

		summary, err := memo.validator.ValidateTransaction(entry.tx)
		if err != nil {
			logrus.Debugf("[Reprocess] 删除交易 %v:\t%v", txid, err)
			delete(memo.Queued, txid)
			continue
		}
		if summary.HasMissingInputs() {
			entry.summary = summary
			continue
		}

		delete(memo.Queued, txid)
		entry.summary = summary
		memo.addPending(txid, entry)
		accepted = append(accepted, txid)
	}
	return accepted
}

// Move 将交易从一个队列中移到另外一个队列
func (memo *MemoryPool) Move(txid chainhash.Hash, to string) {
	memo.mu.Lock()
	defer memo.mu.Unlock()

	switch to {
	case QueuePending:
		if entry, ok := memo.Queued[txid]; ok {
			delete(memo.Queued, txid)
			memo.addPending(txid, entry)
		}
	case QueueQueued:
		if entry, ok := memo.Pending[txid]; ok {
			memo.removePending(txid)
			memo.Queued[txid] = entry
		}
	}
}

// Remove 从某个队列中删除交易
func (memo *MemoryPool) Remove(txid chainhash.Hash, from string) {
	memo.mu.Lock()
	defer memo.mu.Unlock()

	switch from {
	case QueueQueued:
		delete(memo.Queued, txid)
	case QueuePending:
		memo.removePending(txid)
	}
}

// RemoveFromAll 从挂起和排队队列中全部删除某个交易
func (memo *MemoryPool) RemoveFromAll(txid chainhash.Hash) {
	memo.mu.Lock()
	defer memo.mu.Unlock()

	delete(memo.Queued, txid)
	memo.removePending(txid)
}

// ClearAll 从内存池中清除全部的交易
func (memo *MemoryPool) ClearAll() {
	memo.mu.Lock()
	defer memo.mu.Unlock()

	memo.Pending = make(map[chainhash.Hash]*poolEntry)
	memo.Queued = make(map[chainhash.Hash]*poolEntry)
	memo.spent = make(map[OutPoint]chainhash.Hash)
}

// GetTransactions 按交易标识的顺序从挂起队列中得到至多 count 笔交易，count 小于等于 0 时返回全部
func (memo *MemoryPool) GetTransactions(count int) []*Transaction {
	memo.mu.RLock()
	defer memo.mu.RUnlock()

	txids := sortedHashes(memo.Pending)
	if count > 0 && len(txids) > count {
		txids = txids[:count]
	}
	txs := make([]*Transaction, 0, len(txids))
	for _, txid := range txids {
		txs = append(txs, memo.Pending[txid].tx)
	}
	return txs
}

// Get 返回挂起队列中的交易及其验证结果
func (memo *MemoryPool) Get(txid chainhash.Hash) (*Transaction, *ValidationSummary, bool) {
	memo.mu.RLock()
	defer memo.mu.RUnlock()

	entry, ok := memo.Pending[txid]
	if !ok {
		return nil, nil, false
	}
	return entry.tx, entry.summary, true
}

// Count 返回挂起和排队的交易数量
func (memo *MemoryPool) Count() (pending, queued int) {
	memo.mu.RLock()
	defer memo.mu.RUnlock()
	return len(memo.Pending), len(memo.Queued)
}

func (memo *MemoryPool) has(txid chainhash.Hash) bool {
	_, pending := memo.Pending[txid]
	_, queued := memo.Queued[txid]
	return pending || queued
}

// checkDoubleSpend 检查交易是否花费了挂起交易已经花费的输出点
func (memo *MemoryPool) checkDoubleSpend(tx *Transaction) error {
	for i, in := range tx.Inputs {
		if other, ok := memo.spent[in.PreviousOutPoint]; ok {
			str := fmt.Sprintf("input %d spends %v which is already spent by pending transaction %v",
				i, in.PreviousOutPoint, other)
			return ruleError(ErrDoubleSpend, str)
		}
	}
	return nil
}

func (memo *MemoryPool) addPending(txid chainhash.Hash, entry *poolEntry) {
	memo.Pending[txid] = entry
	for _, in := range entry.tx.Inputs {
		memo.spent[in.PreviousOutPoint] = txid
	}
}

func (memo *MemoryPool) removePending(txid chainhash.Hash) {
	entry, ok := memo.Pending[txid]
	if !ok {
		return
	}
	delete(memo.Pending, txid)
	for _, in := range entry.tx.Inputs {
		if memo.spent[in.PreviousOutPoint] == txid {
			delete(memo.spent, in.PreviousOutPoint)
		}
	}
}

// sortedHashes 返回按字节顺序排列的键
func sortedHashes(m map[chainhash.Hash]*poolEntry) []chainhash.Hash {
	hashes := make([]chainhash.Hash, 0, len(m))
	for h := range m {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	return hashes
}
