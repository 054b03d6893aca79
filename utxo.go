// 基于 badger 的未花费输出存储
package bpfsutxo

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	utxoPrefix = []byte("utxo-") // 键值前缀
)

// collectSize 是按前缀删除时每批删除的键数量
const collectSize = 100000

// UtxoStore 是保存在 badger 中的未花费输出集合，实现 UtxoView
type UtxoStore struct {
	db *badger.DB
}

// 确保 UtxoStore 实现了 UtxoView
var _ UtxoView = (*UtxoStore)(nil)

// OpenUtxoStore 打开 path 下的存储，inMemory 为 true 时不落盘且忽略 path
func OpenUtxoStore(path string, inMemory bool) (*UtxoStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(logrus.StandardLogger()).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		logrus.Errorf("[OpenUtxoStore] 打开数据库失败:\t%v", err)
		return nil, errors.Wrap(err, "open utxo store")
	}
	return &UtxoStore{db: db}, nil
}

// Close 关闭存储
func (s *UtxoStore) Close() error {
	return s.db.Close()
}

// utxoKey 返回输出点对应的键
func utxoKey(op OutPoint) []byte {
	key := make([]byte, 0, len(utxoPrefix)+len(op.Hash))
	key = append(key, utxoPrefix...)
	return append(key, op.Hash[:]...)
}

// FetchUtxo 返回输出点对应的未花费输出，不存在时返回 (nil, nil)
func (s *UtxoStore) FetchUtxo(op OutPoint) (*TxOutput, error) {
	var out *TxOutput
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(utxoKey(op))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out, err = DeserializeTxOutput(val)
			return err
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch utxo %v", op)
	}
	return out, nil
}

// AddOutputs 不经验证地保存交易的全部可花费输出，用于写入初始输出
func (s *UtxoStore) AddOutputs(tx *Transaction) ([]OutPoint, error) {
	var created []OutPoint
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		created, err = putOutputs(txn, tx)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "add outputs")
	}
	return created, nil
}

// Apply 在一个事务中删除交易花费的输出并保存新的输出。
// 被花费的输出必须存在，否则不做任何修改。
func (s *UtxoStore) Apply(tx *Transaction) ([]OutPoint, error) {
	return s.ApplyWith(tx, nil)
}

// ApplyWith 与 Apply 相同，但在事务提交之前调用 fn。
// fn 返回错误时事务被丢弃，存储保持不变。
func (s *UtxoStore) ApplyWith(tx *Transaction, fn func() error) ([]OutPoint, error) {
	var created []OutPoint
	err := s.db.Update(func(txn *badger.Txn) error {
		for i, in := range tx.Inputs {
			key := utxoKey(in.PreviousOutPoint)
			if _, err := txn.Get(key); err != nil {
				return errors.Wrapf(err, "input %d spends %v", i, in.PreviousOutPoint)
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		var err error
		if created, err = putOutputs(txn, tx); err != nil {
			return err
		}
		if fn != nil {
			return fn()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "apply transaction %v", tx.TxHash())
	}
	return created, nil
}

// putOutputs 写入交易的全部非销毁输出
func putOutputs(txn *badger.Txn, tx *Transaction) ([]OutPoint, error) {
	txid := tx.TxHash()
	created := make([]OutPoint, 0, len(tx.Outputs))
	for i, out := range tx.Outputs {
		if out.IsBurn() {
			continue
		}
		op := NewOutPoint(&txid, uint32(i))
		if err := txn.Set(utxoKey(op), out.Bytes()); err != nil {
			return nil, err
		}
		created = append(created, op)
	}
	return created, nil
}

// ForEach 按键的顺序遍历全部未花费输出，fn 返回错误时停止
func (s *UtxoStore) ForEach(fn func(op OutPoint, out *TxOutput) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		// 使用前缀来查找所有相关的 UTXO
		for it.Seek(utxoPrefix); it.ValidForPrefix(utxoPrefix); it.Next() {
			item := it.Item()
			var op OutPoint
			copy(op.Hash[:], item.Key()[len(utxoPrefix):])

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out, err := DeserializeTxOutput(val)
			if err != nil {
				return errors.Wrapf(err, "decode utxo %v", op)
			}
			if err := fn(op, out); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count 返回未花费输出的数量
func (s *UtxoStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		// 只遍历键
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(utxoPrefix); it.ValidForPrefix(utxoPrefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Reset 删除全部未花费输出
func (s *UtxoStore) Reset() error {
	return s.DeleteByPrefix(utxoPrefix)
}

// DeleteByPrefix 分批删除具有指定前缀的所有键
func (s *UtxoStore) DeleteByPrefix(prefix []byte) error {
	deleteKeys := func(keysForDelete [][]byte) error {
		return s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keysForDelete {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		keysForDelete := make([][]byte, 0, collectSize)
		keysCollected := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keysForDelete = append(keysForDelete, it.Item().KeyCopy(nil))
			keysCollected++
			if keysCollected == collectSize {
				if err := deleteKeys(keysForDelete); err != nil {
					logrus.Errorf("[DeleteByPrefix] 删除失败:\t%v", err)
					return err
				}
				keysForDelete = make([][]byte, 0, collectSize)
				keysCollected = 0
			}
		}
		if keysCollected > 0 {
			if err := deleteKeys(keysForDelete); err != nil {
				logrus.Errorf("[DeleteByPrefix] 删除失败:\t%v", err)
				return err
			}
		}
		return nil
	})
}
