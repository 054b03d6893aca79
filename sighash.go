// 签名消息的构建：按签名哈希类型选择承诺的输入和输出
package bpfsutxo

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/blake2b"
)

// SigHashType 是附加在签名末尾的签名哈希类型
type SigHashType byte

// 签名哈希类型的取值
const (
	SigHashAll          SigHashType = 0x01
	SigHashNone         SigHashType = 0x02
	SigHashSingle       SigHashType = 0x03
	SigHashAnyoneCanPay SigHashType = 0x80

	// SigHashDefault 是没有特别指定时使用的类型
	SigHashDefault = SigHashAll

	// sigHashOutputMask 取出输出承诺模式的位
	sigHashOutputMask = 0x7f
)

// 输入承诺和输出承诺的模式标记
const (
	inputModeAll          = 0
	inputModeAnyoneCanPay = 1

	outputModeAll    = 0
	outputModeNone   = 1
	outputModeSingle = 2
)

// IsValid 返回类型是否为 All、None、Single 之一，可以附加 AnyoneCanPay
func (t SigHashType) IsValid() bool {
	switch t & sigHashOutputMask {
	case SigHashAll, SigHashNone, SigHashSingle:
		return true
	}
	return false
}

// OutputMode 返回输出承诺模式
func (t SigHashType) OutputMode() SigHashType {
	return t & sigHashOutputMask
}

// AnyoneCanPay 返回是否只承诺当前输入
func (t SigHashType) AnyoneCanPay() bool {
	return t&SigHashAnyoneCanPay != 0
}

// String 返回类型的可读名称
func (t SigHashType) String() string {
	var name string
	switch t.OutputMode() {
	case SigHashAll:
		name = "ALL"
	case SigHashNone:
		name = "NONE"
	case SigHashSingle:
		name = "SINGLE"
	default:
		return fmt.Sprintf("INVALID(0x%02x)", byte(t))
	}
	if t.AnyoneCanPay() {
		name += "|ANYONECANPAY"
	}
	return name
}

// SigHashMidstate 缓存与输入序号无关的三个中间哈希，
// 同一交易的多个输入验证时可以共享，构造后只读。
type SigHashMidstate struct {
	tx    *Transaction
	spent []*TxOutput

	hashPrevOuts chainhash.Hash // 全部输出点
	hashSpent    chainhash.Hash // 全部被花费输出的序列化
	hashOutputs  chainhash.Hash // 全部输出的序列化
}

// NewSigHashMidstate 计算交易的中间哈希。spent 必须与输入一一对应。
func NewSigHashMidstate(tx *Transaction, spent []*TxOutput) (*SigHashMidstate, error) {
	if len(spent) != len(tx.Inputs) {
		str := fmt.Sprintf("transaction has %d inputs but %d spent outputs were provided",
			len(tx.Inputs), len(spent))
		return nil, ruleError(ErrSpentOutputsMismatch, str)
	}

	m := &SigHashMidstate{tx: tx, spent: spent}

	var buf bytes.Buffer
	for _, in := range tx.Inputs {
		buf.Write(in.PreviousOutPoint.Hash[:])
	}
	m.hashPrevOuts = chainhash.DoubleHashH(buf.Bytes())

	buf.Reset()
	for _, out := range spent {
		_ = writeTxOutput(&buf, out)
	}
	m.hashSpent = chainhash.DoubleHashH(buf.Bytes())

	buf.Reset()
	for _, out := range tx.Outputs {
		_ = writeTxOutput(&buf, out)
	}
	m.hashOutputs = chainhash.DoubleHashH(buf.Bytes())

	return m, nil
}

// CalcSignatureMessage 返回第 idx 个输入在给定签名哈希类型下的签名消息
func CalcSignatureMessage(hashType SigHashType, tx *Transaction, spent []*TxOutput, idx int, codeSep uint32) ([]byte, error) {
	m, err := NewSigHashMidstate(tx, spent)
	if err != nil {
		return nil, err
	}
	return m.CalcSignatureMessage(hashType, idx, codeSep)
}

// CalcSignatureMessage 使用缓存的中间哈希构建签名消息：
//
//	u8 hashType
//	AnyoneCanPay: u8 1 || outpoint(idx) || ser(spent[idx])
//	否则:         u8 0 || H(outpoints) || H(spent) || u64le(idx)
//	All:          u8 0 || H(outputs)
//	None:         u8 1
//	Single:       u8 2 || H(outputs[idx])，没有对应输出时为 32 个零字节
//	u32le codeSep
func (m *SigHashMidstate) CalcSignatureMessage(hashType SigHashType, idx int, codeSep uint32) ([]byte, error) {
	if !hashType.IsValid() {
		str := fmt.Sprintf("invalid signature hash type 0x%02x", byte(hashType))
		return nil, ruleError(ErrInvalidSigHash, str)
	}
	if idx < 0 || idx >= len(m.tx.Inputs) {
		str := fmt.Sprintf("input index %d is out of range for transaction with %d inputs",
			idx, len(m.tx.Inputs))
		return nil, ruleError(ErrInputIndex, str)
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(hashType))

	if hashType.AnyoneCanPay() {
		buf.WriteByte(inputModeAnyoneCanPay)
		buf.Write(m.tx.Inputs[idx].PreviousOutPoint.Hash[:])
		_ = writeTxOutput(&buf, m.spent[idx])
	} else {
		buf.WriteByte(inputModeAll)
		buf.Write(m.hashPrevOuts[:])
		buf.Write(m.hashSpent[:])
		var index [8]byte
		binary.LittleEndian.PutUint64(index[:], uint64(idx))
		buf.Write(index[:])
	}

	switch hashType.OutputMode() {
	case SigHashAll:
		buf.WriteByte(outputModeAll)
		buf.Write(m.hashOutputs[:])

	case SigHashNone:
		buf.WriteByte(outputModeNone)

	case SigHashSingle:
		buf.WriteByte(outputModeSingle)
		var hash chainhash.Hash
		if idx < len(m.tx.Outputs) {
			hash = chainhash.DoubleHashH(m.tx.Outputs[idx].Bytes())
		}
		buf.Write(hash[:])
	}

	var sep [4]byte
	binary.LittleEndian.PutUint32(sep[:], codeSep)
	buf.Write(sep[:])

	return buf.Bytes(), nil
}

// CalcSignatureHash 返回签名消息的承诺哈希 (BLAKE2b-256)，签名和验证都针对该哈希
func (m *SigHashMidstate) CalcSignatureHash(hashType SigHashType, idx int, codeSep uint32) ([]byte, error) {
	msg, err := m.CalcSignatureMessage(hashType, idx, codeSep)
	if err != nil {
		return nil, err
	}
	hash := blake2b.Sum256(msg)
	return hash[:], nil
}

// CalcSignatureHash 返回第 idx 个输入的签名哈希
func CalcSignatureHash(hashType SigHashType, tx *Transaction, spent []*TxOutput, idx int, codeSep uint32) ([]byte, error) {
	m, err := NewSigHashMidstate(tx, spent)
	if err != nil {
		return nil, err
	}
	return m.CalcSignatureHash(hashType, idx, codeSep)
}
