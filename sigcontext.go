// 交易签名上下文：把脚本引擎的签名检查和时间锁检查绑定到具体的交易输入
package bpfsutxo

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/sirupsen/logrus"
)

// KeyScheme 是带标签公钥的第一个字节，标识签名方案
type KeyScheme byte

const (
	// SchemeSchnorr 后跟 32 字节 BIP340 x-only 公钥
	SchemeSchnorr KeyScheme = 0x00

	// SchemeECDSA 后跟 33 字节压缩 secp256k1 公钥，签名为 DER 编码
	SchemeECDSA KeyScheme = 0x01

	// 0x02 到 0x7f 保留给未来的签名方案，验证时视为通过
	minReservedScheme KeyScheme = 0x02
	maxReservedScheme KeyScheme = 0x7f
)

// String 返回签名方案的名称
func (s KeyScheme) String() string {
	switch {
	case s == SchemeSchnorr:
		return "schnorr"
	case s == SchemeECDSA:
		return "ecdsa"
	case s >= minReservedScheme && s <= maxReservedScheme:
		return fmt.Sprintf("reserved(0x%02x)", byte(s))
	}
	return fmt.Sprintf("invalid(0x%02x)", byte(s))
}

// taggedKey 是解析后的公钥
type taggedKey struct {
	scheme KeyScheme
	key    *btcec.PublicKey
}

// parsedSig 是解析后的签名
type parsedSig struct {
	hashType SigHashType
	schnorr  *schnorr.Signature
	ecdsa    *ecdsa.Signature
}

// SequenceChecker 判断输入是否满足相对时间锁
type SequenceChecker func(tx *Transaction, idx int, sequence int64) bool

// TxSigContext 是绑定到交易中某个输入的脚本上下文，实现 txscript.Context。
// 构造后不再修改，可以被多个引擎并发使用。
type TxSigContext struct {
	txscript.DefaultParams

	tx       *Transaction
	idx      int
	midstate *SigHashMidstate

	minimalPush bool
	minimalIf   bool
	sequence    SequenceChecker
}

// 确保 TxSigContext 实现了 txscript.Context
var _ txscript.Context = (*TxSigContext)(nil)

// SigContextOption 修改 TxSigContext 的可选配置
type SigContextOption func(*TxSigContext)

// WithMinimalPush 设置是否强制最短推送编码
func WithMinimalPush(enforce bool) SigContextOption {
	return func(c *TxSigContext) {
		c.minimalPush = enforce
	}
}

// WithMinimalIf 设置是否强制 OP_IF 条件为最小布尔值
func WithMinimalIf(enforce bool) SigContextOption {
	return func(c *TxSigContext) {
		c.minimalIf = enforce
	}
}

// WithSequenceChecker 设置相对时间锁的检查函数
func WithSequenceChecker(fn SequenceChecker) SigContextOption {
	return func(c *TxSigContext) {
		c.sequence = fn
	}
}

// NewTxSigContext 返回第 idx 个输入的签名上下文。
// midstate 可以在同一交易的多个输入之间共享。
func NewTxSigContext(midstate *SigHashMidstate, idx int, opts ...SigContextOption) (*TxSigContext, error) {
	if idx < 0 || idx >= len(midstate.tx.Inputs) {
		str := fmt.Sprintf("input index %d is out of range for transaction with %d inputs",
			idx, len(midstate.tx.Inputs))
		return nil, ruleError(ErrInputIndex, str)
	}

	c := &TxSigContext{
		tx:          midstate.tx,
		idx:         idx,
		midstate:    midstate,
		minimalPush: true,
		minimalIf:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParsePubKey 按照标签解析公钥
func (c *TxSigContext) ParsePubKey(data []byte) (txscript.PubKey, txscript.KeyStatus) {
	if len(data) == 0 {
		return nil, txscript.KeyInvalid
	}

	scheme := KeyScheme(data[0])
	switch {
	case scheme == SchemeSchnorr:
		if len(data) != 1+schnorr.PubKeyBytesLen {
			return nil, txscript.KeyInvalid
		}
		key, err := schnorr.ParsePubKey(data[1:])
		if err != nil {
			return nil, txscript.KeyInvalid
		}
		return &taggedKey{scheme: scheme, key: key}, txscript.KeyValid

	case scheme == SchemeECDSA:
		if len(data) != 1+btcec.PubKeyBytesLenCompressed {
			return nil, txscript.KeyInvalid
		}
		key, err := btcec.ParsePubKey(data[1:])
		if err != nil {
			return nil, txscript.KeyInvalid
		}
		return &taggedKey{scheme: scheme, key: key}, txscript.KeyValid

	case scheme >= minReservedScheme && scheme <= maxReservedScheme:
		return nil, txscript.KeyReserved
	}

	return nil, txscript.KeyInvalid
}

// ParseSignature 解析签名：方案签名后跟一个签名哈希类型字节
func (c *TxSigContext) ParseSignature(pk txscript.PubKey, data []byte) (txscript.Signature, bool) {
	key, ok := pk.(*taggedKey)
	if !ok || len(data) < 2 {
		return nil, false
	}

	hashType := SigHashType(data[len(data)-1])
	if !hashType.IsValid() {
		return nil, false
	}
	body := data[:len(data)-1]

	switch key.scheme {
	case SchemeSchnorr:
		if len(body) != schnorr.SignatureSize {
			return nil, false
		}
		sig, err := schnorr.ParseSignature(body)
		if err != nil {
			return nil, false
		}
		return &parsedSig{hashType: hashType, schnorr: sig}, true

	case SchemeECDSA:
		sig, err := ecdsa.ParseDERSignature(body)
		if err != nil {
			return nil, false
		}
		return &parsedSig{hashType: hashType, ecdsa: sig}, true
	}

	return nil, false
}

// VerifySignature 对签名消息的承诺哈希验证签名
func (c *TxSigContext) VerifySignature(sig txscript.Signature, pk txscript.PubKey, codeSepPos uint32) bool {
	key, ok := pk.(*taggedKey)
	if !ok {
		return false
	}
	s, ok := sig.(*parsedSig)
	if !ok {
		return false
	}

	hash, err := c.midstate.CalcSignatureHash(s.hashType, c.idx, codeSepPos)
	if err != nil {
		logrus.Errorf("[VerifySignature] 计算签名哈希失败:\t%v", err)
		return false
	}

	switch {
	case key.scheme == SchemeSchnorr && s.schnorr != nil:
		return s.schnorr.Verify(hash, key.key)
	case key.scheme == SchemeECDSA && s.ecdsa != nil:
		return s.ecdsa.Verify(hash, key.key)
	}
	return false
}

// CheckLockTime 要求 lockTime 不大于交易的锁定时间，并且两者同为区块高度或同为时间戳
func (c *TxSigContext) CheckLockTime(lockTime int64) bool {
	txLockTime := int64(c.tx.LockTime)
	if (lockTime < txscript.LockTimeThreshold) != (txLockTime < txscript.LockTimeThreshold) {
		return false
	}
	return lockTime <= txLockTime
}

// CheckSequence 交给 SequenceChecker 判断，没有设置时总是失败
func (c *TxSigContext) CheckSequence(sequence int64) bool {
	if c.sequence == nil {
		return false
	}
	return c.sequence(c.tx, c.idx, sequence)
}

// EnforceMinimalPush 返回是否强制最短推送编码
func (c *TxSigContext) EnforceMinimalPush() bool {
	return c.minimalPush
}

// EnforceMinimalIf 返回是否强制最小布尔条件
func (c *TxSigContext) EnforceMinimalIf() bool {
	return c.minimalIf
}
