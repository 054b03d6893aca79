// 交易的标准性策略：在共识规则之外，内存池只接受可识别形式的交易
package bpfsutxo

import (
	"fmt"

	"github.com/qinglongcn/bpfsutxo/txscript"
)

const (
	// maxStandardMultiSigKeys 是多重签名锁定脚本中允许的最大公钥数量，以便将其视为标准。
	maxStandardMultiSigKeys = 3

	// maxStandardTxSize 是标准交易序列化后的最大字节数
	maxStandardTxSize = 100000

	// maxStandardSigOps 是标准交易全部锁定脚本中签名操作的最大数量
	maxStandardSigOps = 4000

	// maxStandardMetadataSize 是代币元数据的最大字节数
	maxStandardMetadataSize = 256

	// maxStandardTickerSize 是代币符号的最大字节数
	maxStandardTickerSize = 16
)

// checkLockScriptStandard 对脚本哈希花费的锁定脚本执行一系列检查，以确保它是“标准”锁定脚本。
// 标准锁定脚本是一种可识别的形式，对于多重签名脚本，仅包含 1 到 maxStandardMultiSigKeys 个公钥。
func checkLockScriptStandard(lock []byte, scriptClass txscript.ScriptClass) error {
	switch scriptClass {
	case txscript.MultiSigTy:
		numPubKeys, numSigs, err := txscript.CalcMultiSigStats(lock)
		if err != nil {
			return fmt.Errorf("multi-signature script parse failure: %v", err)
		}

		// 标准多重签名锁定脚本必须包含 1 到 maxStandardMultiSigKeys 个公钥。
		if numPubKeys < 1 {
			return fmt.Errorf("multi-signature script with no pubkeys")
		}
		if numPubKeys > maxStandardMultiSigKeys {
			return fmt.Errorf("multi-signature script with %d public keys which is more than the allowed max of %d", numPubKeys, maxStandardMultiSigKeys)
		}

		// 标准多重签名锁定脚本必须至少有 1 个签名，且签名数量不得多于可用公钥。
		if numSigs < 1 {
			return fmt.Errorf("multi-signature script with no signatures")
		}
		if numSigs > numPubKeys {
			return fmt.Errorf("multi-signature script with %d signatures which is more than the available %d public keys", numSigs, numPubKeys)
		}

	case txscript.NullDataTy:
		return fmt.Errorf("null data script can not be spent")

	case txscript.NonStandardTy:
		return fmt.Errorf("non-standard script form")
	}

	return nil
}

// CheckTransactionStandard 检查交易是否满足标准性策略，不满足时返回 ErrNonStandard
func CheckTransactionStandard(tx *Transaction) error {
	if size := tx.SerializeSize(); size > maxStandardTxSize {
		str := fmt.Sprintf("transaction size of %d is larger than max allowed size of %d",
			size, maxStandardTxSize)
		return ruleError(ErrNonStandard, str)
	}

	sigOps := 0
	for i, in := range tx.Inputs {
		// 支付到公钥的见证是签名本身，不是脚本
		if len(in.Lock) == 0 {
			continue
		}
		if !txscript.IsPushOnlyScript(in.Witness) {
			str := fmt.Sprintf("transaction input %d: witness is not push only", i)
			return ruleError(ErrNonStandard, str)
		}

		if err := checkLockScriptStandard(in.Lock, txscript.GetScriptClass(in.Lock)); err != nil {
			str := fmt.Sprintf("transaction input %d: %v", i, err)
			return ruleError(ErrNonStandard, str)
		}
		sigOps += txscript.CountSigOps(in.Lock, true)
	}
	if sigOps > maxStandardSigOps {
		str := fmt.Sprintf("transaction has %d signature operations which is more than the allowed max of %d",
			sigOps, maxStandardSigOps)
		return ruleError(ErrNonStandard, str)
	}

	for i, out := range tx.Outputs {
		if err := checkOutputStandard(out); err != nil {
			str := fmt.Sprintf("transaction output %d: %v", i, err)
			return ruleError(ErrNonStandard, str)
		}
	}
	return nil
}

// checkOutputStandard 检查单个输出是否为标准形式
func checkOutputStandard(out *TxOutput) error {
	if out.Value == 0 && out.Token == nil && !out.Destination.Kind.isPool() {
		return fmt.Errorf("output carries neither value nor token")
	}

	if out.Destination.Kind == DestCreatePP && txscript.IsUnspendable(out.Destination.Data) {
		return fmt.Errorf("contract code is unspendable")
	}

	if token := out.Token; token != nil {
		if len(token.Ticker) > maxStandardTickerSize {
			return fmt.Errorf("token ticker of %d bytes is larger than max allowed size of %d",
				len(token.Ticker), maxStandardTickerSize)
		}
		if len(token.Metadata) > maxStandardMetadataSize {
			return fmt.Errorf("token metadata of %d bytes is larger than max allowed size of %d",
				len(token.Metadata), maxStandardMetadataSize)
		}
	}
	return nil
}
