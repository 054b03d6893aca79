// 标准锁定脚本的识别与构建

package txscript

import (
	"fmt"
)

const (
	// MaxDataCarrierSize 是空数据脚本中允许推送的最大字节数
	MaxDataCarrierSize = 80
)

// ScriptClass 是标准锁定脚本类型的枚举
type ScriptClass byte

const (
	NonStandardTy ScriptClass = iota // 没有任何公认的形式
	PubKeyTy                         // <pubkey> OP_CHECKSIG
	MultiSigTy                       // m <pubkey>... n OP_CHECKMULTISIG
	NullDataTy                       // OP_RETURN [data]
)

// scriptClassToName 包含每个脚本类型的名称
var scriptClassToName = []string{
	NonStandardTy: "nonstandard",
	PubKeyTy:      "pubkey",
	MultiSigTy:    "multisig",
	NullDataTy:    "nulldata",
}

// String 返回脚本类型的名称，无效时返回 "Invalid"
func (t ScriptClass) String() string {
	if int(t) >= len(scriptClassToName) {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// multiSigDetails 包含从标准多重签名脚本中提取的信息
type multiSigDetails struct {
	requiredSigs int
	numPubKeys   int
	pubKeys      [][]byte
	valid        bool
}

// extractMultisigScriptDetails 尝试从脚本中提取多重签名的信息，
// 脚本不是标准多重签名脚本时返回的 valid 为 false。
func extractMultisigScriptDetails(script []byte, extractPubKeys bool) multiSigDetails {
	// A multi-signature script is of the form:
	//  NUM_SIGS PUBKEY PUBKEY PUBKEY ... NUM_PUBKEYS OP_CHECKMULTISIG
	if len(script) < 3 || script[len(script)-1] != OP_CHECKMULTISIG {
		return multiSigDetails{}
	}

	tokenizer := MakeScriptTokenizer(script, true, MaxScriptElementSize)
	if !tokenizer.Next() || !IsSmallInt(tokenizer.Opcode()) {
		return multiSigDetails{}
	}
	requiredSigs := AsSmallInt(tokenizer.Opcode())

	var numPubKeys int
	var pubKeys [][]byte
	if extractPubKeys {
		pubKeys = make([][]byte, 0, MaxPubKeysPerMultiSig)
	}
	for tokenizer.Next() {
		if IsSmallInt(tokenizer.Opcode()) {
			break
		}

		data := tokenizer.Data()
		if len(data) == 0 {
			return multiSigDetails{}
		}
		numPubKeys++
		if extractPubKeys {
			pubKeys = append(pubKeys, data)
		}
	}
	if tokenizer.Done() {
		return multiSigDetails{}
	}

	op := tokenizer.Opcode()
	if !IsSmallInt(op) || AsSmallInt(op) != numPubKeys || requiredSigs > numPubKeys {
		return multiSigDetails{}
	}

	// Only the trailing OP_CHECKMULTISIG may remain.
	if int32(len(tokenizer.Script()))-tokenizer.ByteIndex() != 1 {
		return multiSigDetails{}
	}

	return multiSigDetails{
		requiredSigs: requiredSigs,
		numPubKeys:   numPubKeys,
		pubKeys:      pubKeys,
		valid:        true,
	}
}

// IsMultisigScript 返回脚本是否为标准多重签名脚本
func IsMultisigScript(script []byte) bool {
	return extractMultisigScriptDetails(script, false).valid
}

// isPubKeyScript 返回脚本是否为 <pubkey> OP_CHECKSIG 的形式
func isPubKeyScript(script []byte) bool {
	tokenizer := MakeScriptTokenizer(script, true, MaxScriptElementSize)
	if !tokenizer.Next() || tokenizer.Opcode() <= OP_0 || tokenizer.Opcode() > OP_PUSHDATA4 {
		return false
	}
	if !tokenizer.Next() || tokenizer.Opcode() != OP_CHECKSIG {
		return false
	}
	return tokenizer.Done() && tokenizer.Err() == nil
}

// isNullDataScript 返回脚本是否为 OP_RETURN 后跟至多一个不超过 MaxDataCarrierSize 字节的推送
func isNullDataScript(script []byte) bool {
	if len(script) == 0 || script[0] != OP_RETURN {
		return false
	}
	if len(script) == 1 {
		return true
	}

	tokenizer := MakeScriptTokenizer(script[1:], true, MaxScriptElementSize)
	if !tokenizer.Next() || tokenizer.Opcode() > OP_16 || len(tokenizer.Data()) > MaxDataCarrierSize {
		return false
	}
	return tokenizer.Done() && tokenizer.Err() == nil
}

// GetScriptClass 返回锁定脚本的类型
func GetScriptClass(script []byte) ScriptClass {
	switch {
	case isPubKeyScript(script):
		return PubKeyTy
	case IsMultisigScript(script):
		return MultiSigTy
	case isNullDataScript(script):
		return NullDataTy
	}
	return NonStandardTy
}

// CalcMultiSigStats 返回多重签名脚本的公钥数和所需签名数
func CalcMultiSigStats(script []byte) (int, int, error) {
	details := extractMultisigScriptDetails(script, false)
	if !details.valid {
		str := fmt.Sprintf("script %x is not a multisig script", script)
		return 0, 0, scriptError(ErrNotMultisigScript, str)
	}

	return details.numPubKeys, details.requiredSigs, nil
}

// ExtractMultisigPubKeys 返回多重签名脚本中的公钥，顺序与脚本中一致
func ExtractMultisigPubKeys(script []byte) ([][]byte, error) {
	details := extractMultisigScriptDetails(script, true)
	if !details.valid {
		str := fmt.Sprintf("script %x is not a multisig script", script)
		return nil, scriptError(ErrNotMultisigScript, str)
	}
	return details.pubKeys, nil
}

// MultiSigScript 返回需要 nrequired 个签名的多重签名脚本。
// 公钥数量不能超过 16，nrequired 不能超过公钥数量。
func MultiSigScript(pubKeys [][]byte, nrequired int) ([]byte, error) {
	if len(pubKeys) > 16 {
		str := fmt.Sprintf("unable to generate multisig script with %d public keys, max is 16",
			len(pubKeys))
		return nil, scriptError(ErrTooManyRequiredSigs, str)
	}
	if nrequired < 0 || nrequired > len(pubKeys) {
		str := fmt.Sprintf("unable to generate multisig script with %d required signatures when there are only %d public keys available",
			nrequired, len(pubKeys))
		return nil, scriptError(ErrTooManyRequiredSigs, str)
	}

	builder := NewScriptBuilder().AddInt64(int64(nrequired))
	for _, key := range pubKeys {
		builder.AddData(key)
	}
	builder.AddInt64(int64(len(pubKeys)))
	builder.AddOp(OP_CHECKMULTISIG)

	return builder.Script()
}

// PayToPubKeyScript 返回 <pubkey> OP_CHECKSIG 形式的脚本
func PayToPubKeyScript(pubKey []byte) ([]byte, error) {
	return NewScriptBuilder().AddData(pubKey).AddOp(OP_CHECKSIG).Script()
}

// NullDataScript 返回携带数据的不可花费脚本
func NullDataScript(data []byte) ([]byte, error) {
	if len(data) > MaxDataCarrierSize {
		str := fmt.Sprintf("data size %d is larger than max allowed size %d",
			len(data), MaxDataCarrierSize)
		return nil, scriptError(ErrPushSize, str)
	}

	return NewScriptBuilder().AddOp(OP_RETURN).AddData(data).Script()
}
