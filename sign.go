// 为交易输入生成签名
package bpfsutxo

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/pkg/errors"
)

// TaggedPubKey 返回带方案标签的公钥编码
func TaggedPubKey(scheme KeyScheme, pub *btcec.PublicKey) ([]byte, error) {
	switch scheme {
	case SchemeSchnorr:
		return append([]byte{byte(scheme)}, schnorr.SerializePubKey(pub)...), nil
	case SchemeECDSA:
		return append([]byte{byte(scheme)}, pub.SerializeCompressed()...), nil
	}
	return nil, fmt.Errorf("unsupported key scheme %v", scheme)
}

// SignHash 使用私钥对签名哈希签名，并在末尾附加签名哈希类型
func SignHash(scheme KeyScheme, priv *btcec.PrivateKey, hash []byte, hashType SigHashType) ([]byte, error) {
	var sig []byte
	switch scheme {
	case SchemeSchnorr:
		s, err := schnorr.Sign(priv, hash)
		if err != nil {
			return nil, errors.Wrap(err, "schnorr sign")
		}
		sig = s.Serialize()

	case SchemeECDSA:
		sig = ecdsa.Sign(priv, hash).Serialize()

	default:
		return nil, fmt.Errorf("unsupported key scheme %v", scheme)
	}

	return append(sig, byte(hashType)), nil
}

// SignInput 为第 idx 个输入生成签名。codeSep 是签名对应的脚本中最后执行的
// OP_CODESEPARATOR 的位置，支付到公钥的花费使用 txscript.NoCodeSeparator。
func SignInput(m *SigHashMidstate, idx int, hashType SigHashType, scheme KeyScheme,
	priv *btcec.PrivateKey, codeSep uint32) ([]byte, error) {

	hash, err := m.CalcSignatureHash(hashType, idx, codeSep)
	if err != nil {
		return nil, err
	}
	return SignHash(scheme, priv, hash, hashType)
}
