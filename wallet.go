// 分层确定性钱包：从种子派生签名密钥，并生成公钥地址
package bpfsutxo

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
)

// addressVersion 是地址的版本字节
const addressVersion = byte(0x00)

// Wallet 是基于 BIP32 的钱包
type Wallet struct {
	Seed   []byte     // 种子
	master *bip32.Key // 主密钥
}

// NewWallet 使用给定的种子创建钱包
func NewWallet(seed []byte) (*Wallet, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "create master key")
	}
	return &Wallet{Seed: seed, master: master}, nil
}

// NewRandomWallet 使用随机种子创建钱包
func NewRandomWallet() (*Wallet, error) {
	seed, err := bip32.NewSeed()
	if err != nil {
		return nil, errors.Wrap(err, "generate seed")
	}
	return NewWallet(seed)
}

// DeriveKey 派生第 index 个硬化子密钥
func (w *Wallet) DeriveKey(index uint32) (*btcec.PrivateKey, error) {
	child, err := w.master.NewChildKey(bip32.FirstHardenedChild + index)
	if err != nil {
		return nil, errors.Wrapf(err, "derive child key %d", index)
	}
	return secp256k1.PrivKeyFromBytes(child.Key), nil
}

// DeriveTaggedPubKey 派生第 index 个密钥，并返回指定方案下带标签的公钥
func (w *Wallet) DeriveTaggedPubKey(index uint32, scheme KeyScheme) (*btcec.PrivateKey, []byte, error) {
	priv, err := w.DeriveKey(index)
	if err != nil {
		return nil, nil, err
	}
	pub, err := TaggedPubKey(scheme, priv.PubKey())
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// HashPubKey 返回公钥的 RIPEMD160(SHA256) 哈希
func HashPubKey(pubKey []byte) []byte {
	return btcutil.Hash160(pubKey)
}

// GetAddress 返回带标签公钥对应的地址
func GetAddress(pubKey []byte) string {
	return base58.CheckEncode(HashPubKey(pubKey), addressVersion)
}

// ValidateAddress 检查地址的版本和校验和
func ValidateAddress(address string) bool {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return false
	}
	return version == addressVersion && len(payload) == ScriptHashSize
}
