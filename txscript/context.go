// 签名上下文：由外部提供的链相关能力（参数、公钥与签名解析、签名验证、时间锁）
package txscript

const (
	// MaxScriptElementSize 是默认的单次推送最大字节数
	MaxScriptElementSize = 520

	// MaxPubKeysPerMultiSig 是默认的多重签名最大公钥数
	MaxPubKeysPerMultiSig = 20

	// MaxScriptSize 是默认的脚本最大字节数
	MaxScriptSize = 10000
)

// KeyStatus 表示公钥解析的结果
type KeyStatus int

const (
	// KeyValid 公钥解析成功
	KeyValid KeyStatus = iota

	// KeyReserved 公钥属于尚未定义但保留给未来使用的类型，验证视为通过
	KeyReserved

	// KeyInvalid 公钥格式错误，验证失败
	KeyInvalid
)

// String 返回 KeyStatus 的可读名称
func (s KeyStatus) String() string {
	switch s {
	case KeyValid:
		return "valid"
	case KeyReserved:
		return "reserved"
	case KeyInvalid:
		return "invalid"
	}
	return "unknown"
}

// PubKey 是上下文解析出的公钥，具体类型由上下文实现决定
type PubKey any

// Signature 是上下文解析出的签名数据，具体类型由上下文实现决定
type Signature any

// Context 定义了脚本引擎执行签名检查等操作时所需的外部能力。
//
// 同一个 Context 可能被多个引擎并发使用，实现必须是并发安全的，
// 通常做法是在构造后不再修改。
type Context interface {
	// MaxScriptElementSize 返回单次推送的最大字节数
	MaxScriptElementSize() int

	// MaxPubKeysPerMultiSig 返回多重签名中允许的最大公钥数
	MaxPubKeysPerMultiSig() int

	// MaxScriptSize 返回脚本的最大字节数
	MaxScriptSize() int

	// ParsePubKey 解析公钥。返回 KeyReserved 表示未知但向前兼容的公钥类型。
	ParsePubKey(data []byte) (PubKey, KeyStatus)

	// ParseSignature 按照公钥的类型解析签名，格式错误时返回 false
	ParseSignature(pk PubKey, data []byte) (Signature, bool)

	// VerifySignature 验证签名，codeSepPos 为最后执行的 OP_CODESEPARATOR 的位置
	VerifySignature(sig Signature, pk PubKey, codeSepPos uint32) bool

	// CheckLockTime 检查绝对时间锁
	CheckLockTime(lockTime int64) bool

	// CheckSequence 检查相对时间锁
	CheckSequence(sequence int64) bool

	// EnforceMinimalPush 是否要求推送数据和数字使用最短编码
	EnforceMinimalPush() bool

	// EnforceMinimalIf 是否要求 OP_IF/OP_NOTIF 的条件为空字节串或 [0x01]
	EnforceMinimalIf() bool
}

// DefaultParams 提供 Context 中参数类方法的默认实现，可以嵌入到具体的上下文中。
// 时间锁默认拒绝，需要支持时间锁的链必须显式覆盖。
type DefaultParams struct{}

// MaxScriptElementSize 返回 MaxScriptElementSize
func (DefaultParams) MaxScriptElementSize() int { return MaxScriptElementSize }

// MaxPubKeysPerMultiSig 返回 MaxPubKeysPerMultiSig
func (DefaultParams) MaxPubKeysPerMultiSig() int { return MaxPubKeysPerMultiSig }

// MaxScriptSize 返回 MaxScriptSize
func (DefaultParams) MaxScriptSize() int { return MaxScriptSize }

// CheckLockTime 总是返回 false
func (DefaultParams) CheckLockTime(int64) bool { return false }

// CheckSequence 总是返回 false
func (DefaultParams) CheckSequence(int64) bool { return false }

// EnforceMinimalPush 返回 true
func (DefaultParams) EnforceMinimalPush() bool { return true }

// EnforceMinimalIf 返回 true
func (DefaultParams) EnforceMinimalIf() bool { return true }

// NoSigContext 是不支持签名的上下文：任何公钥都无法解析。
// 适合运行不包含签名检查的脚本，例如一致性测试向量。
type NoSigContext struct {
	DefaultParams
}

// ParsePubKey 总是返回 KeyInvalid
func (NoSigContext) ParsePubKey([]byte) (PubKey, KeyStatus) { return nil, KeyInvalid }

// ParseSignature 总是返回 false
func (NoSigContext) ParseSignature(PubKey, []byte) (Signature, bool) { return nil, false }

// VerifySignature 总是返回 false
func (NoSigContext) VerifySignature(Signature, PubKey, uint32) bool { return false }
