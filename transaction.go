// 交易模型：输出点、目标、代币数据、输入输出以及交易的规范序列化
package bpfsutxo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

const (
	// protocolVersion 是传给 wire 变长编码函数的协议版本，这里的编码与版本无关
	protocolVersion = 0

	// maxFieldSize 是反序列化时单个变长字段允许的最大字节数
	maxFieldSize = 1 << 20

	// maxCount 是反序列化时输入或输出数量的上限
	maxCount = 1 << 16

	// ContractIDSize 是合约标识的字节数
	ContractIDSize = chainhash.HashSize

	// ScriptHashSize 是脚本哈希目标中哈希的字节数
	ScriptHashSize = 20
)

// OutPoint 标识一个交易输出。输出只用一个哈希寻址：DoubleSHA256(txid || u32le(index))
type OutPoint struct {
	Hash chainhash.Hash
}

// NewOutPoint 返回交易 txid 第 index 个输出的输出点
func NewOutPoint(txid *chainhash.Hash, index uint32) OutPoint {
	var buf [chainhash.HashSize + 4]byte
	copy(buf[:], txid[:])
	binary.LittleEndian.PutUint32(buf[chainhash.HashSize:], index)
	return OutPoint{Hash: chainhash.DoubleHashH(buf[:])}
}

// String 返回输出点的十六进制形式
func (o OutPoint) String() string {
	return o.Hash.String()
}

// DestinationKind 是输出目标的类型
type DestinationKind uint8

const (
	DestPubKey     DestinationKind = iota // 支付到带标签的公钥
	DestScriptHash                        // 支付到锁定脚本的 Hash160
	DestCreatePP                          // 在可编程池中创建合约
	DestCallPP                            // 调用可编程池中的合约
)

var destinationKindNames = map[DestinationKind]string{
	DestPubKey:     "pubkey",
	DestScriptHash: "scripthash",
	DestCreatePP:   "create",
	DestCallPP:     "call",
}

// String 返回目标类型的名称
func (k DestinationKind) String() string {
	if s, ok := destinationKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// isPool 返回目标是否交给可编程池处理
func (k DestinationKind) isPool() bool {
	return k == DestCreatePP || k == DestCallPP
}

// Destination 描述输出的花费条件
type Destination struct {
	Kind  DestinationKind
	Data  []byte // 公钥、脚本哈希、合约代码或者合约标识
	Gas   uint64 // 仅可编程池目标使用
	Input []byte // 仅可编程池目标使用
}

// PayToPubKey 返回支付到带标签公钥的目标
func PayToPubKey(taggedKey []byte) Destination {
	return Destination{Kind: DestPubKey, Data: taggedKey}
}

// PayToScriptHash 返回支付到锁定脚本哈希的目标
func PayToScriptHash(lock []byte) Destination {
	return Destination{Kind: DestScriptHash, Data: btcutil.Hash160(lock)}
}

// CreateContract 返回在可编程池中创建合约的目标
func CreateContract(code []byte, gas uint64, input []byte) Destination {
	return Destination{Kind: DestCreatePP, Data: code, Gas: gas, Input: input}
}

// CallContract 返回调用合约的目标
func CallContract(id ContractID, gas uint64, input []byte) Destination {
	return Destination{Kind: DestCallPP, Data: id[:], Gas: gas, Input: input}
}

// TokenKind 是代币数据的类型
type TokenKind uint8

const (
	TokenTransfer TokenKind = iota // 转移已有代币
	TokenIssue                     // 发行同质化代币
	TokenIssueNFT                  // 发行非同质化代币，数量必须为 1
	TokenBurn                      // 销毁代币，不产生可花费的输出
)

var tokenKindNames = map[TokenKind]string{
	TokenTransfer: "transfer",
	TokenIssue:    "issue",
	TokenIssueNFT: "issue-nft",
	TokenBurn:     "burn",
}

// String 返回代币类型的名称
func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// TokenData 是输出携带的代币
type TokenData struct {
	Kind     TokenKind
	ID       chainhash.Hash
	Amount   uint64
	Ticker   []byte
	Metadata []byte
}

// TxInput 引用一个未花费输出并提供花费它的证明
type TxInput struct {
	PreviousOutPoint OutPoint
	Lock             []byte // 脚本哈希花费时的赎回脚本，其他情况为空
	Witness          []byte
}

// TxOutput 是交易的输出
type TxOutput struct {
	Value       uint64
	Destination Destination
	Token       *TokenData
}

// IsBurn 返回输出是否销毁代币
func (o *TxOutput) IsBurn() bool {
	return o.Token != nil && o.Token.Kind == TokenBurn
}

// Bytes 返回输出的规范序列化
func (o *TxOutput) Bytes() []byte {
	var buf bytes.Buffer
	// bytes.Buffer 的写入不会失败
	_ = writeTxOutput(&buf, o)
	return buf.Bytes()
}

// Transaction 是一笔交易
type Transaction struct {
	Version  uint32
	Inputs   []*TxInput
	Outputs  []*TxOutput
	LockTime uint32
}

// NewTransaction 返回指定版本的空交易
func NewTransaction(version uint32) *Transaction {
	return &Transaction{Version: version}
}

// AddInput 追加一个输入
func (tx *Transaction) AddInput(in *TxInput) {
	tx.Inputs = append(tx.Inputs, in)
}

// AddOutput 追加一个输出
func (tx *Transaction) AddOutput(out *TxOutput) {
	tx.Outputs = append(tx.Outputs, out)
}

// Serialize 将交易写入 w，包含见证数据
func (tx *Transaction) Serialize(w io.Writer) error {
	return tx.serialize(w, true)
}

// Bytes 返回包含见证数据的序列化
func (tx *Transaction) Bytes() []byte {
	var buf bytes.Buffer
	_ = tx.serialize(&buf, true)
	return buf.Bytes()
}

// SerializeSize 返回包含见证数据的序列化长度
func (tx *Transaction) SerializeSize() int {
	return len(tx.Bytes())
}

// TxHash 返回去掉全部见证数据后的交易哈希，即交易标识
func (tx *Transaction) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = tx.serialize(&buf, false)
	return chainhash.DoubleHashH(buf.Bytes())
}

// WitnessHash 返回包含见证数据的交易哈希
func (tx *Transaction) WitnessHash() chainhash.Hash {
	return chainhash.DoubleHashH(tx.Bytes())
}

// OutPoint 返回第 index 个输出的输出点
func (tx *Transaction) OutPoint(index int) OutPoint {
	txid := tx.TxHash()
	return NewOutPoint(&txid, uint32(index))
}

// IssuedTokenID 返回该交易发行的代币标识：第一个输入的输出点的双重哈希。
// 没有输入的交易不能发行代币。
func (tx *Transaction) IssuedTokenID() (chainhash.Hash, bool) {
	if len(tx.Inputs) == 0 {
		return chainhash.Hash{}, false
	}
	return chainhash.DoubleHashH(tx.Inputs[0].PreviousOutPoint.Hash[:]), true
}

// Copy 返回交易的深拷贝
func (tx *Transaction) Copy() *Transaction {
	newTx := &Transaction{
		Version:  tx.Version,
		Inputs:   make([]*TxInput, 0, len(tx.Inputs)),
		Outputs:  make([]*TxOutput, 0, len(tx.Outputs)),
		LockTime: tx.LockTime,
	}
	for _, in := range tx.Inputs {
		newTx.Inputs = append(newTx.Inputs, &TxInput{
			PreviousOutPoint: in.PreviousOutPoint,
			Lock:             cloneBytes(in.Lock),
			Witness:          cloneBytes(in.Witness),
		})
	}
	for _, out := range tx.Outputs {
		newTx.Outputs = append(newTx.Outputs, out.Copy())
	}
	return newTx
}

// Copy 返回输出的深拷贝
func (o *TxOutput) Copy() *TxOutput {
	newOut := &TxOutput{
		Value: o.Value,
		Destination: Destination{
			Kind:  o.Destination.Kind,
			Data:  cloneBytes(o.Destination.Data),
			Gas:   o.Destination.Gas,
			Input: cloneBytes(o.Destination.Input),
		},
	}
	if o.Token != nil {
		newOut.Token = &TokenData{
			Kind:     o.Token.Kind,
			ID:       o.Token.ID,
			Amount:   o.Token.Amount,
			Ticker:   cloneBytes(o.Token.Ticker),
			Metadata: cloneBytes(o.Token.Metadata),
		}
	}
	return newOut
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// serialize 写入交易，withWitness 为 false 时每个见证都写成空
func (tx *Transaction) serialize(w io.Writer, withWitness bool) error {
	if err := writeUint32(w, tx.Version); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, protocolVersion, uint64(len(tx.Inputs))); err != nil {
		return err
	}
	for _, in := range tx.Inputs {
		if _, err := w.Write(in.PreviousOutPoint.Hash[:]); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, protocolVersion, in.Lock); err != nil {
			return err
		}
		witness := in.Witness
		if !withWitness {
			witness = nil
		}
		if err := wire.WriteVarBytes(w, protocolVersion, witness); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, protocolVersion, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	for _, out := range tx.Outputs {
		if err := writeTxOutput(w, out); err != nil {
			return err
		}
	}

	return writeUint32(w, tx.LockTime)
}

// Deserialize 从 r 中读取交易
func (tx *Transaction) Deserialize(r io.Reader) error {
	version, err := readUint32(r)
	if err != nil {
		return errors.Wrap(err, "read version")
	}
	tx.Version = version

	count, err := wire.ReadVarInt(r, protocolVersion)
	if err != nil {
		return errors.Wrap(err, "read input count")
	}
	if count > maxCount {
		return errors.Errorf("too many inputs to fit into max message size [count %d, max %d]", count, maxCount)
	}
	tx.Inputs = make([]*TxInput, 0, count)
	for i := uint64(0); i < count; i++ {
		in := new(TxInput)
		if _, err := io.ReadFull(r, in.PreviousOutPoint.Hash[:]); err != nil {
			return errors.Wrapf(err, "read input %d outpoint", i)
		}
		if in.Lock, err = readVarBytes(r, "lock"); err != nil {
			return errors.Wrapf(err, "read input %d", i)
		}
		if in.Witness, err = readVarBytes(r, "witness"); err != nil {
			return errors.Wrapf(err, "read input %d", i)
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	count, err = wire.ReadVarInt(r, protocolVersion)
	if err != nil {
		return errors.Wrap(err, "read output count")
	}
	if count > maxCount {
		return errors.Errorf("too many outputs to fit into max message size [count %d, max %d]", count, maxCount)
	}
	tx.Outputs = make([]*TxOutput, 0, count)
	for i := uint64(0); i < count; i++ {
		out, err := ReadTxOutput(r)
		if err != nil {
			return errors.Wrapf(err, "read output %d", i)
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	lockTime, err := readUint32(r)
	if err != nil {
		return errors.Wrap(err, "read lock time")
	}
	tx.LockTime = lockTime

	return nil
}

// DeserializeTransaction 从字节切片中解析交易，多余的字节视为错误
func DeserializeTransaction(b []byte) (*Transaction, error) {
	r := bytes.NewReader(b)
	tx := new(Transaction)
	if err := tx.Deserialize(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes after transaction", r.Len())
	}
	return tx, nil
}

// writeTxOutput 写入输出：
// u64le value || u8 kind || varbytes data || [u64le gas || varbytes input] || u8 hasToken || [token]
func writeTxOutput(w io.Writer, out *TxOutput) error {
	if err := writeUint64(w, out.Value); err != nil {
		return err
	}

	dest := &out.Destination
	if _, err := w.Write([]byte{byte(dest.Kind)}); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, protocolVersion, dest.Data); err != nil {
		return err
	}
	if dest.Kind.isPool() {
		if err := writeUint64(w, dest.Gas); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, protocolVersion, dest.Input); err != nil {
			return err
		}
	}

	if out.Token == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	token := out.Token
	if _, err := w.Write([]byte{1, byte(token.Kind)}); err != nil {
		return err
	}
	if _, err := w.Write(token.ID[:]); err != nil {
		return err
	}
	if err := writeUint64(w, token.Amount); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, protocolVersion, token.Ticker); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, protocolVersion, token.Metadata)
}

// ReadTxOutput 从 r 中读取一个输出
func ReadTxOutput(r io.Reader) (*TxOutput, error) {
	out := new(TxOutput)
	var err error
	if out.Value, err = readUint64(r); err != nil {
		return nil, err
	}

	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return nil, err
	}
	out.Destination.Kind = DestinationKind(kind[0])
	if out.Destination.Data, err = readVarBytes(r, "destination data"); err != nil {
		return nil, err
	}
	if out.Destination.Kind.isPool() {
		if out.Destination.Gas, err = readUint64(r); err != nil {
			return nil, err
		}
		if out.Destination.Input, err = readVarBytes(r, "destination input"); err != nil {
			return nil, err
		}
	}

	var hasToken [1]byte
	if _, err := io.ReadFull(r, hasToken[:]); err != nil {
		return nil, err
	}
	switch hasToken[0] {
	case 0:
		return out, nil
	case 1:
	default:
		return nil, errors.Errorf("invalid token flag %d", hasToken[0])
	}

	token := new(TokenData)
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return nil, err
	}
	token.Kind = TokenKind(kind[0])
	if _, err := io.ReadFull(r, token.ID[:]); err != nil {
		return nil, err
	}
	if token.Amount, err = readUint64(r); err != nil {
		return nil, err
	}
	if token.Ticker, err = readVarBytes(r, "token ticker"); err != nil {
		return nil, err
	}
	if token.Metadata, err = readVarBytes(r, "token metadata"); err != nil {
		return nil, err
	}
	out.Token = token

	return out, nil
}

// DeserializeTxOutput 从字节切片中解析输出
func DeserializeTxOutput(b []byte) (*TxOutput, error) {
	r := bytes.NewReader(b)
	out, err := ReadTxOutput(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes after output", r.Len())
	}
	return out, nil
}

// readVarBytes 读取变长字节，空字段返回 nil
func readVarBytes(r io.Reader, field string) ([]byte, error) {
	b, err := wire.ReadVarBytes(r, protocolVersion, maxFieldSize, field)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	return b, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
