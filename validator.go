// 交易验证：结构检查、输入解析、花费授权、金额与代币平衡
package bpfsutxo

import (
	"bytes"
	"fmt"
	"math"
	"runtime"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxInputs 是默认允许的最大输入数量
	DefaultMaxInputs = 1000

	// DefaultMaxOutputs 是默认允许的最大输出数量
	DefaultMaxOutputs = 1000
)

// UtxoView 提供未花费输出的查询，输出不存在时返回 (nil, nil)
type UtxoView interface {
	FetchUtxo(op OutPoint) (*TxOutput, error)
}

// ProgrammablePool 是执行合约的外部协作者
type ProgrammablePool interface {
	Create(req CreateRequest) (ContractID, error)
	Call(req CallRequest) error
}

// ValidatorConfig 是验证器的配置
type ValidatorConfig struct {
	MaxInputs       int             // 最大输入数量
	MaxOutputs      int             // 最大输出数量
	MaxScriptSize   int             // 见证和锁定脚本的最大字节数
	MinimalPush     bool            // 是否强制最短推送编码
	MinimalIf       bool            // 是否强制最小布尔条件
	SequenceChecker SequenceChecker // 相对时间锁检查，可以为 nil
	Workers         int             // 批量验证时的并发数
}

// DefaultValidatorConfig 返回默认配置
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxInputs:     DefaultMaxInputs,
		MaxOutputs:    DefaultMaxOutputs,
		MaxScriptSize: txscript.MaxScriptSize,
		MinimalPush:   true,
		MinimalIf:     true,
		Workers:       runtime.NumCPU(),
	}
}

// ValidationSummary 是验证通过或者缺少输入时的结果
type ValidationSummary struct {
	TxID          chainhash.Hash            // 交易标识
	Fee           uint64                    // 原生金额的剩余部分
	TokenFees     map[chainhash.Hash]uint64 // 每种代币的剩余部分
	MissingInputs []OutPoint                // 在存储中找不到的输入
	NewOutputs    []OutPoint                // 新创建的可花费输出
}

// HasMissingInputs 返回交易是否因为缺少输入而没有完成验证
func (s *ValidationSummary) HasMissingInputs() bool {
	return len(s.MissingInputs) > 0
}

// Validator 验证交易。验证只读取 UtxoView，不修改任何状态，
// 不同交易可以并发验证。
type Validator struct {
	view UtxoView
	pool ProgrammablePool
	cfg  ValidatorConfig
}

// NewValidator 返回新的验证器，cfg 为 nil 时使用默认配置，pool 可以为 nil
func NewValidator(view UtxoView, pool ProgrammablePool, cfg *ValidatorConfig) *Validator {
	if cfg == nil {
		cfg = DefaultValidatorConfig()
	}
	return &Validator{view: view, pool: pool, cfg: *cfg}
}

// ValidateTransaction 验证交易，返回第一个遇到的错误。
// 存在缺少的输入时返回只包含 MissingInputs 的结果，不做后续检查。
func (v *Validator) ValidateTransaction(tx *Transaction) (*ValidationSummary, error) {
	txid := tx.TxHash()

	// 1. 结构检查
	if err := v.checkStructure(tx, &txid); err != nil {
		return nil, err
	}

	// 2. 解析全部输入
	spent, missing, err := v.resolveInputs(tx)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		logrus.Debugf("[ValidateTransaction] 交易 %v 缺少 %d 个输入", txid, len(missing))
		return &ValidationSummary{TxID: txid, MissingInputs: missing}, nil
	}

	// 3. 花费授权
	midstate, err := NewSigHashMidstate(tx, spent)
	if err != nil {
		return nil, err
	}
	for idx := range tx.Inputs {
		if err := v.checkInput(midstate, idx, spent[idx]); err != nil {
			return nil, err
		}
	}
	if err := v.checkContractOutputs(tx, &txid); err != nil {
		return nil, err
	}

	// 4. 金额与代币
	summary, err := checkBalances(tx, spent)
	if err != nil {
		return nil, err
	}
	summary.TxID = txid

	// 5. 新输出
	for i, out := range tx.Outputs {
		if out.IsBurn() {
			continue
		}
		summary.NewOutputs = append(summary.NewOutputs, NewOutPoint(&txid, uint32(i)))
	}

	return summary, nil
}

// BatchResult 是批量验证中单笔交易的结果
type BatchResult struct {
	Summary *ValidationSummary
	Err     error
}

// ValidateBatch 并发验证多笔互不依赖的交易，结果与输入顺序一致
func (v *Validator) ValidateBatch(txs []*Transaction) []BatchResult {
	results := make([]BatchResult, len(txs))

	var g errgroup.Group
	if v.cfg.Workers > 0 {
		g.SetLimit(v.cfg.Workers)
	}
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			summary, err := v.ValidateTransaction(tx)
			results[i] = BatchResult{Summary: summary, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ValidateScript 使用给定的上下文执行脚本，返回 txscript.Run 的结果
func ValidateScript(ctx txscript.Context, script []byte, initial [][]byte) (bool, error) {
	return txscript.Run(ctx, script, initial)
}

// checkStructure 检查不依赖存储内容之外状态的结构规则
func (v *Validator) checkStructure(tx *Transaction, txid *chainhash.Hash) error {
	if len(tx.Inputs) == 0 {
		return ruleError(ErrNoInputs, "transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return ruleError(ErrNoOutputs, "transaction has no outputs")
	}
	if v.cfg.MaxInputs > 0 && len(tx.Inputs) > v.cfg.MaxInputs {
		str := fmt.Sprintf("transaction has %d inputs, max allowed is %d",
			len(tx.Inputs), v.cfg.MaxInputs)
		return ruleError(ErrTooManyInputs, str)
	}
	if v.cfg.MaxOutputs > 0 && len(tx.Outputs) > v.cfg.MaxOutputs {
		str := fmt.Sprintf("transaction has %d outputs, max allowed is %d",
			len(tx.Outputs), v.cfg.MaxOutputs)
		return ruleError(ErrTooManyOutputs, str)
	}

	seen := make(map[OutPoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, ok := seen[in.PreviousOutPoint]; ok {
			str := fmt.Sprintf("input %d spends outpoint %v more than once", i, in.PreviousOutPoint)
			return ruleError(ErrDuplicateInput, str)
		}
		seen[in.PreviousOutPoint] = struct{}{}

		if len(in.Witness) > v.cfg.MaxScriptSize {
			str := fmt.Sprintf("input %d witness size %d exceeds max allowed size %d",
				i, len(in.Witness), v.cfg.MaxScriptSize)
			return ruleError(ErrScriptTooLarge, str)
		}
		if len(in.Lock) > v.cfg.MaxScriptSize {
			str := fmt.Sprintf("input %d lock size %d exceeds max allowed size %d",
				i, len(in.Lock), v.cfg.MaxScriptSize)
			return ruleError(ErrScriptTooLarge, str)
		}
	}

	created := make(map[OutPoint]struct{}, len(tx.Outputs))
	for i, out := range tx.Outputs {
		if err := checkDestination(i, &out.Destination, v.cfg.MaxScriptSize); err != nil {
			return err
		}

		op := NewOutPoint(txid, uint32(i))
		if _, ok := created[op]; ok {
			str := fmt.Sprintf("output %d collides with another output %v", i, op)
			return ruleError(ErrOutputCollision, str)
		}
		created[op] = struct{}{}

		existing, err := v.view.FetchUtxo(op)
		if err != nil {
			return err
		}
		if existing != nil {
			str := fmt.Sprintf("output %d collides with existing unspent output %v", i, op)
			return ruleError(ErrOutputCollision, str)
		}
	}

	return nil
}

// checkDestination 检查输出目标的负载格式
func checkDestination(i int, dest *Destination, maxScriptSize int) error {
	switch dest.Kind {
	case DestPubKey:
		if len(dest.Data) == 0 {
			str := fmt.Sprintf("output %d pays to an empty public key", i)
			return ruleError(ErrInvalidDestination, str)
		}
	case DestScriptHash:
		if len(dest.Data) != ScriptHashSize {
			str := fmt.Sprintf("output %d script hash has %d bytes, want %d",
				i, len(dest.Data), ScriptHashSize)
			return ruleError(ErrInvalidDestination, str)
		}
	case DestCreatePP:
		if len(dest.Data) > maxScriptSize {
			str := fmt.Sprintf("output %d contract code size %d exceeds max allowed size %d",
				i, len(dest.Data), maxScriptSize)
			return ruleError(ErrScriptTooLarge, str)
		}
	case DestCallPP:
		if len(dest.Data) != ContractIDSize {
			str := fmt.Sprintf("output %d contract id has %d bytes, want %d",
				i, len(dest.Data), ContractIDSize)
			return ruleError(ErrInvalidDestination, str)
		}
	default:
		str := fmt.Sprintf("output %d has unknown destination kind %v", i, dest.Kind)
		return ruleError(ErrInvalidDestination, str)
	}
	return nil
}

// resolveInputs 查询每个输入引用的输出，收集全部缺少的输入
func (v *Validator) resolveInputs(tx *Transaction) ([]*TxOutput, []OutPoint, error) {
	spent := make([]*TxOutput, len(tx.Inputs))
	var missing []OutPoint
	for i, in := range tx.Inputs {
		out, err := v.view.FetchUtxo(in.PreviousOutPoint)
		if err != nil {
			return nil, nil, err
		}
		if out == nil {
			missing = append(missing, in.PreviousOutPoint)
			continue
		}
		spent[i] = out
	}
	return spent, missing, nil
}

// sigContextOptions 返回由配置决定的签名上下文选项
func (v *Validator) sigContextOptions() []SigContextOption {
	return []SigContextOption{
		WithMinimalPush(v.cfg.MinimalPush),
		WithMinimalIf(v.cfg.MinimalIf),
		WithSequenceChecker(v.cfg.SequenceChecker),
	}
}

// checkInput 按被花费输出的目标类型验证第 idx 个输入
func (v *Validator) checkInput(m *SigHashMidstate, idx int, prev *TxOutput) error {
	in := m.tx.Inputs[idx]
	dest := &prev.Destination

	switch dest.Kind {
	case DestPubKey:
		if len(in.Lock) != 0 {
			str := fmt.Sprintf("input %d spends a pay-to-pubkey output but carries a lock script", idx)
			return ruleError(ErrUnexpectedLock, str)
		}
		ctx, err := NewTxSigContext(m, idx, v.sigContextOptions()...)
		if err != nil {
			return err
		}
		if !verifyPubKeySpend(ctx, dest.Data, in.Witness) {
			str := fmt.Sprintf("input %d signature does not verify", idx)
			return ruleError(ErrSignatureInvalid, str)
		}

	case DestScriptHash:
		if !bytes.Equal(btcutil.Hash160(in.Lock), dest.Data) {
			str := fmt.Sprintf("input %d lock script hash %x does not match commitment %x",
				idx, btcutil.Hash160(in.Lock), dest.Data)
			return ruleError(ErrScriptHashMismatch, str)
		}
		ctx, err := NewTxSigContext(m, idx, v.sigContextOptions()...)
		if err != nil {
			return err
		}
		if !txscript.IsPushOnlyScript(in.Witness) {
			str := fmt.Sprintf("input %d witness is not push only", idx)
			return ruleError(ErrWitnessNotPushOnly, str)
		}
		if err := verifyScriptHashSpend(ctx, in.Witness, in.Lock); err != nil {
			logrus.Debugf("[checkInput] 输入 %d 脚本执行失败:\t%v", idx, err)
			str := fmt.Sprintf("input %d script failed", idx)
			return wrapRuleError(ErrScriptFailed, str, err)
		}

	case DestCreatePP, DestCallPP:
		if v.pool == nil {
			str := fmt.Sprintf("input %d spends a contract output but no programmable pool is configured", idx)
			return ruleError(ErrPoolRejected, str)
		}
		contract := ContractID(in.PreviousOutPoint.Hash)
		if dest.Kind == DestCallPP {
			copy(contract[:], dest.Data)
		}
		err := v.pool.Call(CallRequest{
			Contract: contract,
			Caller:   in.PreviousOutPoint,
			Input:    in.Witness,
			Gas:      dest.Gas,
			Funding:  prev.Value,
			DryRun:   true,
		})
		if err != nil {
			str := fmt.Sprintf("input %d contract call rejected", idx)
			return wrapRuleError(ErrPoolRejected, str, err)
		}

	default:
		str := fmt.Sprintf("input %d spends output with unknown destination kind %v", idx, dest.Kind)
		return ruleError(ErrInvalidDestination, str)
	}

	return nil
}

// verifyPubKeySpend 验证支付到公钥的见证：见证是单个签名。保留类型的公钥直接通过。
func verifyPubKeySpend(ctx *TxSigContext, pubKey, witness []byte) bool {
	pk, status := ctx.ParsePubKey(pubKey)
	switch status {
	case txscript.KeyReserved:
		return true
	case txscript.KeyInvalid:
		return false
	}

	sig, ok := ctx.ParseSignature(pk, witness)
	if !ok {
		return false
	}
	return ctx.VerifySignature(sig, pk, txscript.NoCodeSeparator)
}

// checkContractOutputs 让可编程池试运行输出中的合约创建和合约调用
func (v *Validator) checkContractOutputs(tx *Transaction, txid *chainhash.Hash) error {
	for i, out := range tx.Outputs {
		dest := &out.Destination
		if !dest.Kind.isPool() {
			continue
		}
		if v.pool == nil {
			str := fmt.Sprintf("output %d targets a contract but no programmable pool is configured", i)
			return ruleError(ErrPoolRejected, str)
		}

		var err error
		if dest.Kind == DestCreatePP {
			_, err = v.pool.Create(createRequest(out, NewOutPoint(txid, uint32(i)), true))
		} else {
			err = v.pool.Call(callRequest(out, NewOutPoint(txid, uint32(i)), true))
		}
		if err != nil {
			str := fmt.Sprintf("output %d contract %v rejected", i, dest.Kind)
			return wrapRuleError(ErrPoolRejected, str, err)
		}
	}
	return nil
}

// createRequest 返回输出 out 对应的合约创建请求
func createRequest(out *TxOutput, creator OutPoint, dryRun bool) CreateRequest {
	return CreateRequest{
		Code:    out.Destination.Data,
		Input:   out.Destination.Input,
		Gas:     out.Destination.Gas,
		Funding: out.Value,
		Creator: creator,
		DryRun:  dryRun,
	}
}

// callRequest 返回输出 out 对应的合约调用请求
func callRequest(out *TxOutput, caller OutPoint, dryRun bool) CallRequest {
	var contract ContractID
	copy(contract[:], out.Destination.Data)
	return CallRequest{
		Contract: contract,
		Caller:   caller,
		Input:    out.Destination.Input,
		Gas:      out.Destination.Gas,
		Funding:  out.Value,
		DryRun:   dryRun,
	}
}

// addUint64 返回 a+b，溢出时 ok 为 false
func addUint64(a, b uint64) (uint64, bool) {
	if b > math.MaxUint64-a {
		return 0, false
	}
	return a + b, true
}

// tokenSums 是每种代币的累计数量
type tokenSums map[chainhash.Hash]uint64

func (s tokenSums) add(id chainhash.Hash, amount uint64) bool {
	sum, ok := addUint64(s[id], amount)
	if !ok {
		return false
	}
	s[id] = sum
	return true
}

// checkBalances 累计输入和输出的原生金额与代币数量，要求每种代币都不出现赤字，
// 并返回原生金额和代币的剩余部分。
func checkBalances(tx *Transaction, spent []*TxOutput) (*ValidationSummary, error) {
	var nativeIn, nativeOut uint64
	tokensIn := make(tokenSums)
	tokensOut := make(tokenSums)

	for i, prev := range spent {
		var ok bool
		if nativeIn, ok = addUint64(nativeIn, prev.Value); !ok {
			str := fmt.Sprintf("input value sum overflows at input %d", i)
			return nil, ruleError(ErrValueOverflow, str)
		}
		if prev.Token == nil {
			continue
		}
		if prev.IsBurn() {
			str := fmt.Sprintf("input %d spends a burn output", i)
			return nil, ruleError(ErrInvalidToken, str)
		}
		if !tokensIn.add(prev.Token.ID, prev.Token.Amount) {
			str := fmt.Sprintf("token %v input sum overflows at input %d", prev.Token.ID, i)
			return nil, ruleError(ErrValueOverflow, str)
		}
	}

	issuedID, canIssue := tx.IssuedTokenID()
	issued := false
	for i, out := range tx.Outputs {
		var ok bool
		if nativeOut, ok = addUint64(nativeOut, out.Value); !ok {
			str := fmt.Sprintf("output value sum overflows at output %d", i)
			return nil, ruleError(ErrValueOverflow, str)
		}

		token := out.Token
		if token == nil {
			continue
		}
		if token.Amount == 0 {
			str := fmt.Sprintf("output %d carries a zero token amount", i)
			return nil, ruleError(ErrInvalidToken, str)
		}

		switch token.Kind {
		case TokenTransfer, TokenBurn:
			// 销毁计为花费，同样需要输入覆盖
			if !tokensOut.add(token.ID, token.Amount) {
				str := fmt.Sprintf("token %v output sum overflows at output %d", token.ID, i)
				return nil, ruleError(ErrValueOverflow, str)
			}

		case TokenIssue, TokenIssueNFT:
			if !canIssue || token.ID != issuedID {
				str := fmt.Sprintf("output %d issues token %v, want %v", i, token.ID, issuedID)
				return nil, ruleError(ErrInvalidToken, str)
			}
			if issued {
				str := fmt.Sprintf("output %d issues token %v more than once", i, token.ID)
				return nil, ruleError(ErrInvalidToken, str)
			}
			if token.Kind == TokenIssueNFT && token.Amount != 1 {
				str := fmt.Sprintf("output %d issues an nft with amount %d", i, token.Amount)
				return nil, ruleError(ErrInvalidToken, str)
			}
			issued = true

		default:
			str := fmt.Sprintf("output %d has unknown token kind %v", i, token.Kind)
			return nil, ruleError(ErrInvalidToken, str)
		}
	}

	if nativeIn < nativeOut {
		str := fmt.Sprintf("total input value %d is less than total output value %d",
			nativeIn, nativeOut)
		return nil, ruleError(ErrInsufficientFunds, str)
	}
	for id, amountOut := range tokensOut {
		if amountIn := tokensIn[id]; amountIn < amountOut {
			str := fmt.Sprintf("token %v input amount %d is less than output amount %d",
				id, amountIn, amountOut)
			return nil, ruleError(ErrInsufficientFunds, str)
		}
	}

	summary := &ValidationSummary{
		Fee:       nativeIn - nativeOut,
		TokenFees: make(map[chainhash.Hash]uint64),
	}
	for id, amountIn := range tokensIn {
		if surplus := amountIn - tokensOut[id]; surplus > 0 {
			summary.TokenFees[id] = surplus
		}
	}

	return summary, nil
}

// verifyScriptHashSpend 先单独执行见证，再以见证留下的数据栈执行锁定脚本。
// 调用方保证见证只含推送。
func verifyScriptHashSpend(ctx txscript.Context, witness, lock []byte) error {
	vm, err := txscript.NewEngine(ctx, witness, nil)
	if err != nil {
		return err
	}
	if _, err := vm.Execute(); err != nil {
		return err
	}

	_, err = txscript.VerifyScript(ctx, lock, vm.GetStack())
	return err
}
