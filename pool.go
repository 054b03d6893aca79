// 可编程池的参考实现：合约代码是一段脚本，调用时以调用输入作为初始栈执行
package bpfsutxo

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/sirupsen/logrus"
)

// ContractID 标识可编程池中的合约，等于创建合约的输出的输出点哈希
type ContractID chainhash.Hash

// String 返回合约标识的十六进制形式
func (id ContractID) String() string {
	return chainhash.Hash(id).String()
}

// CreateRequest 是创建合约的请求
type CreateRequest struct {
	Code    []byte   // 合约代码
	Input   []byte   // 构造输入，必须是仅推送的脚本
	Gas     uint64   // 燃料上限，只记录不计量
	Funding uint64   // 随创建转入的金额
	Creator OutPoint // 创建合约的输出
	DryRun  bool     // 只检查不修改状态
}

// CallRequest 是调用合约的请求
type CallRequest struct {
	Contract ContractID // 被调用的合约
	Caller   OutPoint   // 发起调用的输出点
	Input    []byte     // 调用输入，必须是仅推送的脚本
	Gas      uint64     // 燃料上限，只记录不计量
	Funding  uint64     // 随调用转入的金额
	DryRun   bool       // 只检查不修改状态
}

// Contract 是池中保存的合约
type Contract struct {
	ID      ContractID
	Code    []byte
	Balance uint64
	Calls   uint64
}

// ContractPool 是内存中的可编程池，实现 ProgrammablePool
type ContractPool struct {
	mu        sync.RWMutex
	contracts map[ContractID]*Contract
	ctx       txscript.Context
}

// 确保 ContractPool 实现了 ProgrammablePool
var _ ProgrammablePool = (*ContractPool)(nil)

// NewContractPool 返回空的可编程池。合约代码不能检查签名。
func NewContractPool() *ContractPool {
	return &ContractPool{
		contracts: make(map[ContractID]*Contract),
		ctx:       txscript.NoSigContext{},
	}
}

// Create 检查合约代码并执行构造输入，DryRun 为 false 时保存合约
func (p *ContractPool) Create(req CreateRequest) (ContractID, error) {
	id := ContractID(req.Creator.Hash)

	if err := txscript.CheckScriptParses(req.Code, p.ctx.EnforceMinimalPush()); err != nil {
		return id, fmt.Errorf("contract code does not parse: %w", err)
	}
	if len(req.Code) > p.ctx.MaxScriptSize() {
		return id, fmt.Errorf("contract code size %d exceeds max allowed size %d",
			len(req.Code), p.ctx.MaxScriptSize())
	}
	if err := p.execute(req.Code, req.Input); err != nil {
		return id, fmt.Errorf("contract constructor failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.contracts[id]; ok {
		return id, fmt.Errorf("contract %v already exists", id)
	}
	if req.DryRun {
		return id, nil
	}

	p.contracts[id] = &Contract{
		ID:      id,
		Code:    append([]byte(nil), req.Code...),
		Balance: req.Funding,
	}
	logrus.Debugf("[Create] 创建合约 %v", id)

	return id, nil
}

// Call 以调用输入执行合约代码，DryRun 为 false 时更新合约余额
func (p *ContractPool) Call(req CallRequest) error {
	p.mu.RLock()
	contract, ok := p.contracts[req.Contract]
	var code []byte
	if ok {
		code = contract.Code
	}
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("contract %v not found", req.Contract)
	}

	if err := p.execute(code, req.Input); err != nil {
		return fmt.Errorf("contract %v rejected call from %v: %w", req.Contract, req.Caller, err)
	}
	if req.DryRun {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	contract, ok = p.contracts[req.Contract]
	if !ok {
		return fmt.Errorf("contract %v not found", req.Contract)
	}
	balance, ok := addUint64(contract.Balance, req.Funding)
	if !ok {
		return fmt.Errorf("contract %v balance overflows", req.Contract)
	}
	contract.Balance = balance
	contract.Calls++

	return nil
}

// Get 返回合约的副本，不存在时返回 false
func (p *ContractPool) Get(id ContractID) (Contract, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	contract, ok := p.contracts[id]
	if !ok {
		return Contract{}, false
	}
	return *contract, true
}

// snapshot 保存 ids 对应合约的副本，不存在的合约记为 nil
func (p *ContractPool) snapshot(ids []ContractID) map[ContractID]*Contract {
	p.mu.RLock()
	defer p.mu.RUnlock()

	saved := make(map[ContractID]*Contract, len(ids))
	for _, id := range ids {
		if contract, ok := p.contracts[id]; ok {
			c := *contract
			saved[id] = &c
		} else {
			saved[id] = nil
		}
	}
	return saved
}

// restore 将合约恢复到 snapshot 时的状态
func (p *ContractPool) restore(saved map[ContractID]*Contract) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, contract := range saved {
		if contract == nil {
			delete(p.contracts, id)
			continue
		}
		p.contracts[id] = contract
	}
}

// Len 返回合约数量
func (p *ContractPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.contracts)
}

// execute 先执行仅推送的输入得到初始栈，再执行代码并要求栈顶为真
func (p *ContractPool) execute(code, input []byte) error {
	if !txscript.IsPushOnlyScript(input) {
		return fmt.Errorf("contract input is not push only")
	}

	vm, err := txscript.NewEngine(p.ctx, input, nil)
	if err != nil {
		return err
	}
	if _, err := vm.Execute(); err != nil {
		return err
	}

	_, err = txscript.VerifyScript(p.ctx, code, vm.GetStack())
	return err
}
