package bpfsutxo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

// utxoDir 是数据库目录下未花费输出存储的子目录
const utxoDir = "utxo"

// Ledger 提供了与 BPFSUTXO 交互所需的各种函数
type Ledger struct {
	ctx       context.Context // 全局上下文
	app       *fx.App         // 依赖注入容器
	opt       *Options        // 选项配置
	store     *UtxoStore      // 未花费输出存储
	contracts *ContractPool   // 可编程池
	txlog     *TxLog          // 已接受交易的日志
	validator *Validator      // 交易验证器
	pool      *MemoryPool     // 内存池
}

// Open 返回一个新的账本对象
func Open(opt *Options) (*Ledger, error) {
	// 1. 检查并设置选项
	if err := opt.CheckAndSetOptions(); err != nil {
		return nil, err
	}
	// 2. 本地文件夹与日志
	logs := ""
	if !opt.InMemory {
		if err := initDirectories(opt); err != nil {
			return nil, err
		}
		logs = opt.LogsPath()
	}
	if err := SetLog(opt.InstanceId, logs, opt.LogLevel); err != nil {
		return nil, err
	}

	ledger := &Ledger{
		ctx: context.Background(),
		opt: opt,
	}

	// fx 配置项
	opts := []fx.Option{
		ledger.globalInit(),
		fx.Provide(
			NewUtxoStore,    // 未花费输出存储
			NewTxLogService, // 交易日志
			NewContractPool, // 可编程池
			NewValidatorService,
			NewMemoryPool, // 新的内存池
		),
		fx.Populate(
			&ledger.store,
			&ledger.contracts,
			&ledger.txlog,
			&ledger.validator,
			&ledger.pool,
		),
	}
	ledger.app = fx.New(opts...)

	if err := ledger.app.Start(ledger.ctx); err != nil {
		logrus.Errorf("[Open] 启动失败:\t%v", err)
		return nil, err
	}

	opt.IsOpen = true // 账本实例已打开
	logrus.Infof("账本 '%s' 已打开", opt.InstanceId)

	return ledger, nil
}

// globalInit 全局初始化
func (l *Ledger) globalInit() fx.Option {
	return fx.Provide(
		func() context.Context {
			return l.ctx
		},
		func() *Options {
			return l.opt
		},
	)
}

// initDirectories 确保所有预定义的文件夹都存在
func initDirectories(opt *Options) error {
	directories := []string{
		opt.DBPath(),      // 数据库目录
		opt.LogsPath(),    // 日志目录
		opt.VectorsPath(), // 测试向量目录
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

type NewUtxoStoreInput struct {
	fx.In

	Opt *Options // 选项配置
}

type NewUtxoStoreOutput struct {
	fx.Out

	Store *UtxoStore // 未花费输出存储
}

// NewUtxoStore 打开未花费输出存储，并在停止时关闭
func NewUtxoStore(lc fx.Lifecycle, input NewUtxoStoreInput) (out NewUtxoStoreOutput, err error) {
	store, err := OpenUtxoStore(filepath.Join(input.Opt.DBPath(), utxoDir), input.Opt.InMemory)
	if err != nil {
		logrus.Errorf("[NewUtxoStore] 失败:\t%v", err)
		return out, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return store.Close()
		},
	})

	out.Store = store
	return out, nil
}

type NewTxLogInput struct {
	fx.In

	Opt *Options // 选项配置
}

type NewTxLogOutput struct {
	fx.Out

	TxLog *TxLog // 已接受交易的日志
}

// NewTxLogService 打开交易日志，并在停止时关闭
func NewTxLogService(lc fx.Lifecycle, input NewTxLogInput) (out NewTxLogOutput, err error) {
	path := ":memory:"
	if !input.Opt.InMemory {
		path = filepath.Join(input.Opt.DBPath(), DbFile)
	}
	txlog, err := OpenTxLog(path)
	if err != nil {
		logrus.Errorf("[NewTxLogService] 失败:\t%v", err)
		return out, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return txlog.Close()
		},
	})

	out.TxLog = txlog
	return out, nil
}

type NewValidatorInput struct {
	fx.In

	Opt       *Options      // 选项配置
	Store     *UtxoStore    // 未花费输出存储
	Contracts *ContractPool // 可编程池
}

type NewValidatorOutput struct {
	fx.Out

	Validator *Validator // 交易验证器
}

// NewValidatorService 以存储和可编程池创建验证器
func NewValidatorService(input NewValidatorInput) NewValidatorOutput {
	return NewValidatorOutput{
		Validator: NewValidator(input.Store, input.Contracts, input.Opt.ValidatorConfig()),
	}
}

// Close 停止全部服务并关闭数据库
func (l *Ledger) Close() error {
	ctx, cancel := context.WithTimeout(l.ctx, 15*time.Second)
	defer cancel()

	if err := l.app.Stop(ctx); err != nil {
		logrus.Errorf("[Close] 失败:\t%v", err)
		return err
	}
	l.opt.IsOpen = false
	return nil
}

// Seed 不经验证地写入交易的输出，然后重新处理排队的交易
func (l *Ledger) Seed(tx *Transaction) ([]OutPoint, error) {
	created, err := l.store.AddOutputs(tx)
	if err != nil {
		logrus.Errorf("[Seed] 失败:\t%v", err)
		return nil, err
	}
	l.pool.Reprocess()
	return created, nil
}

// Submit 检查标准性策略并把交易放入内存池
func (l *Ledger) Submit(tx *Transaction) (*ValidationSummary, error) {
	if l.opt.RequireStandard {
		if err := CheckTransactionStandard(tx); err != nil {
			logrus.Debugf("[Submit] 交易 %v 不是标准交易:\t%v", tx.TxHash(), err)
			return nil, err
		}
	}
	return l.pool.Submit(tx)
}

// Commit 将挂起的交易写入存储：重新验证，花费输入并保存输出，
// 执行合约，记录日志，最后重新处理排队的交易。
func (l *Ledger) Commit(txid chainhash.Hash) (*ValidationSummary, error) {
	summary, _, err := l.commit(txid)
	return summary, err
}

// commit 提交交易，fatal 为 true 表示存储出现了与交易本身无关的错误。
// 此时存储、合约和日志都保持提交前的状态，交易被移出内存池。
func (l *Ledger) commit(txid chainhash.Hash) (summary *ValidationSummary, fatal bool, err error) {
	tx, _, ok := l.pool.Get(txid)
	if !ok {
		return nil, false, fmt.Errorf("transaction %v is not pending", txid)
	}

	// 挂起之后存储可能已经改变
	summary, err = l.validator.ValidateTransaction(tx)
	if err != nil {
		l.pool.RemoveFromAll(txid)
		return nil, false, err
	}
	if summary.HasMissingInputs() {
		l.pool.Move(txid, QueueQueued)
		return nil, false, fmt.Errorf("transaction %v is missing %d inputs", txid, len(summary.MissingInputs))
	}

	// 合约和日志在存储事务提交之前写入，任何一步失败都整体回滚
	saved := l.contracts.snapshot(touchedContracts(tx, &txid))
	recorded := false
	_, err = l.store.ApplyWith(tx, func() error {
		if err := l.applyContracts(tx, &txid); err != nil {
			return err
		}
		if err := l.txlog.Record(tx, summary, time.Now()); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		logrus.Errorf("[Commit] 失败:\t%v", err)
		l.contracts.restore(saved)
		if recorded {
			if derr := l.txlog.Delete(txid); derr != nil {
				logrus.Errorf("[Commit] 失败:\t%v", derr)
			}
		}
		l.pool.RemoveFromAll(txid)
		return nil, true, err
	}

	l.pool.RemoveFromAll(txid)
	if accepted := l.pool.Reprocess(); len(accepted) > 0 {
		logrus.Debugf("[Commit] %d 笔排队交易进入挂起队列", len(accepted))
	}
	logrus.Infof("提交交易 %v，手续费 %d", txid, summary.Fee)

	return summary, false, nil
}

// CommitPending 按顺序提交全部挂起的交易，包括提交过程中进入挂起队列的交易。
// 单笔交易验证失败时跳过该交易，存储出错时停止。
func (l *Ledger) CommitPending() ([]*ValidationSummary, error) {
	var committed []*ValidationSummary
	for {
		txs := l.pool.GetTransactions(0)
		if len(txs) == 0 {
			return committed, nil
		}
		for _, tx := range txs {
			txid := tx.TxHash()
			summary, fatal, err := l.commit(txid)
			if fatal {
				return committed, err
			}
			if err != nil {
				logrus.Debugf("[CommitPending] 跳过交易 %v:\t%v", txid, err)
				continue
			}
			committed = append(committed, summary)
		}
	}
}

// applyContracts 执行交易输出中的合约创建和调用
func (l *Ledger) applyContracts(tx *Transaction, txid *chainhash.Hash) error {
	for i, out := range tx.Outputs {
		op := NewOutPoint(txid, uint32(i))
		switch out.Destination.Kind {
		case DestCreatePP:
			if _, err := l.contracts.Create(createRequest(out, op, false)); err != nil {
				return err
			}
		case DestCallPP:
			if err := l.contracts.Call(callRequest(out, op, false)); err != nil {
				return err
			}
		}
	}
	return nil
}

// touchedContracts 返回交易输出创建或调用的合约
func touchedContracts(tx *Transaction, txid *chainhash.Hash) []ContractID {
	var ids []ContractID
	for i, out := range tx.Outputs {
		switch out.Destination.Kind {
		case DestCreatePP:
			ids = append(ids, ContractID(NewOutPoint(txid, uint32(i)).Hash))
		case DestCallPP:
			ids = append(ids, callRequest(out, OutPoint{}, true).Contract)
		}
	}
	return ids
}

// Options 返回选项配置
func (l *Ledger) Options() *Options { return l.opt }

// Store 返回未花费输出存储
func (l *Ledger) Store() *UtxoStore { return l.store }

// Pool 返回内存池
func (l *Ledger) Pool() *MemoryPool { return l.pool }

// Contracts 返回可编程池
func (l *Ledger) Contracts() *ContractPool { return l.contracts }

// TxLog 返回交易日志
func (l *Ledger) TxLog() *TxLog { return l.txlog }

// Validator 返回交易验证器
func (l *Ledger) Validator() *Validator { return l.validator }
