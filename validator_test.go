package bpfsutxo

import (
	"fmt"
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/stretchr/testify/require"
)

// mapView 是测试用的内存 UtxoView
type mapView map[OutPoint]*TxOutput

func (v mapView) FetchUtxo(op OutPoint) (*TxOutput, error) {
	return v[op], nil
}

// failingView 的查询总是失败
type failingView struct{}

func (failingView) FetchUtxo(op OutPoint) (*TxOutput, error) {
	return nil, fmt.Errorf("view unavailable")
}

// testKey 返回一个新私钥及其带标签的公钥
func testKey(t *testing.T, scheme KeyScheme) (*btcec.PrivateKey, []byte) {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	tagged, err := TaggedPubKey(scheme, priv.PubKey())
	require.NoError(t, err)
	return priv, tagged
}

// fund 在视图中加入一个输出，返回其输出点
func fund(view mapView, seed byte, out *TxOutput) OutPoint {
	op := NewOutPoint(&chainhash.Hash{seed}, 0)
	view[op] = out
	return op
}

// signAll 为全部支付到公钥的输入签名
func signAll(t *testing.T, tx *Transaction, spent []*TxOutput, scheme KeyScheme, keys ...*btcec.PrivateKey) {
	t.Helper()

	m, err := NewSigHashMidstate(tx, spent)
	require.NoError(t, err)
	for i := range tx.Inputs {
		sig, err := SignInput(m, i, SigHashAll, scheme, keys[i], txscript.NoCodeSeparator)
		require.NoError(t, err)
		tx.Inputs[i].Witness = sig
	}
}

// payTx 返回花费 ops 并向 dest 支付 value 的交易
func payTx(value uint64, dest Destination, ops ...OutPoint) *Transaction {
	tx := NewTransaction(1)
	for _, op := range ops {
		tx.AddInput(&TxInput{PreviousOutPoint: op})
	}
	tx.AddOutput(&TxOutput{Value: value, Destination: dest})
	return tx
}

func TestValidatePubKeySpend(t *testing.T) {
	t.Parallel()

	for _, scheme := range []KeyScheme{SchemeSchnorr, SchemeECDSA} {
		scheme := scheme
		t.Run(scheme.String(), func(t *testing.T) {
			t.Parallel()

			priv, pub := testKey(t, scheme)
			_, to := testKey(t, scheme)
			view := make(mapView)
			prev := &TxOutput{Value: 1000, Destination: PayToPubKey(pub)}
			op := fund(view, 1, prev)

			tx := payTx(900, PayToPubKey(to), op)
			signAll(t, tx, []*TxOutput{prev}, scheme, priv)

			v := NewValidator(view, nil, nil)
			summary, err := v.ValidateTransaction(tx)
			require.NoError(t, err)
			require.Equal(t, uint64(100), summary.Fee)
			require.Equal(t, tx.TxHash(), summary.TxID)
			require.Equal(t, []OutPoint{tx.OutPoint(0)}, summary.NewOutputs)
			require.False(t, summary.HasMissingInputs())

			// 修改输出之后签名失效
			tx.Outputs[0].Value = 950
			_, err = v.ValidateTransaction(tx)
			require.True(t, IsRuleError(err, ErrSignatureInvalid), "%v", err)

			// 支付到公钥的花费不能带锁定脚本
			tx.Outputs[0].Value = 900
			tx.Inputs[0].Lock = []byte{txscript.OP_1}
			_, err = v.ValidateTransaction(tx)
			require.True(t, IsRuleError(err, ErrUnexpectedLock), "%v", err)
		})
	}
}

func TestValidateWrongKey(t *testing.T) {
	t.Parallel()

	_, pub := testKey(t, SchemeSchnorr)
	other, _ := testKey(t, SchemeSchnorr)
	view := make(mapView)
	prev := &TxOutput{Value: 10, Destination: PayToPubKey(pub)}
	op := fund(view, 1, prev)

	tx := payTx(10, PayToPubKey(pub), op)
	signAll(t, tx, []*TxOutput{prev}, SchemeSchnorr, other)

	_, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
	require.True(t, IsRuleError(err, ErrSignatureInvalid), "%v", err)
}

func TestValidateReservedKey(t *testing.T) {
	t.Parallel()

	// 保留方案的公钥总是通过，见证内容不做检查
	reserved := append([]byte{0x05}, make([]byte, 40)...)
	view := make(mapView)
	op := fund(view, 1, &TxOutput{Value: 10, Destination: PayToPubKey(reserved)})

	tx := payTx(10, PayToPubKey(reserved), op)
	tx.Inputs[0].Witness = []byte{0xde, 0xad}

	summary, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
	require.NoError(t, err)
	require.Zero(t, summary.Fee)

	// 未知的标签是硬失败
	invalid := append([]byte{0x80}, make([]byte, 32)...)
	op2 := fund(view, 2, &TxOutput{Value: 10, Destination: PayToPubKey(invalid)})
	tx2 := payTx(10, PayToPubKey(reserved), op2)
	_, err = NewValidator(view, nil, nil).ValidateTransaction(tx2)
	require.True(t, IsRuleError(err, ErrSignatureInvalid), "%v", err)
}

func TestValidateScriptHashSpend(t *testing.T) {
	t.Parallel()

	lock, err := txscript.NewScriptBuilder().AddOp(txscript.OP_ADD).AddInt64(5).
		AddOp(txscript.OP_EQUAL).Script()
	require.NoError(t, err)
	witness, err := txscript.NewScriptBuilder().AddInt64(2).AddInt64(3).Script()
	require.NoError(t, err)

	view := make(mapView)
	op := fund(view, 1, &TxOutput{Value: 50, Destination: PayToScriptHash(lock)})
	v := NewValidator(view, nil, nil)

	tx := payTx(40, PayToScriptHash(lock), op)
	tx.Inputs[0].Lock = lock
	tx.Inputs[0].Witness = witness
	summary, err := v.ValidateTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, uint64(10), summary.Fee)

	// 见证不满足锁定脚本
	bad, err := txscript.NewScriptBuilder().AddInt64(2).AddInt64(2).Script()
	require.NoError(t, err)
	tx.Inputs[0].Witness = bad
	_, err = v.ValidateTransaction(tx)
	require.True(t, IsRuleError(err, ErrScriptFailed), "%v", err)
	require.True(t, txscript.IsErrorCode(err, txscript.ErrVerifyFail), "%v", err)

	// 锁定脚本与承诺的哈希不一致
	tx.Inputs[0].Witness = witness
	tx.Inputs[0].Lock = append([]byte{txscript.OP_NOP}, lock...)
	_, err = v.ValidateTransaction(tx)
	require.True(t, IsRuleError(err, ErrScriptHashMismatch), "%v", err)
}

func TestValidateScriptHashCheckSig(t *testing.T) {
	t.Parallel()

	priv, pub := testKey(t, SchemeECDSA)
	lock, err := txscript.PayToPubKeyScript(pub)
	require.NoError(t, err)

	view := make(mapView)
	prev := &TxOutput{Value: 70, Destination: PayToScriptHash(lock)}
	op := fund(view, 1, prev)

	tx := payTx(70, PayToPubKey(pub), op)
	tx.Inputs[0].Lock = lock

	m, err := NewSigHashMidstate(tx, []*TxOutput{prev})
	require.NoError(t, err)
	sig, err := SignInput(m, 0, SigHashAll|SigHashAnyoneCanPay, SchemeECDSA, priv, txscript.NoCodeSeparator)
	require.NoError(t, err)
	tx.Inputs[0].Witness, err = txscript.NewScriptBuilder().AddData(sig).Script()
	require.NoError(t, err)

	summary, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
	require.NoError(t, err)
	require.Zero(t, summary.Fee)
}

func TestValidateScriptHashWitnessCannotSwallowLock(t *testing.T) {
	t.Parallel()

	_, pub := testKey(t, SchemeECDSA)
	lock, err := txscript.PayToPubKeyScript(pub)
	require.NoError(t, err)

	view := make(mapView)
	op := fund(view, 1, &TxOutput{Value: 70, Destination: PayToScriptHash(lock)})
	v := NewValidator(view, nil, nil)

	tests := []struct {
		name    string
		witness []byte
		code    ErrorCode
	}{
		// 单字节 OP_DATA_N 会把紧随其后的锁定脚本当作推送数据
		{name: "dangling data push", witness: []byte{byte(len(lock))}, code: ErrWitnessNotPushOnly},
		{name: "opcode in witness", witness: []byte{txscript.OP_1, txscript.OP_DUP}, code: ErrWitnessNotPushOnly},
		{name: "no signature", witness: nil, code: ErrScriptFailed},
		{name: "garbage signature", witness: []byte{txscript.OP_DATA_2, 0x01, 0x02}, code: ErrScriptFailed},
	}

	for _, test := range tests {
		tx := payTx(70, PayToPubKey(pub), op)
		tx.Inputs[0].Lock = lock
		tx.Inputs[0].Witness = test.witness

		summary, err := v.ValidateTransaction(tx)
		require.Nil(t, summary, test.name)
		require.True(t, IsRuleError(err, test.code), "%s: %v", test.name, err)
	}
}

func TestValidateMissingInputs(t *testing.T) {
	t.Parallel()

	_, pub := testKey(t, SchemeSchnorr)
	view := make(mapView)
	known := fund(view, 1, &TxOutput{Value: 10, Destination: PayToPubKey(pub)})
	missing1 := NewOutPoint(&chainhash.Hash{0xaa}, 0)
	missing2 := NewOutPoint(&chainhash.Hash{0xbb}, 1)

	tx := payTx(10, PayToPubKey(pub), missing1, known, missing2)
	summary, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
	require.NoError(t, err)
	require.True(t, summary.HasMissingInputs())
	require.Equal(t, []OutPoint{missing1, missing2}, summary.MissingInputs)
	require.Empty(t, summary.NewOutputs)
	require.Equal(t, tx.TxHash(), summary.TxID)
}

func TestValidateStructure(t *testing.T) {
	t.Parallel()

	_, pub := testKey(t, SchemeSchnorr)
	op := NewOutPoint(&chainhash.Hash{1}, 0)

	tests := []struct {
		name string
		tx   func() *Transaction
		code ErrorCode
	}{
		{"no inputs", func() *Transaction {
			tx := NewTransaction(1)
			tx.AddOutput(&TxOutput{Value: 1, Destination: PayToPubKey(pub)})
			return tx
		}, ErrNoInputs},
		{"no outputs", func() *Transaction {
			tx := NewTransaction(1)
			tx.AddInput(&TxInput{PreviousOutPoint: op})
			return tx
		}, ErrNoOutputs},
		{"too many inputs", func() *Transaction {
			tx := payTx(1, PayToPubKey(pub))
			for i := 0; i < 3; i++ {
				tx.AddInput(&TxInput{PreviousOutPoint: NewOutPoint(&chainhash.Hash{}, uint32(i))})
			}
			return tx
		}, ErrTooManyInputs},
		{"too many outputs", func() *Transaction {
			tx := payTx(1, PayToPubKey(pub), op)
			tx.AddOutput(&TxOutput{Value: 1, Destination: PayToPubKey(pub)})
			tx.AddOutput(&TxOutput{Value: 1, Destination: PayToPubKey(pub)})
			return tx
		}, ErrTooManyOutputs},
		{"duplicate input", func() *Transaction {
			return payTx(1, PayToPubKey(pub), op, op)
		}, ErrDuplicateInput},
		{"witness too large", func() *Transaction {
			tx := payTx(1, PayToPubKey(pub), op)
			tx.Inputs[0].Witness = make([]byte, txscript.MaxScriptSize+1)
			return tx
		}, ErrScriptTooLarge},
		{"bad script hash", func() *Transaction {
			return payTx(1, Destination{Kind: DestScriptHash, Data: []byte{1, 2}}, op)
		}, ErrInvalidDestination},
		{"empty pubkey", func() *Transaction {
			return payTx(1, PayToPubKey(nil), op)
		}, ErrInvalidDestination},
		{"bad contract id", func() *Transaction {
			return payTx(1, Destination{Kind: DestCallPP, Data: []byte{1}}, op)
		}, ErrInvalidDestination},
		{"unknown destination", func() *Transaction {
			return payTx(1, Destination{Kind: 9, Data: []byte{1}}, op)
		}, ErrInvalidDestination},
	}

	cfg := DefaultValidatorConfig()
	cfg.MaxInputs = 2
	cfg.MaxOutputs = 2
	v := NewValidator(make(mapView), nil, cfg)
	for _, test := range tests {
		_, err := v.ValidateTransaction(test.tx())
		require.True(t, IsRuleError(err, test.code), "%s: %v", test.name, err)
	}
}

func TestValidateOutputCollision(t *testing.T) {
	t.Parallel()

	_, pub := testKey(t, SchemeSchnorr)
	view := make(mapView)
	op := fund(view, 1, &TxOutput{Value: 10, Destination: PayToPubKey(pub)})
	tx := payTx(10, PayToPubKey(pub), op)

	// 交易的输出已经在存储中
	view[tx.OutPoint(0)] = tx.Outputs[0]
	_, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
	require.True(t, IsRuleError(err, ErrOutputCollision), "%v", err)
}

func TestValidateViewError(t *testing.T) {
	t.Parallel()

	_, pub := testKey(t, SchemeSchnorr)
	tx := payTx(10, PayToPubKey(pub), NewOutPoint(&chainhash.Hash{1}, 0))
	_, err := NewValidator(failingView{}, nil, nil).ValidateTransaction(tx)
	require.Error(t, err)
	var rerr TxRuleError
	require.False(t, errors.As(err, &rerr))
}

func TestValidateBalances(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     []uint64
		out    []uint64
		fee    uint64
		reject ErrorCode
	}{
		{"deficit", []uint64{10, 5}, []uint64{16}, 0, ErrInsufficientFunds},
		{"equal", []uint64{10, 5}, []uint64{7, 8}, 0, -1},
		{"surplus", []uint64{10, 5}, []uint64{3}, 12, -1},
		{"output overflow", []uint64{10}, []uint64{math.MaxUint64, 1}, 0, ErrValueOverflow},
		{"input overflow", []uint64{math.MaxUint64, 1}, []uint64{1}, 0, ErrValueOverflow},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			// 保留方案的公钥不需要签名
			reserved := append([]byte{0x02}, make([]byte, 33)...)
			view := make(mapView)
			tx := NewTransaction(1)
			for i, value := range test.in {
				op := fund(view, byte(i+1), &TxOutput{Value: value, Destination: PayToPubKey(reserved)})
				tx.AddInput(&TxInput{PreviousOutPoint: op})
			}
			for _, value := range test.out {
				tx.AddOutput(&TxOutput{Value: value, Destination: PayToPubKey(reserved)})
			}

			summary, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
			if test.reject >= 0 {
				require.True(t, IsRuleError(err, test.reject), "%v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.fee, summary.Fee)
			require.Len(t, summary.NewOutputs, len(test.out))
		})
	}
}

func TestValidateTokens(t *testing.T) {
	t.Parallel()

	reserved := append([]byte{0x02}, make([]byte, 33)...)
	dest := PayToPubKey(reserved)
	tokenA := chainhash.Hash{0x0a}

	newTx := func(view mapView, inputs ...*TxOutput) *Transaction {
		tx := NewTransaction(1)
		for i, prev := range inputs {
			tx.AddInput(&TxInput{PreviousOutPoint: fund(view, byte(i+1), prev)})
		}
		return tx
	}

	t.Run("transfer with fee", func(t *testing.T) {
		view := make(mapView)
		tx := newTx(view, &TxOutput{Value: 1, Destination: dest,
			Token: &TokenData{Kind: TokenTransfer, ID: tokenA, Amount: 100}})
		tx.AddOutput(&TxOutput{Value: 1, Destination: dest,
			Token: &TokenData{Kind: TokenTransfer, ID: tokenA, Amount: 60}})

		summary, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.NoError(t, err)
		require.Equal(t, map[chainhash.Hash]uint64{tokenA: 40}, summary.TokenFees)
	})

	t.Run("transfer deficit", func(t *testing.T) {
		view := make(mapView)
		tx := newTx(view, &TxOutput{Value: 1, Destination: dest,
			Token: &TokenData{Kind: TokenTransfer, ID: tokenA, Amount: 10}})
		tx.AddOutput(&TxOutput{Value: 1, Destination: dest,
			Token: &TokenData{Kind: TokenTransfer, ID: tokenA, Amount: 11}})

		_, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.True(t, IsRuleError(err, ErrInsufficientFunds), "%v", err)
	})

	t.Run("burn counts as spend", func(t *testing.T) {
		view := make(mapView)
		tx := newTx(view, &TxOutput{Value: 5, Destination: dest,
			Token: &TokenData{Kind: TokenTransfer, ID: tokenA, Amount: 10}})
		tx.AddOutput(&TxOutput{Value: 5, Destination: dest,
			Token: &TokenData{Kind: TokenTransfer, ID: tokenA, Amount: 6}})
		tx.AddOutput(&TxOutput{Destination: dest,
			Token: &TokenData{Kind: TokenBurn, ID: tokenA, Amount: 4}})

		summary, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.NoError(t, err)
		require.Empty(t, summary.TokenFees)
		// 销毁输出不产生可花费的输出
		require.Equal(t, []OutPoint{tx.OutPoint(0)}, summary.NewOutputs)

		tx.Outputs[1].Token.Amount = 5
		_, err = NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.True(t, IsRuleError(err, ErrInsufficientFunds), "%v", err)
	})

	t.Run("issue", func(t *testing.T) {
		view := make(mapView)
		tx := newTx(view, &TxOutput{Value: 5, Destination: dest})
		id, ok := tx.IssuedTokenID()
		require.True(t, ok)
		tx.AddOutput(&TxOutput{Value: 5, Destination: dest,
			Token: &TokenData{Kind: TokenIssue, ID: id, Amount: 1000000, Ticker: []byte("BPF")}})

		summary, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.NoError(t, err)
		require.Zero(t, summary.Fee)

		// 只能发行由第一个输入决定的代币
		tx.Outputs[0].Token.ID = tokenA
		_, err = NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.True(t, IsRuleError(err, ErrInvalidToken), "%v", err)

		// 每笔交易只能发行一次
		tx.Outputs[0].Token.ID = id
		tx.AddOutput(&TxOutput{Destination: dest, Token: &TokenData{Kind: TokenIssue, ID: id, Amount: 1}})
		_, err = NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.True(t, IsRuleError(err, ErrInvalidToken), "%v", err)
	})

	t.Run("nft amount", func(t *testing.T) {
		view := make(mapView)
		tx := newTx(view, &TxOutput{Value: 5, Destination: dest})
		id, _ := tx.IssuedTokenID()
		tx.AddOutput(&TxOutput{Value: 5, Destination: dest,
			Token: &TokenData{Kind: TokenIssueNFT, ID: id, Amount: 2}})

		_, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.True(t, IsRuleError(err, ErrInvalidToken), "%v", err)

		tx.Outputs[0].Token.Amount = 1
		_, err = NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.NoError(t, err)
	})

	t.Run("zero amount", func(t *testing.T) {
		view := make(mapView)
		tx := newTx(view, &TxOutput{Value: 5, Destination: dest})
		tx.AddOutput(&TxOutput{Value: 5, Destination: dest,
			Token: &TokenData{Kind: TokenTransfer, ID: tokenA}})

		_, err := NewValidator(view, nil, nil).ValidateTransaction(tx)
		require.True(t, IsRuleError(err, ErrInvalidToken), "%v", err)
	})
}

func TestValidateContracts(t *testing.T) {
	t.Parallel()

	reserved := append([]byte{0x02}, make([]byte, 33)...)
	view := make(mapView)
	op := fund(view, 1, &TxOutput{Value: 100, Destination: PayToPubKey(reserved)})

	// 合约要求输入为 7
	code, err := txscript.NewScriptBuilder().AddInt64(7).AddOp(txscript.OP_EQUAL).Script()
	require.NoError(t, err)
	input, err := txscript.NewScriptBuilder().AddInt64(7).Script()
	require.NoError(t, err)

	tx := payTx(100, CreateContract(code, 1000, input), op)

	// 没有可编程池时拒绝
	_, err = NewValidator(view, nil, nil).ValidateTransaction(tx)
	require.True(t, IsRuleError(err, ErrPoolRejected), "%v", err)

	pool := NewContractPool()
	v := NewValidator(view, pool, nil)
	_, err = v.ValidateTransaction(tx)
	require.NoError(t, err)
	// 验证只试运行，不创建合约
	require.Zero(t, pool.Len())

	tx.Outputs[0].Destination.Input, err = txscript.NewScriptBuilder().AddInt64(8).Script()
	require.NoError(t, err)
	_, err = v.ValidateTransaction(tx)
	require.True(t, IsRuleError(err, ErrPoolRejected), "%v", err)
}

func TestValidateContractSpend(t *testing.T) {
	t.Parallel()

	code, err := txscript.NewScriptBuilder().AddInt64(7).AddOp(txscript.OP_EQUAL).Script()
	require.NoError(t, err)
	input, err := txscript.NewScriptBuilder().AddInt64(7).Script()
	require.NoError(t, err)

	pool := NewContractPool()
	creator := NewOutPoint(&chainhash.Hash{0x33}, 0)
	id, err := pool.Create(CreateRequest{Code: code, Input: input, Creator: creator})
	require.NoError(t, err)

	view := make(mapView)
	view[creator] = &TxOutput{Value: 30, Destination: CreateContract(code, 10, input)}
	reserved := append([]byte{0x02}, make([]byte, 33)...)
	tx := payTx(30, PayToPubKey(reserved), creator)
	tx.Inputs[0].Witness = input

	v := NewValidator(view, pool, nil)
	_, err = v.ValidateTransaction(tx)
	require.NoError(t, err)

	tx.Inputs[0].Witness = []byte{txscript.OP_0}
	_, err = v.ValidateTransaction(tx)
	require.True(t, IsRuleError(err, ErrPoolRejected), "%v", err)

	contract, ok := pool.Get(id)
	require.True(t, ok)
	require.Zero(t, contract.Calls)
}

func TestValidateBatch(t *testing.T) {
	t.Parallel()

	priv, pub := testKey(t, SchemeSchnorr)
	view := make(mapView)
	var txs []*Transaction
	for i := 0; i < 8; i++ {
		prev := &TxOutput{Value: uint64(100 + i), Destination: PayToPubKey(pub)}
		op := fund(view, byte(i+1), prev)
		tx := payTx(100, PayToPubKey(pub), op)
		signAll(t, tx, []*TxOutput{prev}, SchemeSchnorr, priv)
		txs = append(txs, tx)
	}
	// 第 3 笔签名无效
	txs[3].Inputs[0].Witness[0] ^= 0xff

	cfg := DefaultValidatorConfig()
	cfg.Workers = 3
	results := NewValidator(view, nil, cfg).ValidateBatch(txs)
	require.Len(t, results, len(txs))
	for i, result := range results {
		if i == 3 {
			require.True(t, IsRuleError(result.Err, ErrSignatureInvalid), "%v", result.Err)
			continue
		}
		require.NoError(t, result.Err)
		require.Equal(t, uint64(i), result.Summary.Fee)
	}
}

func TestValidateScriptWrapper(t *testing.T) {
	t.Parallel()

	script, err := txscript.NewScriptBuilder().AddInt64(1).AddInt64(2).AddOp(txscript.OP_ADD).
		AddInt64(3).AddOp(txscript.OP_EQUALVERIFY).Script()
	require.NoError(t, err)

	ok, err := ValidateScript(txscript.NoSigContext{}, script, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ValidateScript(txscript.NoSigContext{}, []byte{txscript.OP_RETURN}, nil)
	require.NoError(t, err)
	require.False(t, ok)
}
