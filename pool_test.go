package bpfsutxo

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// mustShortForm 解析简写形式的脚本，出错时终止测试
func mustShortForm(t *testing.T, script string) []byte {
	t.Helper()
	b, err := ParseShortForm(script)
	require.NoError(t, err)
	return b
}

func TestContractPoolCreate(t *testing.T) {
	t.Parallel()

	pool := NewContractPool()
	code := mustShortForm(t, "ADD 5 EQUAL")
	creator := NewOutPoint(&chainhash.Hash{0x01}, 0)

	req := CreateRequest{
		Code:    code,
		Input:   mustShortForm(t, "2 3"),
		Gas:     100,
		Funding: 7,
		Creator: creator,
		DryRun:  true,
	}

	// 试运行不保存合约
	id, err := pool.Create(req)
	require.NoError(t, err)
	require.Equal(t, ContractID(creator.Hash), id)
	require.Zero(t, pool.Len())
	_, ok := pool.Get(id)
	require.False(t, ok)

	req.DryRun = false
	_, err = pool.Create(req)
	require.NoError(t, err)
	require.Equal(t, 1, pool.Len())

	contract, ok := pool.Get(id)
	require.True(t, ok)
	require.Equal(t, code, contract.Code)
	require.Equal(t, uint64(7), contract.Balance)
	require.Zero(t, contract.Calls)

	_, err = pool.Create(req)
	require.Error(t, err)
	require.Equal(t, 1, pool.Len())
}

func TestContractPoolCreateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		code  []byte
		input []byte
	}{
		{name: "constructor fails", code: mustShortForm(t, "ADD 5 EQUAL"), input: mustShortForm(t, "2 2")},
		{name: "input not push only", code: mustShortForm(t, "5 EQUAL"), input: mustShortForm(t, "2 3 ADD")},
		{name: "code does not parse", code: []byte{0x4c}, input: nil},
		{name: "code too large", code: make([]byte, 10001), input: nil},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			pool := NewContractPool()
			_, err := pool.Create(CreateRequest{
				Code:    test.code,
				Input:   test.input,
				Creator: NewOutPoint(&chainhash.Hash{0x02}, 0),
			})
			require.Error(t, err)
			require.Zero(t, pool.Len())
		})
	}
}

func TestContractPoolCall(t *testing.T) {
	t.Parallel()

	pool := NewContractPool()
	creator := NewOutPoint(&chainhash.Hash{0x03}, 1)
	id, err := pool.Create(CreateRequest{
		Code:    mustShortForm(t, "DUP 10 LESSTHAN VERIFY 0 GREATERTHAN"),
		Input:   mustShortForm(t, "1"),
		Creator: creator,
	})
	require.NoError(t, err)

	caller := NewOutPoint(&chainhash.Hash{0x04}, 0)
	call := CallRequest{
		Contract: id,
		Caller:   caller,
		Input:    mustShortForm(t, "3"),
		Funding:  25,
		DryRun:   true,
	}
	require.NoError(t, pool.Call(call))
	contract, _ := pool.Get(id)
	require.Zero(t, contract.Balance)
	require.Zero(t, contract.Calls)

	call.DryRun = false
	require.NoError(t, pool.Call(call))
	require.NoError(t, pool.Call(call))
	contract, _ = pool.Get(id)
	require.Equal(t, uint64(50), contract.Balance)
	require.Equal(t, uint64(2), contract.Calls)

	call.Input = mustShortForm(t, "11")
	require.Error(t, pool.Call(call))

	call.Input = mustShortForm(t, "3 DUP")
	require.Error(t, pool.Call(call))

	call.Input = mustShortForm(t, "3")
	call.Contract = ContractID{0xff}
	require.Error(t, pool.Call(call))

	contract, _ = pool.Get(id)
	require.Equal(t, uint64(2), contract.Calls)
}

func TestContractPoolSnapshotRestore(t *testing.T) {
	t.Parallel()

	pool := NewContractPool()
	code := mustShortForm(t, "1")
	existing, err := pool.Create(CreateRequest{Code: code, Creator: NewOutPoint(&chainhash.Hash{0x05}, 0)})
	require.NoError(t, err)
	fresh := ContractID(NewOutPoint(&chainhash.Hash{0x06}, 0).Hash)

	saved := pool.snapshot([]ContractID{existing, fresh})

	require.NoError(t, pool.Call(CallRequest{Contract: existing, Funding: 7}))
	_, err = pool.Create(CreateRequest{Code: code, Creator: NewOutPoint(&chainhash.Hash{0x06}, 0)})
	require.NoError(t, err)
	require.Equal(t, 2, pool.Len())

	pool.restore(saved)
	require.Equal(t, 1, pool.Len())
	_, ok := pool.Get(fresh)
	require.False(t, ok)
	contract, ok := pool.Get(existing)
	require.True(t, ok)
	require.Zero(t, contract.Balance)
	require.Zero(t, contract.Calls)
}
