package bpfsutxo

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/stretchr/testify/require"
)

// newSigContext 返回 sighashFixture 第 idx 个输入的签名上下文
func newSigContext(t *testing.T, idx int, opts ...SigContextOption) (*TxSigContext, *SigHashMidstate) {
	t.Helper()

	tx, spent := sighashFixture()
	m, err := NewSigHashMidstate(tx, spent)
	require.NoError(t, err)
	ctx, err := NewTxSigContext(m, idx, opts...)
	require.NoError(t, err)
	return ctx, m
}

func TestNewTxSigContext(t *testing.T) {
	t.Parallel()

	tx, spent := sighashFixture()
	m, err := NewSigHashMidstate(tx, spent)
	require.NoError(t, err)

	_, err = NewTxSigContext(m, 2)
	require.True(t, IsRuleError(err, ErrInputIndex), "%v", err)

	ctx, err := NewTxSigContext(m, 0)
	require.NoError(t, err)
	require.True(t, ctx.EnforceMinimalPush())
	require.True(t, ctx.EnforceMinimalIf())

	ctx, err = NewTxSigContext(m, 1, WithMinimalPush(false), WithMinimalIf(false))
	require.NoError(t, err)
	require.False(t, ctx.EnforceMinimalPush())
	require.False(t, ctx.EnforceMinimalIf())
}

func TestParsePubKey(t *testing.T) {
	t.Parallel()

	ctx, _ := newSigContext(t, 0)
	_, schnorrKey := testKey(t, SchemeSchnorr)
	_, ecdsaKey := testKey(t, SchemeECDSA)

	tests := []struct {
		name string
		data []byte
		want txscript.KeyStatus
	}{
		{name: "schnorr", data: schnorrKey, want: txscript.KeyValid},
		{name: "ecdsa", data: ecdsaKey, want: txscript.KeyValid},
		{name: "empty", data: nil, want: txscript.KeyInvalid},
		{name: "schnorr short", data: schnorrKey[:32], want: txscript.KeyInvalid},
		{name: "schnorr with ecdsa length", data: append([]byte{0x00}, ecdsaKey[1:]...), want: txscript.KeyInvalid},
		{name: "ecdsa with schnorr length", data: append([]byte{0x01}, schnorrKey[1:]...), want: txscript.KeyInvalid},
		{name: "schnorr off curve", data: append([]byte{0x00}, bytes.Repeat([]byte{0xff}, 32)...), want: txscript.KeyInvalid},
		{name: "reserved low", data: []byte{0x02}, want: txscript.KeyReserved},
		{name: "reserved high", data: append([]byte{0x7f}, schnorrKey[1:]...), want: txscript.KeyReserved},
		{name: "invalid tag", data: append([]byte{0x80}, schnorrKey[1:]...), want: txscript.KeyInvalid},
		{name: "invalid tag max", data: []byte{0xff}, want: txscript.KeyInvalid},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			pk, status := ctx.ParsePubKey(test.data)
			require.Equal(t, test.want, status)
			if status != txscript.KeyValid {
				require.Nil(t, pk)
			}
		})
	}
}

func TestParseSignature(t *testing.T) {
	t.Parallel()

	ctx, m := newSigContext(t, 0)
	priv, tagged := testKey(t, SchemeSchnorr)
	pk, status := ctx.ParsePubKey(tagged)
	require.Equal(t, txscript.KeyValid, status)

	sig, err := SignInput(m, 0, SigHashAll, SchemeSchnorr, priv, txscript.NoCodeSeparator)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	_, ok := ctx.ParseSignature(pk, sig)
	require.True(t, ok)

	badType := append(append([]byte{}, sig[:64]...), 0x04)
	_, ok = ctx.ParseSignature(pk, badType)
	require.False(t, ok)

	_, ok = ctx.ParseSignature(pk, sig[:64])
	require.False(t, ok)

	_, ok = ctx.ParseSignature(pk, []byte{0x01})
	require.False(t, ok)

	_, ok = ctx.ParseSignature(nil, sig)
	require.False(t, ok)
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	hashTypes := []SigHashType{
		SigHashAll,
		SigHashNone,
		SigHashSingle,
		SigHashAll | SigHashAnyoneCanPay,
	}

	for _, scheme := range []KeyScheme{SchemeSchnorr, SchemeECDSA} {
		scheme := scheme
		t.Run(scheme.String(), func(t *testing.T) {
			t.Parallel()

			ctx, m := newSigContext(t, 1)
			priv, tagged := testKey(t, scheme)
			_, otherTagged := testKey(t, scheme)
			pk, _ := ctx.ParsePubKey(tagged)
			other, _ := ctx.ParsePubKey(otherTagged)

			for _, hashType := range hashTypes {
				raw, err := SignInput(m, 1, hashType, scheme, priv, txscript.NoCodeSeparator)
				require.NoError(t, err)
				require.Equal(t, byte(hashType), raw[len(raw)-1])

				sig, ok := ctx.ParseSignature(pk, raw)
				require.True(t, ok)
				require.True(t, ctx.VerifySignature(sig, pk, txscript.NoCodeSeparator), hashType.String())
				require.False(t, ctx.VerifySignature(sig, other, txscript.NoCodeSeparator), hashType.String())
				require.False(t, ctx.VerifySignature(sig, pk, 0), hashType.String())
			}

			// 为另一个输入生成的签名
			raw, err := SignInput(m, 0, SigHashAll, scheme, priv, txscript.NoCodeSeparator)
			require.NoError(t, err)
			sig, ok := ctx.ParseSignature(pk, raw)
			require.True(t, ok)
			require.False(t, ctx.VerifySignature(sig, pk, txscript.NoCodeSeparator))
		})
	}
}

func TestVerifySignatureSchemeMismatch(t *testing.T) {
	t.Parallel()

	ctx, m := newSigContext(t, 0)
	priv, _ := testKey(t, SchemeSchnorr)
	ecdsaTagged, err := TaggedPubKey(SchemeECDSA, priv.PubKey())
	require.NoError(t, err)
	schnorrTagged, err := TaggedPubKey(SchemeSchnorr, priv.PubKey())
	require.NoError(t, err)

	raw, err := SignInput(m, 0, SigHashAll, SchemeSchnorr, priv, txscript.NoCodeSeparator)
	require.NoError(t, err)

	// schnorr 签名不是合法的 DER 编码
	ecdsaKey, _ := ctx.ParsePubKey(ecdsaTagged)
	_, ok := ctx.ParseSignature(ecdsaKey, raw)
	require.False(t, ok)

	schnorrKey, _ := ctx.ParsePubKey(schnorrTagged)
	sig, ok := ctx.ParseSignature(schnorrKey, raw)
	require.True(t, ok)
	require.False(t, ctx.VerifySignature(sig, ecdsaKey, txscript.NoCodeSeparator))
	require.True(t, ctx.VerifySignature(sig, schnorrKey, txscript.NoCodeSeparator))
}

func TestCheckLockTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		txLock   uint32
		lockTime int64
		want     bool
	}{
		{name: "height reached", txLock: 100, lockTime: 100, want: true},
		{name: "height below", txLock: 100, lockTime: 50, want: true},
		{name: "height not reached", txLock: 100, lockTime: 101, want: false},
		{name: "time reached", txLock: 600000000, lockTime: 500000000, want: true},
		{name: "time not reached", txLock: 500000000, lockTime: 600000000, want: false},
		{name: "height against time", txLock: 600000000, lockTime: 100, want: false},
		{name: "time against height", txLock: 100, lockTime: 500000000, want: false},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			tx, spent := sighashFixture()
			tx.LockTime = test.txLock
			m, err := NewSigHashMidstate(tx, spent)
			require.NoError(t, err)
			ctx, err := NewTxSigContext(m, 0)
			require.NoError(t, err)
			require.Equal(t, test.want, ctx.CheckLockTime(test.lockTime))
		})
	}
}

func TestCheckSequence(t *testing.T) {
	t.Parallel()

	ctx, _ := newSigContext(t, 0)
	require.False(t, ctx.CheckSequence(0))

	var gotIdx int
	checker := func(tx *Transaction, idx int, sequence int64) bool {
		gotIdx = idx
		return sequence < 10
	}
	ctx, _ = newSigContext(t, 1, WithSequenceChecker(checker))
	require.True(t, ctx.CheckSequence(5))
	require.Equal(t, 1, gotIdx)
	require.False(t, ctx.CheckSequence(10))
}

func TestKeySchemeString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "schnorr", SchemeSchnorr.String())
	require.Equal(t, "ecdsa", SchemeECDSA.String())
	require.Equal(t, "reserved(0x05)", KeyScheme(0x05).String())
	require.Equal(t, "invalid(0x80)", KeyScheme(0x80).String())

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	_, err = TaggedPubKey(KeyScheme(0x05), priv.PubKey())
	require.Error(t, err)
}
