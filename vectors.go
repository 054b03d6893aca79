// 脚本一致性测试向量：以简写形式描述见证和锁定脚本，保存在 afero 文件系统中
package bpfsutxo

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// 期望结果中除错误代码名称之外的两个取值
const (
	ExpectOK    = "OK"    // 脚本成功
	ExpectFalse = "FALSE" // 脚本明确失败，或者结束时栈顶为假
)

// Vector 是一条测试向量
type Vector struct {
	Witness  string // 见证的简写形式
	Lock     string // 锁定脚本的简写形式
	Flags    string // 逗号分隔的 MINIMALDATA、MINIMALIF
	Expected string // OK、FALSE 或者 txscript 错误代码的名称
	Comment  string
}

// VectorStore 封装了向量文件的存储
type VectorStore struct {
	Fs       afero.Fs
	BasePath string
}

// NewVectorStore 创建一个新的 VectorStore，并确保根目录存在
func NewVectorStore(fs afero.Fs, basePath string) (*VectorStore, error) {
	if err := fs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &VectorStore{Fs: fs, BasePath: basePath}, nil
}

// Save 将向量以 JSON 数组的形式写入文件
func (vs *VectorStore) Save(fileName string, vectors []Vector) error {
	rows := make([][]string, 0, len(vectors))
	for _, v := range vectors {
		row := []string{v.Witness, v.Lock, v.Flags, v.Expected}
		if v.Comment != "" {
			row = append(row, v.Comment)
		}
		rows = append(rows, row)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	filePath := filepath.Join(vs.BasePath, fileName)
	if err := afero.WriteFile(vs.Fs, filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Load 读取向量文件。只有一个元素的行是注释，会被跳过。
func (vs *VectorStore) Load(fileName string) ([]Vector, error) {
	filePath := filepath.Join(vs.BasePath, fileName)
	data, err := afero.ReadFile(vs.Fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrapf(err, "decode %s", fileName)
	}

	vectors := make([]Vector, 0, len(rows))
	for i, row := range rows {
		switch len(row) {
		case 1:
			continue
		case 4, 5:
		default:
			return nil, errors.Errorf("%s: row %d has %d fields", fileName, i, len(row))
		}
		v := Vector{Witness: row[0], Lock: row[1], Flags: row[2], Expected: row[3]}
		if len(row) == 5 {
			v.Comment = row[4]
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// List 返回根目录下全部 .json 文件的名称
func (vs *VectorStore) List() ([]string, error) {
	infos, err := afero.ReadDir(vs.Fs, vs.BasePath)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".json") {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

var (
	shortFormOnce sync.Once
	shortFormOps  map[string]byte
)

// parseHex 解析 0x 开头的十六进制
func parseHex(tok string) ([]byte, error) {
	if !strings.HasPrefix(tok, "0x") {
		return nil, fmt.Errorf("not a hex number")
	}
	return hex.DecodeString(tok[2:])
}

// ParseShortForm 解析脚本的简写形式：
// 十进制数字按最短编码推送，0x 开头的十六进制原样拼接，单引号中的字符串作为数据推送，
// 其余为操作码名称，可以省略 OP_ 前缀（OP_0 到 OP_16 除外）。
func ParseShortForm(script string) ([]byte, error) {
	shortFormOnce.Do(func() {
		ops := make(map[string]byte)
		for opcodeName, opcodeValue := range txscript.OpcodeByName {
			if strings.Contains(opcodeName, "OP_UNKNOWN") {
				continue
			}
			ops[opcodeName] = opcodeValue

			// 名为 OP_# 的操作码不能去掉 OP_ 前缀，否则它们会与普通数字冲突。
			if (opcodeName == "OP_FALSE" || opcodeName == "OP_TRUE") ||
				(opcodeValue != txscript.OP_0 && (opcodeValue < txscript.OP_1 ||
					opcodeValue > txscript.OP_16)) {

				ops[strings.TrimPrefix(opcodeName, "OP_")] = opcodeValue
			}
		}
		shortFormOps = ops
	})

	var out []byte
	for _, tok := range strings.Fields(script) {
		if num, err := strconv.ParseInt(tok, 10, 64); err == nil {
			push, err := txscript.NewScriptBuilder().AddInt64(num).Script()
			if err != nil {
				return nil, err
			}
			out = append(out, push...)
		} else if bts, err := parseHex(tok); err == nil {
			out = append(out, bts...)
		} else if len(tok) >= 2 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
			push, err := txscript.NewScriptBuilder().AddData([]byte(tok[1 : len(tok)-1])).Script()
			if err != nil {
				return nil, err
			}
			out = append(out, push...)
		} else if opcode, ok := shortFormOps[tok]; ok {
			out = append(out, opcode)
		} else {
			return nil, fmt.Errorf("bad token %q", tok)
		}
	}
	return out, nil
}

// vectorContext 是执行向量使用的上下文，不支持签名
type vectorContext struct {
	txscript.NoSigContext
	minimalPush bool
	minimalIf   bool
}

func (c vectorContext) EnforceMinimalPush() bool { return c.minimalPush }
func (c vectorContext) EnforceMinimalIf() bool   { return c.minimalIf }

// parseVectorFlags 解析向量的标志
func parseVectorFlags(flagStr string) (vectorContext, error) {
	var ctx vectorContext
	for _, flag := range strings.Split(flagStr, ",") {
		switch strings.TrimSpace(flag) {
		case "", "NONE":
		case "MINIMALDATA":
			ctx.minimalPush = true
		case "MINIMALIF":
			ctx.minimalIf = true
		default:
			return ctx, fmt.Errorf("invalid flag: %s", flag)
		}
	}
	return ctx, nil
}

// RunShortForm 解析简写形式的见证和锁定脚本，按标志先执行见证，再以见证留下的数据栈执行锁定脚本。
// 锁定脚本结束时栈顶必须为真，明确失败或栈顶为假时返回 false 且错误为 nil。
// 返回的字节是见证与锁定脚本的拼接，仅用于展示。
func RunShortForm(witness, lock, flags string) ([]byte, bool, error) {
	ctx, err := parseVectorFlags(flags)
	if err != nil {
		return nil, false, err
	}
	witnessScript, err := ParseShortForm(witness)
	if err != nil {
		return nil, false, errors.Wrap(err, "witness")
	}
	lockScript, err := ParseShortForm(lock)
	if err != nil {
		return nil, false, errors.Wrap(err, "lock")
	}

	script := make([]byte, 0, len(witnessScript)+len(lockScript))
	script = append(script, witnessScript...)
	script = append(script, lockScript...)

	vm, err := txscript.NewEngine(ctx, witnessScript, nil)
	if err != nil {
		return script, false, err
	}
	ok, err := vm.Execute()
	if err != nil || !ok {
		return script, false, err
	}

	_, err = txscript.VerifyScript(ctx, lockScript, vm.GetStack())
	switch {
	case txscript.IsErrorCode(err, txscript.ErrVerifyFail):
		return script, false, nil
	case err != nil:
		return script, false, err
	}
	return script, true, nil
}

// Run 执行向量的见证和锁定脚本，结果与期望不一致时返回错误
func (v *Vector) Run() error {
	script, ok, err := RunShortForm(v.Witness, v.Lock, v.Flags)
	if script == nil && err != nil {
		return err
	}

	var got string
	switch {
	case err != nil:
		var serr txscript.Error
		if !errors.As(err, &serr) {
			return errors.Wrap(err, "unexpected error type")
		}
		got = serr.ErrorCode.String()
	case ok:
		got = ExpectOK
	default:
		got = ExpectFalse
	}

	if got != v.Expected {
		return fmt.Errorf("got %s, want %s (err: %v)", got, v.Expected, err)
	}
	return nil
}

// VectorFailure 是一条失败的向量
type VectorFailure struct {
	Index  int
	Vector Vector
	Err    error
}

// VectorReport 是一组向量的执行结果
type VectorReport struct {
	Total    int
	Passed   int
	Failures []VectorFailure
}

// RunVectors 执行全部向量
func RunVectors(vectors []Vector) *VectorReport {
	report := &VectorReport{Total: len(vectors)}
	for i := range vectors {
		if err := vectors[i].Run(); err != nil {
			logrus.Debugf("[RunVectors] 向量 #%d 失败:\t%v", i, err)
			report.Failures = append(report.Failures, VectorFailure{Index: i, Vector: vectors[i], Err: err})
			continue
		}
		report.Passed++
	}
	return report
}

// DefaultVectorsFile 是默认向量的文件名
const DefaultVectorsFile = "script_tests.json"

// DefaultVectors 返回内置的一组向量
func DefaultVectors() []Vector {
	const strict = "MINIMALDATA,MINIMALIF"
	return []Vector{
		{"1", "1 EQUAL", strict, ExpectOK, "equal small ints"},
		{"2 3", "ADD 5 EQUAL", strict, ExpectOK, "addition"},
		{"1", "IF 2 ELSE 3 ENDIF 2 EQUAL", strict, ExpectOK, "if branch"},
		{"0", "IF 2 ELSE 3 ENDIF 3 EQUAL", strict, ExpectOK, "else branch"},
		{"1 2", "SWAP SWAP 2 EQUALVERIFY 1 EQUAL", strict, ExpectOK, "swap twice"},
		{"1", "TOALTSTACK FROMALTSTACK", strict, ExpectOK, "alt stack round trip"},
		{"", "DEPTH 0 EQUAL", strict, ExpectOK, "empty depth"},
		{"1", "2 EQUAL", strict, ExpectFalse, "unequal small ints"},
		{"2 3", "ADD 6 EQUAL", strict, ExpectFalse, "wrong sum"},
		{"", "", strict, ExpectFalse, "empty stack"},
		{"0x01", "1", strict, "ErrEarlyEndOfScript", "witness cannot push the lock"},
		{"'abc'", "SIZE 3 EQUALVERIFY SHA256 0x20 0xba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad EQUAL",
			strict, ExpectOK, "sha256"},
		{"0", "IF RETURN ENDIF 1", strict, ExpectOK, "masked return is skipped"},
		{"0", "VERIFY", strict, ExpectFalse, "verify of false"},
		{"", "RETURN", strict, ExpectFalse, "return"},
		{"1", "IF", strict, "ErrUnbalancedIfElse", "unterminated if"},
		{"", "ELSE", strict, "ErrUnbalancedIfElse", "dangling else"},
		{"", "ENDIF", strict, "ErrUnbalancedIfElse", "dangling endif"},
		{"", "ADD", strict, "ErrNotEnoughElementsOnStack", "add on empty stack"},
		{"", "VERIF", strict, "ErrIllegalOp", "illegal opcode"},
		{"0", "IF VERIF ENDIF 1", strict, "ErrIllegalOp", "illegal opcode in unexecuted branch"},
		{"0x4c01 0x07", "DROP 1", "MINIMALDATA", "ErrNonMinimalPush", "non-minimal push"},
		{"0x4c01 0x07", "7 EQUAL", "", ExpectOK, "non-minimal push allowed"},
		{"0x02 0x0000", "IF 1 ENDIF", "MINIMALIF", "ErrInvalidOperand", "non-minimal if condition"},
		{"0x02 0x0000", "IF 0 ELSE 1 ENDIF", "", ExpectOK, "non-minimal if condition allowed"},
		{"0x05 0x0000000080", "1ADD", "", "ErrNumericOverflow", "five byte number"},
		{"1", "CHECKLOCKTIMEVERIFY", strict, "ErrTimeLock", "lock time without a transaction"},
		{"-1", "CHECKLOCKTIMEVERIFY", strict, "ErrInvalidOperand", "negative lock time"},
		{"0", "0 CHECKSIG", strict, "ErrPubkeyFormat", "signature check without keys"},
	}
}

// LoadOrInitVectors 读取默认向量文件，文件不存在时写入 DefaultVectors
func (vs *VectorStore) LoadOrInitVectors() ([]Vector, error) {
	filePath := filepath.Join(vs.BasePath, DefaultVectorsFile)
	exists, err := afero.Exists(vs.Fs, filePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := vs.Save(DefaultVectorsFile, DefaultVectors()); err != nil {
			return nil, err
		}
	}
	return vs.Load(DefaultVectorsFile)
}
