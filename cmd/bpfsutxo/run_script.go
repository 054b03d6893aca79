package main

import (
	"fmt"

	"github.com/qinglongcn/bpfsutxo"
	"github.com/qinglongcn/bpfsutxo/txscript"
)

func runScript(conf *runScriptConfig) error {
	script, ok, err := bpfsutxo.RunShortForm(conf.Witness, conf.Lock, conf.Flags)
	if script == nil {
		return err
	}

	disasm, disasmErr := txscript.DisasmString(script)
	if disasmErr != nil {
		disasm = fmt.Sprintf("%s [error: %v]", disasm, disasmErr)
	}
	fmt.Printf("Script:\t%x\n", script)
	fmt.Printf("Disasm:\t%s\n", disasm)

	switch {
	case err != nil:
		fmt.Printf("Result:\tERROR %v\n", err)
	case ok:
		fmt.Println("Result:\tOK")
	default:
		fmt.Println("Result:\tFALSE")
	}
	return nil
}
