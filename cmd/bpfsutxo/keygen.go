package main

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/qinglongcn/bpfsutxo"
)

func parseScheme(name string) (bpfsutxo.KeyScheme, error) {
	switch name {
	case "schnorr":
		return bpfsutxo.SchemeSchnorr, nil
	case "ecdsa":
		return bpfsutxo.SchemeECDSA, nil
	}
	return 0, errors.Errorf("unknown signature scheme %q", name)
}

func keygen(conf *keygenConfig) error {
	scheme, err := parseScheme(conf.Scheme)
	if err != nil {
		return err
	}

	var wallet *bpfsutxo.Wallet
	if conf.Seed == "" {
		wallet, err = bpfsutxo.NewRandomWallet()
	} else {
		var seed []byte
		seed, err = hex.DecodeString(conf.Seed)
		if err != nil {
			return errors.Wrap(err, "decode seed")
		}
		wallet, err = bpfsutxo.NewWallet(seed)
	}
	if err != nil {
		return err
	}

	priv, tagged, err := wallet.DeriveTaggedPubKey(conf.Index, scheme)
	if err != nil {
		return err
	}

	fmt.Printf("Seed:\t\t%x\n", wallet.Seed)
	fmt.Printf("Index:\t\t%d\n", conf.Index)
	fmt.Printf("Private key:\t%x\n", priv.Serialize())
	fmt.Printf("Public key:\t%x\n", tagged)
	fmt.Printf("Address:\t%s\n", bpfsutxo.GetAddress(tagged))
	return nil
}
