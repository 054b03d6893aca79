package main

import (
	"os"

	"github.com/qinglongcn/bpfsutxo"
	"github.com/qinglongcn/bpfsutxo/txscript"
	"github.com/sirupsen/logrus"
)

func serve(cfg *configFlags, conf *serveConfig) error {
	opt := bpfsutxo.DefaultOptions()
	opt.BuildLogLevel(cfg.LogLevel)
	opt.BuildRootPath(conf.RootPath)
	opt.BuildRequireStandard(!conf.AllowNonStandard)
	if conf.InstanceId != "" {
		opt.BuildInstanceId(conf.InstanceId)
	}
	if conf.InMemory {
		opt.BuildInMemory()
	}

	ledger, err := bpfsutxo.Open(opt)
	if err != nil {
		return err
	}

	if conf.Demo {
		if err := demo(ledger); err != nil {
			logrus.Errorf("[serve] 演示失败:\t%v", err)
		}
	}

	count, err := ledger.Store().Count()
	if err != nil {
		logrus.Errorf("[serve] 失败:\t%v", err)
	}
	logrus.Infof("未花费输出 %d 个，等待终止信号", count)

	bpfsutxo.WaitForShutdown(func() {
		if err := ledger.Close(); err != nil {
			os.Exit(1)
		}
	})
	return nil
}

// demo 写入一个支付到钱包公钥的输出，签名花费它并提交
func demo(ledger *bpfsutxo.Ledger) error {
	wallet, err := bpfsutxo.NewRandomWallet()
	if err != nil {
		return err
	}
	priv, from, err := wallet.DeriveTaggedPubKey(0, bpfsutxo.SchemeSchnorr)
	if err != nil {
		return err
	}
	_, to, err := wallet.DeriveTaggedPubKey(1, bpfsutxo.SchemeECDSA)
	if err != nil {
		return err
	}

	funding := bpfsutxo.NewTransaction(1)
	funding.AddOutput(&bpfsutxo.TxOutput{Value: 5000, Destination: bpfsutxo.PayToPubKey(from)})
	if _, err := ledger.Seed(funding); err != nil {
		return err
	}

	spend := bpfsutxo.NewTransaction(1)
	spend.AddInput(&bpfsutxo.TxInput{PreviousOutPoint: funding.OutPoint(0)})
	spend.AddOutput(&bpfsutxo.TxOutput{Value: 4900, Destination: bpfsutxo.PayToPubKey(to)})

	midstate, err := bpfsutxo.NewSigHashMidstate(spend, []*bpfsutxo.TxOutput{funding.Outputs[0]})
	if err != nil {
		return err
	}
	sig, err := bpfsutxo.SignInput(midstate, 0, bpfsutxo.SigHashAll, bpfsutxo.SchemeSchnorr,
		priv, txscript.NoCodeSeparator)
	if err != nil {
		return err
	}
	spend.Inputs[0].Witness = sig

	if _, err := ledger.Submit(spend); err != nil {
		return err
	}
	committed, err := ledger.CommitPending()
	if err != nil {
		return err
	}
	for _, summary := range committed {
		logrus.Infof("演示交易 %v 已提交，手续费 %d，地址 %s", summary.TxID, summary.Fee, bpfsutxo.GetAddress(to))
	}
	return nil
}
