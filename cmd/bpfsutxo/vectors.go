package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/qinglongcn/bpfsutxo"
	"github.com/spf13/afero"
)

func runVectors(conf *vectorsConfig) error {
	dir := conf.Dir
	if dir == "" {
		dir = bpfsutxo.DefaultOptions().VectorsPath()
	}
	store, err := bpfsutxo.NewVectorStore(afero.NewOsFs(), dir)
	if err != nil {
		return err
	}

	files := []string{conf.File}
	if conf.File == "" {
		// 写入内置的向量，保证目录中至少有一个文件
		if _, err := store.LoadOrInitVectors(); err != nil {
			return err
		}
		if files, err = store.List(); err != nil {
			return err
		}
	}

	failed := 0
	for _, file := range files {
		vectors, err := store.Load(file)
		if err != nil {
			return err
		}
		report := bpfsutxo.RunVectors(vectors)
		fmt.Printf("%s: %d/%d passed\n", file, report.Passed, report.Total)
		if conf.Verbose {
			for _, failure := range report.Failures {
				v := failure.Vector
				fmt.Printf("  #%d [%q %q %q] %s: %v\n", failure.Index, v.Witness, v.Lock, v.Flags, v.Comment, failure.Err)
			}
		}
		failed += len(report.Failures)
	}

	if failed > 0 {
		return errors.Errorf("%d vectors failed", failed)
	}
	return nil
}
