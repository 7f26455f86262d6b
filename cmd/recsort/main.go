package main

import (
	"bytes"
	"crypto/sha256"
	"flag"
	"io"
	"log"
	"os"

	"github.com/SaveTheRbtz/fastcdc-go"
	"github.com/cespare/xxhash/v2"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	recwriter "github.com/SaveTheRbtz/recwriter"
)

func main() {
	var (
		inputFlag, outputFlag     string
		numPartitionsFlag         int
		sortFlag, gzFlag, lz4Flag bool
		safeFlag, ackFlag         bool
		verifyFlag, verboseFlag   bool
	)

	flag.StringVar(&inputFlag, "f", "", "input filename")
	flag.StringVar(&outputFlag, "o", "", "output filename")
	flag.IntVar(&numPartitionsFlag, "partitions", 0, "number of output partitions (0 disables partitioning)")
	flag.BoolVar(&sortFlag, "sort", false, "externally sort chunks by content before writing")
	flag.BoolVar(&gzFlag, "gz", false, "gzip-compress the output")
	flag.BoolVar(&lz4Flag, "lz4", false, "lz4-compress the output")
	flag.BoolVar(&safeFlag, "safe", false, "publish atomically via rename on close")
	flag.BoolVar(&ackFlag, "ack", false, "write an empty .ack file on success")
	flag.BoolVar(&verifyFlag, "t", false, "reread the output after writing and checksum it")
	flag.BoolVar(&verboseFlag, "v", false, "be verbose")
	flag.Parse()

	var err error
	var logger *zap.Logger
	if verboseFlag {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("failed to initialize logger", err)
	}
	defer func() { _ = logger.Sync() }()

	if inputFlag == "" || outputFlag == "" {
		logger.Fatal("both input and output files need to be defined")
	}
	if verifyFlag && numPartitionsFlag > 0 {
		logger.Fatal("verify can't be used with partitioned output")
	}

	input, err := os.Open(inputFlag)
	if err != nil {
		logger.Fatal("failed to open input", zap.Error(err))
	}
	defer input.Close()

	wopts := []recwriter.WOption{recwriter.WithLogger(logger)}
	if gzFlag {
		wopts = append(wopts, recwriter.WithGZ(1))
	}
	if lz4Flag {
		wopts = append(wopts, recwriter.WithLZ4(recwriter.LZ4Params{Level: 1, BlockSize: 64 * 1024}))
	}
	if safeFlag {
		wopts = append(wopts, recwriter.WithSafeMode())
	}
	if ackFlag {
		wopts = append(wopts, recwriter.WithAckFile())
	}

	compareByBytes := func(a, b []byte) int { return bytes.Compare(a, b) }

	var sopts []recwriter.SOption
	if sortFlag || numPartitionsFlag > 0 {
		sopts = append(sopts, recwriter.WithCompare(compareByBytes))
	}

	var w recwriter.Writer
	if numPartitionsFlag > 0 {
		partitionByHash := func(rec []byte, _ uint32, arg interface{}) int {
			n := arg.(int)
			return int(xxhash.Sum64(rec) % uint64(n))
		}
		popts := []recwriter.POption{
			recwriter.WithPartitionFunc(partitionByHash, numPartitionsFlag),
			recwriter.WithNumPartitions(numPartitionsFlag),
		}
		w, err = recwriter.NewPartitioned(outputFlag, popts, sopts, wopts...)
	} else if sortFlag {
		w, err = recwriter.NewSorted(outputFlag, sopts, wopts...)
	} else {
		w, err = recwriter.NewWriter(outputFlag, wopts...)
	}
	if err != nil {
		logger.Fatal("failed to create writer", zap.Error(err))
	}

	info, err := input.Stat()
	if err != nil {
		logger.Fatal("failed to stat input", zap.Error(err))
	}
	bar := progressbar.DefaultBytes(info.Size(), "chunking")

	chunker, err := fastcdc.NewChunker(input, fastcdc.Options{
		MinSize:     4 * 1024,
		AverageSize: 16 * 1024,
		MaxSize:     64 * 1024,
	})
	if err != nil {
		logger.Fatal("failed to create chunker", zap.Error(err))
	}

	expected := sha256.New()
	var tag uint32
	for {
		chunk, err := chunker.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			logger.Fatal("failed to read chunk", zap.Error(err))
		}
		if verifyFlag {
			expected.Write(chunk.Data)
		}
		if err := w.WriteRecord(chunk.Data, tag); err != nil {
			logger.Fatal("failed to write record", zap.Error(err))
		}
		_ = bar.Add(len(chunk.Data))
		tag++
	}
	_ = bar.Finish()

	if err := w.Close(); err != nil {
		logger.Fatal("failed to close writer", zap.Error(err))
	}

	if verifyFlag {
		in, err := recwriter.OpenRawPrefixInput(outputFlag)
		if err != nil {
			logger.Fatal("failed to reopen output for verification", zap.Error(err))
		}
		defer in.Close()

		actual := sha256.New()
		for {
			data, _, err := in.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				logger.Fatal("failed to read back record", zap.Error(err))
			}
			actual.Write(data)
		}

		if !bytes.Equal(actual.Sum(nil), expected.Sum(nil)) {
			logger.Fatal("checksum verification failed",
				zap.Binary("actual", actual.Sum(nil)), zap.Binary("expected", expected.Sum(nil)))
		}
		logger.Info("checksum verification succeeded", zap.Binary("checksum", actual.Sum(nil)))
	}
}
