// Command generate-testdata seeds the database with random markets,
// receipts and items so listings and statistics can be exercised at
// realistic volume. It reads the same configuration as the server and
// needs at least one existing user.
//
//	-n int      receipts to generate (0 picks 5000-10000)
//	-batch int  receipts per transaction
//	-seed int   random seed (0 uses the clock)
//	-y          do not ask for confirmation
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/flagx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/seed"
)

type options struct {
	seed.Options
	yes bool
}

func parseOptions(args []string) (options, error) {
	var o options

	fs := flag.NewFlagSet("generate-testdata", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&o.Receipts, "n", 0, "receipts to generate (0 picks 5000-10000)")
	fs.IntVar(&o.BatchSize, "batch", seed.DefaultBatchSize, "receipts per transaction")
	seedValue := fs.String("seed", "0", "random seed (0 uses the clock)")
	fs.BoolVar(&o.yes, "y", false, "do not ask for confirmation")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-n", "-batch", "-seed", "-y"})); err != nil {
		return o, err
	}

	s, err := strconv.ParseUint(*seedValue, 10, 64)
	if err != nil {
		return o, fmt.Errorf("invalid -seed: %w", err)
	}
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	o.Seed = s
	return o, nil
}

func confirm(in io.Reader, out io.Writer, o options) bool {
	if o.yes {
		return true
	}
	count := "5000-10000"
	if o.Receipts > 0 {
		count = strconv.Itoa(o.Receipts)
	}
	fmt.Fprintf(out, "This adds 10 markets and %s receipts with 1-10 items each.\nProceed? (y/N): ", count)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func main() {
	o, err := parseOptions(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if !confirm(os.Stdin, os.Stdout, o) {
		fmt.Println("Operation cancelled.")
		return
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	db, err := dbx.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	start := time.Now()
	res, err := seed.NewGenerator(db, m, logger).Run(ctx, o.Options)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	fmt.Printf("Markets: %d\nReceipts: %d\nItems: %d\nTook: %s\n", res.Markets, res.Receipts, res.Items, time.Since(start).Round(time.Millisecond))
}
