package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
)

const maxImportLine = 4 << 20

func importCommand(b backends) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Publish document events read as JSON lines from FILE (or - for stdin)",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch",
				Usage: "Events per Kafka write",
				Value: 100,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: import FILE", errUsage)
			}
			batchSize := int(c.Int("batch"))
			if batchSize < 1 {
				return fmt.Errorf("%w: batch must be positive", errUsage)
			}
			var in io.Reader = os.Stdin
			if name := c.Args().First(); name != "-" {
				f, err := os.Open(name)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			pub, closeFn := b.openPublisher(cfg)
			defer func() {
				if err := closeFn(); err != nil {
					slog.Warn("closing producer failed", "error", err)
				}
			}()

			var (
				batch []*ingestion.DocumentEvent
				total int
			)
			flush := func() error {
				if err := pub.PublishBatch(ctx, batch); err != nil {
					return fmt.Errorf("after %d published events: %w", total, err)
				}
				total += len(batch)
				batch = batch[:0]
				return nil
			}

			sc := bufio.NewScanner(in)
			sc.Buffer(make([]byte, 0, 64<<10), maxImportLine)
			for line := 1; sc.Scan(); line++ {
				if len(sc.Bytes()) == 0 {
					continue
				}
				ev := &ingestion.DocumentEvent{}
				if err := json.Unmarshal(sc.Bytes(), ev); err != nil {
					return fmt.Errorf("%w: line %d: %v", errUsage, line, err)
				}
				if ev.Op == "" {
					ev.Op = ingestion.OpPut
				}
				batch = append(batch, ev)
				if len(batch) == batchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			if err := sc.Err(); err != nil {
				return err
			}
			if err := flush(); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "published %d events to %s\n", total, cfg.Kafka.Topics.DocumentIngest)
			return nil
		},
	}
}
