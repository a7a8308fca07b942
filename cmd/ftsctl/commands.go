package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/indexer/doclist"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/logger"
)

var errUsage = errors.New("usage")

// backends opens the stores a command needs. Tests swap in in-memory ones.
type backends struct {
	openEngine    func(ctx context.Context, cfg *config.Config) (*indexer.Engine, func() error, error)
	openPublisher func(cfg *config.Config) (*publisher.Publisher, func() error)
}

func newApp(b backends) *cli.Command {
	return &cli.Command{
		Name:  "ftsctl",
		Usage: "Inspect and maintain the full-text index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Sources: cli.EnvVars("FTSCTL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "warn",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			slog.SetDefault(logger.New(os.Stderr, c.String("log-level"), "text"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			indexCommand(b),
			deleteCommand(b),
			queryCommand(b),
			inspectCommand(b),
			publishCommand(b),
			importCommand(b),
			loadtestCommand(),
		},
	}
}

// withEngine loads the config, opens the engine and runs fn with it.
func withEngine(ctx context.Context, c *cli.Command, b backends, fn func(*indexer.Engine) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	e, closeFn, err := b.openEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			slog.Warn("closing index failed", "error", err)
		}
	}()
	return fn(e)
}

func parseDocid(s string) (uint64, error) {
	docid, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: docid %q is not an unsigned integer", errUsage, s)
	}
	return docid, nil
}

func indexCommand(b backends) *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Index a document, replacing any stored version",
		ArgsUsage: "DOCID COLUMN...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "insert",
				Usage: "Fail if the docid is already indexed",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("%w: index DOCID COLUMN...", errUsage)
			}
			docid, err := parseDocid(c.Args().First())
			if err != nil {
				return err
			}
			columns := c.Args().Tail()
			return withEngine(ctx, c, b, func(e *indexer.Engine) error {
				write := e.Put
				if c.Bool("insert") {
					write = e.Insert
				}
				if err := write(ctx, docid, columns...); err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "indexed docid %d (%d columns)\n", docid, len(columns))
				return nil
			})
		},
	}
}

func deleteCommand(b backends) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove a document from the index",
		ArgsUsage: "DOCID",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: delete DOCID", errUsage)
			}
			docid, err := parseDocid(c.Args().First())
			if err != nil {
				return err
			}
			return withEngine(ctx, c, b, func(e *indexer.Engine) error {
				if err := e.Delete(ctx, docid); err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "deleted docid %d\n", docid)
				return nil
			})
		},
	}
}

func queryCommand(b backends) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Run a full-text query and print the matching docids",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Print at most this many docids (0 = all)",
			},
			&cli.BoolFlag{
				Name:  "content",
				Usage: "Print each document's columns",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("%w: query QUERY", errUsage)
			}
			query := strings.Join(c.Args().Slice(), " ")
			return withEngine(ctx, c, b, func(e *indexer.Engine) error {
				q, err := e.Parse(query)
				if err != nil {
					return err
				}
				d, err := e.Execute(ctx, q)
				if err != nil {
					return err
				}
				res := indexer.NewResults(d)
				total, err := res.Count()
				if err != nil {
					return err
				}
				ids, err := res.Collect(int(c.Int("limit")))
				if err != nil {
					return err
				}
				w := c.Root().Writer
				fmt.Fprintf(w, "query: %s\n", q.String())
				fmt.Fprintf(w, "matches: %d\n", total)
				for _, id := range ids {
					if !c.Bool("content") {
						fmt.Fprintf(w, "%d\n", id)
						continue
					}
					columns, err := e.Document(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%d\t%s\n", id, strings.Join(columns, " | "))
				}
				return nil
			})
		},
	}
}

func inspectCommand(b backends) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the stored segments and merged postings of a term",
		ArgsUsage: "TERM",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: inspect TERM", errUsage)
			}
			term := c.Args().First()
			return withEngine(ctx, c, b, func(e *indexer.Engine) error {
				infos, err := e.Segments(ctx, term)
				if err != nil {
					return err
				}
				d, err := e.TermDoclist(ctx, term)
				if err != nil {
					return err
				}
				records, err := doclist.Decode(d)
				if err != nil {
					return err
				}
				w := c.Root().Writer
				fmt.Fprintf(w, "term %q: %d segments, %d documents\n", term, len(infos), len(records))
				for _, info := range infos {
					fmt.Fprintf(w, "  segment %-3d %6d bytes  %d docs  %d deleted\n",
						info.Segment, info.Bytes, info.Docs, info.Deleted)
				}
				for _, rec := range records {
					positions := make([]string, len(rec.Positions))
					for i, p := range rec.Positions {
						positions[i] = fmt.Sprintf("%d:%d[%d,%d)", p.Column, p.Pos, p.Start, p.End)
					}
					fmt.Fprintf(w, "  docid %d  %s\n", rec.Docid, strings.Join(positions, " "))
				}
				return nil
			})
		},
	}
}

func publishCommand(b backends) *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Send a document event to the indexer through Kafka",
		ArgsUsage: "DOCID [COLUMN...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "op",
				Usage: "Event kind: insert, update, put or delete",
				Value: string(ingestion.OpPut),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("%w: publish DOCID [COLUMN...]", errUsage)
			}
			docid, err := parseDocid(c.Args().First())
			if err != nil {
				return err
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
			ev := &ingestion.DocumentEvent{
				Op:      ingestion.Op(c.String("op")),
				DocID:   docid,
				Columns: c.Args().Tail(),
			}
			if err := pub.Publish(ctx, ev); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "published %s of docid %d to %s\n", ev.Op, docid, cfg.Kafka.Topics.DocumentIngest)
			return nil
		},
	}
}
