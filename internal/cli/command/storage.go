package command

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/cli/output"
	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/storage"
)

// StorageCommand returns the storage subcommand group.
func StorageCommand() *cli.Command {
	return &cli.Command{
		Name:  "storage",
		Usage: "Inspect and maintain local storage",
		Subcommands: []*cli.Command{
			{
				Name:   "keys",
				Usage:  "List stored keys",
				Action: storageKeys,
			},
			{
				Name:   "info",
				Usage:  "Show storage size and backend",
				Action: storageInfo,
			},
			{
				Name:   "cleanup",
				Usage:  "Remove expired and unreadable entries",
				Action: storageCleanup,
			},
			{
				Name:  "export",
				Usage: "Write a JSON backup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Output file (stdout when omitted)"},
					&cli.BoolFlag{Name: "include-token", Usage: "Include the session token"},
				},
				Action: storageExport,
			},
			{
				Name:      "import",
				Usage:     "Restore a JSON backup",
				ArgsUsage: "FILE",
				Action:    storageImport,
			},
			{
				Name:   "clear",
				Usage:  "Delete every stored entry, including the session",
				Flags:  []cli.Flag{forceFlag},
				Action: storageClear,
			},
		},
	}
}

func storageKeys(c *cli.Context) error {
	svc, err := services(c)
	if err != nil {
		return err
	}
	keys := svc.Store.Keys(c.Context)
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("KEY")
	for _, k := range keys {
		t.AddRow(k)
	}
	return p.Print(keys, t)
}

func storageInfo(c *cli.Context) error {
	svc, err := services(c)
	if err != nil {
		return err
	}
	info := svc.Store.Info(c.Context)
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("type", info.StorageType)
	t.AddRow("items", fmt.Sprint(info.ItemCount))
	t.AddRow("size", humanize.IBytes(uint64(info.TotalSize)))
	t.AddRow("encrypted", fmt.Sprint(info.Encrypted))
	t.AddRow("available", fmt.Sprint(info.Supported))
	return p.Print(info, t)
}

func storageCleanup(c *cli.Context) error {
	svc, err := services(c)
	if err != nil {
		return err
	}
	n := svc.Store.Cleanup(c.Context)
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]int{"removed": n}, "Removed %d entries", n)
}

func storageExport(c *cli.Context) error {
	svc, err := services(c)
	if err != nil {
		return err
	}
	var exclude []string
	if !c.Bool("include-token") {
		exclude = append(exclude, domain.KeyToken)
	}
	backup, err := svc.Store.Export(c.Context, exclude...)
	if err != nil {
		return err
	}

	var w io.Writer = c.App.Writer
	file := c.String("file")
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(backup); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if file != "" {
		fmt.Fprintf(c.App.ErrWriter, "Exported %d entries to %s\n", len(backup.Data), file)
	}
	return nil
}

func storageImport(c *cli.Context) error {
	file, err := requireArg(c, 0, "FILE")
	if err != nil {
		return err
	}
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	backup, err := storage.ParseBackup(f)
	if err != nil {
		return err
	}
	svc, err := services(c)
	if err != nil {
		return err
	}
	res, err := svc.Store.Import(c.Context, backup)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	if err := p.Message(res, "Imported %d of %d entries", res.Imported, res.Total); err != nil {
		return err
	}
	if !p.Structured() {
		for _, e := range res.Errors {
			fmt.Fprintf(c.App.ErrWriter, "  %s\n", e)
		}
	}
	return nil
}

func storageClear(c *cli.Context) error {
	if !confirm(c, c.Bool("force"), "Delete all stored data including the session?") {
		return errAborted
	}
	svc, err := services(c)
	if err != nil {
		return err
	}
	n := svc.Store.Clear(c.Context)
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]int{"removed": n}, "Removed %d entries", n)
}
