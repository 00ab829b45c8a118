package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/samvad-hq/fileio-go/internal/app"
	"github.com/samvad-hq/fileio-go/pkg/fileio"
)

var (
	errUsage        = errors.New("usage: fileio <command> [flags] [args]")
	errUnsuccessful = errors.New("one or more operations were unsuccessful")
)

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: fileio <command> [flags] [args]

commands:
  upload [-expires E] [-max-downloads N] [-auto-delete] [-anon] FILE...
  list [-search S] [-sort FIELD] [-offset N] [-limit N]
  me
  download [-anon] KEY [DEST]
  delete KEY... | delete -all
  update [-file PATH] [-expires E] [-max-downloads N] [-auto-delete] [-mode replace_partial|replace_all] KEY
  ledger
  reconcile

Flags must precede positional arguments. A flag becomes a request field only
when given; an empty value (e.g. -expires="") sends the field empty.
`)
}

// execute dispatches one subcommand and prints its outcome to out as JSON.
func execute(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "upload":
		return runUpload(ctx, a, rest, out)
	case "list":
		return runList(ctx, a, rest, out)
	case "me":
		res, err := a.Me(ctx)
		return printResult(out, res, err)
	case "download":
		return runDownload(ctx, a, rest, out)
	case "delete":
		return runDelete(ctx, a, rest, out)
	case "update":
		return runUpdate(ctx, a, rest, out)
	case "ledger":
		records, err := a.Ledger()
		if err != nil {
			return err
		}
		return printJSON(out, records)
	case "reconcile":
		report, err := a.Reconcile(ctx)
		if perr := printJSON(out, report); perr != nil {
			return perr
		}
		return err
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// fileFlags are the settings shared by upload and update.
type fileFlags struct {
	expires      *string
	maxDownloads *int
	autoDelete   *bool
}

func addFileFlags(fs *flag.FlagSet) fileFlags {
	return fileFlags{
		expires:      fs.String("expires", "", "expiry: countdown (1d, 2w), RFC 3339 time, Go duration, or none"),
		maxDownloads: fs.Int("max-downloads", 0, "downloads allowed before the file is removed"),
		autoDelete:   fs.Bool("auto-delete", false, "remove the file once max downloads is reached"),
	}
}

// apply copies explicitly given flags onto the request settings.
func (f fileFlags) apply(set map[string]bool, expires *fileio.Expiry, maxDownloads *fileio.Opt[int], autoDelete *fileio.Opt[bool]) {
	if set["expires"] {
		*expires = fileio.ParseExpiry(*f.expires)
	}
	if set["max-downloads"] {
		*maxDownloads = fileio.Some(*f.maxDownloads)
	}
	if set["auto-delete"] {
		*autoDelete = fileio.Some(*f.autoDelete)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) (map[string]bool, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %w", fs.Name(), err)
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set, nil
}

func runUpload(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("upload")
	ff := addFileFlags(fs)
	anon := fs.Bool("anon", false, "upload without credentials")
	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("upload: at least one FILE is required")
	}

	var p fileio.UploadParams
	ff.apply(set, &p.Expires, &p.MaxDownloads, &p.AutoDelete)

	results, err := a.Upload(ctx, fs.Args(), p, *anon)
	return printResults(out, results, err)
}

func runList(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("list")
	var p fileio.ListParams
	fs.StringVar(&p.Search, "search", "", "filter by name")
	fs.StringVar(&p.Sort, "sort", "", "sort field, e.g. name, size, expires")
	fs.IntVar(&p.Offset, "offset", 0, "entries to skip")
	fs.IntVar(&p.Limit, "limit", 0, "maximum entries")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	res, err := a.List(ctx, p)
	return printResult(out, res, err)
}

func runDownload(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("download")
	anon := fs.Bool("anon", false, "download without credentials")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return fmt.Errorf("download: expected KEY [DEST]")
	}
	dest := "."
	if fs.NArg() == 2 {
		dest = fs.Arg(1)
	}
	res, err := a.Download(ctx, fs.Arg(0), dest, *anon)
	return printResult(out, res, err)
}

func runDelete(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("delete")
	all := fs.Bool("all", false, "delete every file of the account")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	var (
		results []*fileio.Result
		err     error
	)
	switch {
	case *all && fs.NArg() > 0:
		return fmt.Errorf("delete: -all takes no keys")
	case *all:
		results, err = a.DeleteAll(ctx)
	case fs.NArg() == 0:
		return fmt.Errorf("delete: at least one KEY is required")
	default:
		results, err = a.Delete(ctx, fs.Args())
	}
	return printResults(out, results, err)
}

func runUpdate(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("update")
	ff := addFileFlags(fs)
	file := fs.String("file", "", "replacement content")
	mode := fs.String("mode", string(fileio.ModeReplacePartial), "replace_partial or replace_all")
	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("update: expected exactly one KEY")
	}

	p := fileio.UpdateParams{Mode: fileio.Mode(strings.TrimSpace(*mode))}
	ff.apply(set, &p.Expires, &p.MaxDownloads, &p.AutoDelete)
	if set["file"] {
		if strings.TrimSpace(*file) == "" {
			p.File = fileio.Clear[string]()
		} else {
			p.File = fileio.Some(*file)
		}
	}

	res, err := a.Update(ctx, fs.Arg(0), p)
	return printResult(out, res, err)
}

func printResult(out io.Writer, res *fileio.Result, err error) error {
	if err != nil {
		return err
	}
	if perr := printJSON(out, res.Fields); perr != nil {
		return perr
	}
	if !res.Success {
		return errUnsuccessful
	}
	return nil
}

// printResults prints one envelope per input; local failures print as null
// and are reported through err.
func printResults(out io.Writer, results []*fileio.Result, err error) error {
	envelopes := make([]map[string]any, len(results))
	ok := true
	for i, res := range results {
		if res == nil {
			ok = false
			continue
		}
		envelopes[i] = res.Fields
		ok = ok && res.Success
	}
	if perr := printJSON(out, envelopes); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	if !ok {
		return errUnsuccessful
	}
	return nil
}

func printJSON(out io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(raw))
	return err
}
