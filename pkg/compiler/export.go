package compiler

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/leapstack-labs/leapetl/pkg/frame"
	"github.com/leapstack-labs/leapetl/pkg/pipeline"
)

// Export is a compiled export: where to write the plan result, and how.
type Export struct {
	// Index is the position in the document's export list.
	Index int
	// Kind is the export tag: csv, json, json_line or parquet.
	Kind string
	// Folder is absolute, or a remote URL.
	Folder     string
	Name       string
	DateFormat string
	Extension  string
	// CSV holds writer options for csv exports.
	CSV frame.CSVWriteOptions
}

var extensions = map[string]string{
	"csv":       ".csv",
	"json":      ".json",
	"json_line": ".jsonl",
	"parquet":   ".parquet",
}

// FileName is Name, followed by the strftime rendering of DateFormat at now,
// followed by the extension.
func (e Export) FileName(now time.Time) string {
	name := e.Name
	if e.DateFormat != "" {
		name += strftime.Format(e.DateFormat, now)
	}
	return name + e.Extension
}

// Destination is the full output path at time now.
func (e Export) Destination(now time.Time) string {
	if IsRemote(e.Folder) {
		return strings.TrimSuffix(e.Folder, "/") + "/" + e.FileName(now)
	}
	return filepath.Join(e.Folder, e.FileName(now))
}

// Remote reports whether the export writes to a URL.
func (e Export) Remote() bool { return IsRemote(e.Folder) }

func (st *compilation) exports(sc scope, exports []pipeline.Export) ([]Export, error) {
	out := make([]Export, 0, len(exports))
	for i, x := range exports {
		esc := sc.index(i).at(x.ExportTag())
		ext, ok := extensions[x.ExportTag()]
		if !ok {
			return nil, esc.errorf(ErrUnsupportedOperation, "unsupported export %T", x)
		}
		d := x.Target()
		if d.Name == "" || strings.ContainsAny(d.Name, `/\`) {
			return nil, esc.at("name").errorf(ErrUnsupportedOperation, "export name %q must be a plain file name", d.Name)
		}
		folder := locate(sc.dir, d.Folder)
		if !IsRemote(folder) {
			abs, err := filepath.Abs(folder)
			if err != nil {
				return nil, esc.at("folder").wrap(ErrPathNotFound, err)
			}
			folder = abs
		}
		ex := Export{
			Index:      i,
			Kind:       x.ExportTag(),
			Folder:     folder,
			Name:       d.Name,
			DateFormat: d.DateFormat,
			Extension:  ext,
		}
		if c, ok := x.(pipeline.CSVExport); ok {
			ex.CSV = frame.CSVWriteOptions{Separator: c.Separator, Header: c.Header == nil || *c.Header}
		}
		out = append(out, ex)
	}
	return out, nil
}
