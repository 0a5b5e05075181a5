// Package errorlog appends database failures to a plain-text file.
package errorlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ice-blockchain/go-dbproxy/logger"
)

const (
	// DefaultFile is the log location relative to Opts.Root.
	DefaultFile = "logs/errors_database.log"

	dateLayout = "02-01-2006 15:04:05"
	separator  = "================================"
)

// Request is the context the failure happened in.
type Request struct {
	URL     string
	Referer string
}

type Opts struct {
	// Path of the log file. Defaults to DefaultFile under Root.
	Path string
	// Root defaults to the working directory.
	Root string
	// Logger receives a logger.ErrorLogWriteFailedEvent when the file
	// can't be written.
	Logger logger.Logger
}

type Writer struct {
	path   string
	logger logger.Logger
	now    func() time.Time
}

func New(opts Opts) *Writer {
	path := opts.Path
	if path == "" {
		path = filepath.Join(opts.Root, filepath.FromSlash(DefaultFile))
	}
	if opts.Logger == nil {
		opts.Logger = logger.SimpleLogger{}
	}
	return &Writer{
		path:   path,
		logger: opts.Logger,
		now:    time.Now,
	}
}

func (w *Writer) Path() string {
	return w.path
}

// Write appends one block describing message. It never fails: write errors
// are reported to the logger and otherwise ignored.
func (w *Writer) Write(req Request, message string) {
	block := fmt.Sprintf("%s\nDate: %s\nURL: %s\nReferer: %s\n\nError: %s\n",
		separator, w.now().Format(dateLayout), req.URL, req.Referer, message)

	if err := w.append(block); err != nil {
		w.logger.Report(logger.NewErrorLogWriteFailedEvent(w.path, err))
	}
}

func (w *Writer) append(block string) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(block); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
