package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nxadm/tail"
	"github.com/nxadm/tail/watch"
	"go.uber.org/zap"
)

var pollOnce sync.Once

// LogLine represents a raw line from a log source
type LogLine struct {
	Source    string
	Timestamp time.Time // when the line was read
	Content   string
}

// Ingester defines the interface for log sources
type Ingester interface {
	Start(ctx context.Context) (<-chan LogLine, error)
	Stop() error
}

// FileTailer implements Ingester for a single file
type FileTailer struct {
	path         string
	pollInterval time.Duration
	log          *zap.SugaredLogger

	mu sync.Mutex
	t  *tail.Tail
}

// NewFileTailer creates a new tailer for a path. pollInterval is the
// delay between size checks while the file has no new data.
func NewFileTailer(path string, pollInterval time.Duration, log *zap.SugaredLogger) *FileTailer {
	return &FileTailer{
		path:         path,
		pollInterval: pollInterval,
		log:          log,
	}
}

// Start follows the file from its current end. Lines already present are
// never replayed. The file must exist and be readable: any open error is
// returned here. The channel closes once ctx is done or Stop is called.
func (f *FileTailer) Start(ctx context.Context) (<-chan LogLine, error) {
	if f.pollInterval > 0 {
		// the poll interval is process-wide in nxadm/tail
		pollOnce.Do(func() { watch.POLL_DURATION = f.pollInterval })
	}
	return f.run(ctx, tail.Config{
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Follow:    true,
		ReOpen:    true, // survive logrotate
		MustExist: true,
		Poll:      true,
		Logger:    tail.DiscardingLogger,
	})
}

// ReadAll streams every line currently in the file and closes the channel
// at EOF.
func (f *FileTailer) ReadAll(ctx context.Context) (<-chan LogLine, error) {
	return f.run(ctx, tail.Config{
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
}

func (f *FileTailer) run(ctx context.Context, config tail.Config) (<-chan LogLine, error) {
	t, err := tail.TailFile(f.path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to tail file %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.t = t
	f.mu.Unlock()

	f.log.Debugw("tailing file", "file", f.path, "follow", config.Follow)

	out := make(chan LogLine, 256)

	go func() {
		defer close(out)
		defer t.Cleanup()

		for {
			select {
			case <-ctx.Done():
				_ = t.Stop()
				return
			case line, ok := <-t.Lines:
				if !ok {
					if err := t.Err(); err != nil {
						f.log.Errorw("tail stopped", "file", f.path, "error", err)
					}
					return
				}
				if line.Err != nil {
					f.log.Warnw("error reading line", "file", f.path, "error", line.Err)
					continue
				}
				select {
				case out <- LogLine{Source: f.path, Timestamp: line.Time, Content: line.Text}:
				case <-ctx.Done():
					_ = t.Stop()
					return
				}
			}
		}
	}()

	return out, nil
}

// Stop stops the tailing
func (f *FileTailer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.t != nil {
		return f.t.Stop()
	}
	return nil
}
