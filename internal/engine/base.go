package engine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/seantiz/parxe/internal/channel"
	"github.com/seantiz/parxe/internal/model"
	"github.com/seantiz/parxe/internal/task"
)

// Base carries what every in-process engine shares: its identity, the
// result channel and the filesystem its artifacts are written to. Concrete
// engines embed it and add their own scheduling policy around Run.
type Base struct {
	name  string
	hash  string
	fs    afero.Fs
	codec channel.Codec

	mu     sync.Mutex
	server *channel.Server
	client *channel.Client
}

// NewBase creates the shared part of an engine named name. A nil fs means
// the OS filesystem; a nil codec means CBOR.
func NewBase(name string, fs afero.Fs, codec channel.Codec) (*Base, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if codec == nil {
		c, err := channel.CBOR()
		if err != nil {
			return nil, err
		}
		codec = c
	}
	return &Base{name: name, hash: model.NewID(), fs: fs, codec: codec}, nil
}

func (b *Base) Name() string { return b.name }
func (b *Base) Hash() string { return b.hash }

// FS returns the filesystem artifacts are written to.
func (b *Base) FS() afero.Fs { return b.fs }

// Connect creates the endpoint pair on first use.
func (b *Base) Connect() (*channel.Server, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server == nil {
		b.server, b.client = channel.New(b.hash, b.codec)
	}
	return b.server, nil
}

func (b *Base) endpoints() (*channel.Server, *channel.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server == nil {
		return nil, nil, ErrNotConnected
	}
	return b.server, b.client, nil
}

// Run executes t with its output going to the two artifact paths, stores the
// result on the task and sends the reply. An empty path discards that
// stream. Errors returned by the task function travel in the reply; Run
// itself fails only when no reply could be produced.
func (b *Base) Run(ctx context.Context, t *task.Task, stdoutPath, stderrPath string) error {
	server, client, err := b.endpoints()
	if err != nil {
		return err
	}
	if err := server.Expect(t.ID()); err != nil {
		return err
	}

	stdout, err := b.openArtifact(stdoutPath)
	if err != nil {
		server.Discard(t.ID())
		return err
	}
	stderr, err := b.openArtifact(stderrPath)
	if err != nil {
		_ = stdout.Close()
		server.Discard(t.ID())
		return err
	}

	result, runErr := t.Invoke(ctx, stdout, stderr)

	// Artifacts are complete on disk before anyone learns the task is done.
	closeErr := stdout.Close()
	if err := stderr.Close(); closeErr == nil {
		closeErr = err
	}
	if closeErr != nil {
		server.Discard(t.ID())
		return fmt.Errorf("close artifacts for task %s: %w", t.ID(), closeErr)
	}

	if err := t.SetResult(result); err != nil {
		server.Discard(t.ID())
		return err
	}

	reply := channel.Reply{ID: t.ID(), Result: result, Hash: b.hash, Reply: true}
	if runErr != nil {
		reply.Result = nil
		reply.Error = runErr.Error()
	}
	if err := client.Send(reply); err != nil {
		// Typically a result the codec cannot encode.
		reply.Result = nil
		reply.Error = fmt.Sprintf("encode result: %v", err)
		if err := client.Send(reply); err != nil {
			server.Discard(t.ID())
			return fmt.Errorf("send reply for task %s: %w", t.ID(), err)
		}
	}
	return nil
}

// Finished consumes the reply for t.
func (b *Base) Finished(ctx context.Context, t *task.Task) (channel.Reply, error) {
	server, _, err := b.endpoints()
	if err != nil {
		return channel.Reply{}, err
	}
	return server.Receive(ctx, t.ID())
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (b *Base) openArtifact(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{io.Discard}, nil
	}
	if err := b.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := b.fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	return f, nil
}
