package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/omerimzali/mksub/pkg/formatter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitDone(t *testing.T, p *Pipeline) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func send(t *testing.T, p *Pipeline, lines ...string) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, p.Send(context.Background(), l))
	}
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d.example.com", i)
	}
	return out
}

func TestRoundRobinIsPeriodic(t *testing.T) {
	rr := NewRoundRobin(3)
	var got []int
	for i := 0; i < 9; i++ {
		got = append(got, rr.Next())
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0, 1, 2}, got)
}

func TestRoundRobinConcurrent(t *testing.T) {
	rr := NewRoundRobin(3)
	counts := make([]int, 3)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int, 3)
			for i := 0; i < 300; i++ {
				local[rr.Next()]++
			}
			mu.Lock()
			for i, c := range local {
				counts[i] += c
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, []int{1000, 1000, 1000}, counts)
}

func TestPipelineWritesShardsRoundRobin(t *testing.T) {
	dir := t.TempDir()
	p, err := Start(context.Background(), Config{
		Path:        filepath.Join(dir, "out"),
		Shards:      2,
		BufferBytes: 16,
		QueueSize:   4,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	in := names(10)
	send(t, p, in...)
	p.Close()
	waitDone(t, p)

	assert.Equal(t, []string{in[0], in[2], in[4], in[6], in[8]}, readLines(t, filepath.Join(dir, "out-0.txt")))
	assert.Equal(t, []string{in[1], in[3], in[5], in[7], in[9]}, readLines(t, filepath.Join(dir, "out-1.txt")))

	for _, r := range p.Results() {
		assert.NoError(t, r.Err)
		assert.EqualValues(t, 5, r.Lines)
	}
	assert.Zero(t, p.Running())
}

func TestPipelineFairness(t *testing.T) {
	dir := t.TempDir()
	p, err := Start(context.Background(), Config{
		Path:        filepath.Join(dir, "fair.txt"),
		Shards:      3,
		BufferBytes: 1024,
		QueueSize:   2,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	send(t, p, names(7)...)
	p.Close()
	waitDone(t, p)

	var got []int
	for i := 0; i < 3; i++ {
		got = append(got, len(readLines(t, filepath.Join(dir, fmt.Sprintf("fair-%d.txt", i)))))
	}
	assert.Equal(t, []int{3, 2, 2}, got)
}

func TestPipelineSingleShardFile(t *testing.T) {
	dir := t.TempDir()
	p, err := Start(context.Background(), Config{
		Path:        filepath.Join(dir, "single"),
		Shards:      1,
		BufferBytes: 1 << 20,
		QueueSize:   8,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	send(t, p, "a.example.com", "b.example.com")
	p.Close()
	waitDone(t, p)

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, readLines(t, filepath.Join(dir, "single.txt")))
}

func TestPipelineEchoWithoutFile(t *testing.T) {
	var console bytes.Buffer
	p, err := Start(context.Background(), Config{
		Shards:      3,
		BufferBytes: 64,
		QueueSize:   4,
		Echo:        true,
		Console:     &console,
		Formatter:   formatter.New(formatter.FormatPlain),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	in := names(20)
	send(t, p, in...)
	p.Close()
	waitDone(t, p)

	got := strings.Split(strings.TrimSuffix(console.String(), "\n"), "\n")
	assert.ElementsMatch(t, in, got)
	for _, r := range p.Results() {
		assert.Empty(t, r.Path)
		assert.Zero(t, r.Bytes)
	}
}

func TestPipelineShardCreateFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "iso-1.txt")
	create := func(path string) (io.WriteCloser, error) {
		if path == bad {
			return nil, errors.New("permission denied")
		}
		return os.Create(path)
	}

	p, err := Start(context.Background(), Config{
		Path:        filepath.Join(dir, "iso"),
		Shards:      3,
		BufferBytes: 8,
		QueueSize:   1,
		Create:      create,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	in := names(30)
	send(t, p, in...)
	p.Close()
	waitDone(t, p)

	var got []string
	got = append(got, readLines(t, filepath.Join(dir, "iso-0.txt"))...)
	got = append(got, readLines(t, filepath.Join(dir, "iso-2.txt"))...)
	assert.ElementsMatch(t, in, got)

	results := p.Results()
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[2].Err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (failingWriter) Close() error              { return nil }

func TestPipelineWriteFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "wf-0.txt")
	create := func(path string) (io.WriteCloser, error) {
		if path == bad {
			return failingWriter{}, nil
		}
		return os.Create(path)
	}

	p, err := Start(context.Background(), Config{
		Path:        filepath.Join(dir, "wf"),
		Shards:      2,
		BufferBytes: 4,
		QueueSize:   1,
		Create:      create,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	send(t, p, names(10)...)
	p.Close()
	waitDone(t, p)

	results := p.Results()
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.NotEmpty(t, readLines(t, filepath.Join(dir, "wf-1.txt")))
}

func TestPipelineAllShardsFailedClosesInput(t *testing.T) {
	create := func(string) (io.WriteCloser, error) { return nil, errors.New("read-only fs") }
	p, err := Start(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "none"),
		Shards:      2,
		BufferBytes: 8,
		QueueSize:   1,
		Create:      create,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return errors.Is(p.Send(context.Background(), "a.example.com"), ErrClosed)
	}, 5*time.Second, 10*time.Millisecond)

	p.Close()
	waitDone(t, p)
}

func TestPipelineStopsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()
	p, err := Start(ctx, Config{
		Path:        filepath.Join(dir, "stop"),
		Shards:      2,
		BufferBytes: 1 << 20,
		QueueSize:   4,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	send(t, p, names(4)...)
	cancel()

	require.Eventually(t, func() bool { return p.Running() == 0 }, 5*time.Second, 10*time.Millisecond)
	p.Close()
	waitDone(t, p)

	// whatever was consumed before the stop has been flushed
	var total int64
	for _, r := range p.Results() {
		assert.NoError(t, r.Err)
		total += r.Lines
		assert.Len(t, readLines(t, r.Path), int(r.Lines))
	}
	assert.LessOrEqual(t, total, int64(4))
}

func TestSendAfterCancelReturnsContextError(t *testing.T) {
	p, err := Start(context.Background(), Config{Shards: 1, BufferBytes: 8, QueueSize: 1}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() {
		p.Close()
		waitDone(t, p)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Send(ctx, "x.example.com"), context.Canceled)
}

func TestStartRejectsZeroBuffer(t *testing.T) {
	_, err := Start(context.Background(), Config{Shards: 1}, nil)
	assert.Error(t, err)
}
