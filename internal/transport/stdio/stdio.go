// Package stdio serves the bridge protocol as line-delimited JSON.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/codex-k8s/command-bridge/internal/dispatch"
	"github.com/codex-k8s/command-bridge/internal/protocol"
	"github.com/codex-k8s/command-bridge/internal/transport"
)

const readBufferSize = 64 * 1024

// Server reads one protocol.Request per line and writes one
// protocol.Response per request. Requests run concurrently, so responses may
// arrive out of order and are matched by ID.
type Server struct {
	// Dispatcher executes requests.
	Dispatcher *dispatch.Dispatcher
	// Logger is used for structured logging.
	Logger *slog.Logger
	// MaxFrame overrides transport.MaxFrameBytes.
	MaxFrame int

	mu  sync.Mutex
	enc *json.Encoder
}

type frame struct {
	line    []byte
	tooLong bool
}

// Serve processes frames from r until EOF or ctx ends. On EOF it waits for
// in-flight requests before returning. An oversized frame is answered with an
// ArgumentError and reading continues with the next line.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.enc = json.NewEncoder(w)
	limit := s.MaxFrame
	if limit <= 0 {
		limit = transport.MaxFrameBytes
	}

	reader := bufio.NewReaderSize(r, readBufferSize)
	frames := make(chan frame)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			line, tooLong, err := readFrame(reader, limit)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
			select {
			case frames <- frame{line: line, tooLong: tooLong}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var inflight sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				inflight.Wait()
				select {
				case err := <-readErr:
					return err
				default:
					return ctx.Err()
				}
			}
			if f.tooLong {
				s.write(dispatch.Failure(transport.TooLong(limit)).Response(""))
				continue
			}
			s.handle(ctx, f.line, &inflight)
		}
	}
}

// readFrame returns the next line without its line ending. A line longer
// than limit is consumed up to its newline and reported with tooLong set.
func readFrame(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(bytes.TrimRight(line, "\r\n")) > limit {
				tooLong, line = true, nil
			}
		}
		switch {
		case err == nil:
			return bytes.TrimRight(line, "\r\n"), tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(line) > 0 || tooLong):
			return bytes.TrimRight(line, "\r\n"), tooLong, nil
		default:
			return nil, false, err
		}
	}
}

func (s *Server) handle(ctx context.Context, line []byte, inflight *sync.WaitGroup) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	req, ferr := transport.DecodeRequest(line)
	if ferr != nil {
		s.write(dispatch.Failure(ferr).Response(req.ID))
		return
	}

	deferred := s.Dispatcher.Submit(ctx, dispatch.Request{ID: req.ID, Command: req.Command, Args: req.Args})
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		<-deferred.Done()
		out, _ := deferred.Outcome()
		s.write(out.Response(deferred.ID))
	}()
}

func (s *Server) write(resp protocol.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(resp); err != nil && s.Logger != nil {
		s.Logger.Error("write response", "id", resp.ID, "error", err)
	}
}
