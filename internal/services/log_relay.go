package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lukas-pastva/argo-workflows-ui/internal/argo"
)

// ErrPodNotResolved is returned when a node cannot be mapped to a pod. No
// upstream log call is made in that case.
var ErrPodNotResolved = errors.New("could not resolve pod for node")

const relayBufferSize = 32 << 10

// LogSink receives a relayed log stream. Exactly one of Open or Reject is
// called, and Write is only called after Open. Write must not retain p.
type LogSink interface {
	// Open starts the response with the upstream content type.
	Open(contentType string) error
	// Reject ends the response with the upstream status and no body.
	Reject(status int) error
	// Write forwards one chunk. An error means the client is gone.
	Write(p []byte) (int, error)
}

// LogOptions select which logs to stream. PodName wins over NodeID. The
// string filters are forwarded verbatim when non-empty.
type LogOptions struct {
	Follow       bool
	Container    string
	NodeID       string
	PodName      string
	SinceTime    string
	SinceSeconds string
	TailLines    string
	Timestamps   string
	Previous     string
}

// DefaultLogOptions follows the main container.
func DefaultLogOptions() LogOptions {
	return LogOptions{Follow: true}
}

// StreamLogs relays a workflow's logs into sink chunk by chunk, in the order
// received and without buffering or interpretation.
//
// Errors are only returned before anything reached the sink: an unresolvable
// node (ErrPodNotResolved), a failed workflow fetch during resolution, or a
// transport failure opening the stream. An upstream status error on the log
// call itself is handed to sink.Reject. Once the stream is open, upstream
// failures simply end it. Cancelling ctx, or a failing sink write, closes
// the upstream connection.
func (s *WorkflowService) StreamLogs(ctx context.Context, workflowName string, sink LogSink, opts LogOptions) error {
	podName := opts.PodName
	if podName == "" && opts.NodeID != "" {
		resolved, err := s.ResolvePodName(ctx, workflowName, opts.NodeID)
		if err != nil {
			return err
		}
		if resolved == "" {
			return fmt.Errorf("%w: workflow %s, node %s", ErrPodNotResolved, workflowName, opts.NodeID)
		}
		podName = resolved
	}

	container := opts.Container
	if container == "" {
		container = s.opts.DefaultContainer
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.client.OpenLogStream(ctx, workflowName, argo.LogQuery{
		PodName:      podName,
		Container:    container,
		Follow:       opts.Follow,
		SinceTime:    opts.SinceTime,
		SinceSeconds: opts.SinceSeconds,
		TailLines:    opts.TailLines,
		Timestamps:   opts.Timestamps,
		Previous:     opts.Previous,
	})
	if err != nil {
		if status, ok := argo.StatusCode(err); ok {
			s.logger.Warn("upstream rejected log stream", "workflow", workflowName, "pod", podName, "status", status)
			return sink.Reject(status)
		}
		return err
	}
	defer stream.Body.Close()

	// unblock a pending Read as soon as the caller goes away
	stop := context.AfterFunc(ctx, func() { _ = stream.Body.Close() })
	defer stop()

	if err := sink.Open(stream.ContentType); err != nil {
		return err
	}

	done := s.metrics.StreamStarted(ctx)
	relayed := s.pipe(ctx, stream.Body, sink)
	done(relayed)

	s.logger.Debug("log stream ended", "workflow", workflowName, "pod", podName, "bytes", relayed)
	return nil
}

// pipe copies src into sink until either side fails and returns the number
// of bytes delivered.
func (s *WorkflowService) pipe(ctx context.Context, src io.Reader, sink LogSink) int64 {
	buf := make([]byte, relayBufferSize)
	var relayed int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			written, werr := sink.Write(buf[:n])
			relayed += int64(written)
			if werr != nil {
				s.logger.Debug("log client went away", "error", werr)
				return relayed
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Warn("upstream log stream failed mid-stream", "error", err)
			}
			return relayed
		}
	}
}
