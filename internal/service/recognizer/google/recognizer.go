// Package google provides a recognizer backed by Google Cloud
// Speech-to-Text streaming recognition.
package google

import (
	"context"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"emergency-escalation-service/internal/service/recognizer"
)

// Config holds streaming recognition parameters.
type Config struct {
	LanguageCode string
	SampleRateHz int32
}

// Recognizer implements recognizer.Recognizer over a Google streaming
// session. Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Recognizer struct {
	client *speech.Client
	cfg    Config

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	active bool
}

// New creates a Google recognizer.
func New(ctx context.Context, cfg Config) (*Recognizer, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = 16000
	}
	return &Recognizer{client: c, cfg: cfg}, nil
}

// Start opens a streaming session, sends the recognition config and
// spawns the receive loop. Calling Start while active is a no-op.
func (r *Recognizer) Start(ctx context.Context, cb recognizer.Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := r.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: r.cfg.SampleRateHz,
					LanguageCode:    r.cfg.LanguageCode,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		cancel()
		return err
	}

	r.stream = stream
	r.cancel = cancel
	r.active = true

	go r.listen(stream, cb)
	return nil
}

// SendAudio forwards audio bytes into the active stream.
func (r *Recognizer) SendAudio(audio []byte) error {
	r.mu.Lock()
	stream := r.stream
	r.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Stop cancels the stream. The receive loop observes the cancellation
// and emits OnEnd; no error is surfaced for a deliberate stop.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	r.active = false
	if r.stream != nil {
		_ = r.stream.CloseSend()
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

// listen receives responses until the stream ends, translating gRPC
// termination causes into the recognizer error taxonomy. A Canceled
// status is a deliberate stop, not an error.
func (r *Recognizer) listen(stream speechpb.Speech_StreamingRecognizeClient, cb recognizer.Callback) {
	defer func() {
		r.mu.Lock()
		r.active = false
		r.stream = nil
		r.mu.Unlock()
		cb.OnEnd()
	}()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			switch status.Code(err) {
			case codes.Canceled:
				// Deliberate Stop racing with teardown.
			case codes.OutOfRange:
				// Stream aged out with no speech.
				cb.OnError(recognizer.ErrCodeNoSpeech)
			default:
				cb.OnError(recognizer.ErrCodeNetwork)
			}
			return
		}

		for _, res := range resp.Results {
			if len(res.Alternatives) == 0 {
				continue
			}
			cb.OnResult(res.Alternatives[0].Transcript, res.IsFinal)
		}
	}
}

// Close releases the underlying client.
func (r *Recognizer) Close() error {
	_ = r.Stop()
	return r.client.Close()
}
