//go:build opus

package transcoder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/transcoder"
	"github.com/hraban/opus"
)

const (
	opusSampleRate = 48000
	opusChannels   = 1
	// 120ms is the longest duration a single opus packet can carry.
	opusMaxFrameSamples = opusSampleRate * 120 / 1000
	opusPacketQueue     = 64
)

type OpusConfig struct {
	SampleRate int
	BlockBytes int
}

type OpusLauncher struct {
	cfg OpusConfig
}

// NewOpusLauncher decodes raw opus packets in process, one packet per chunk,
// for clients that send unframed opus instead of a webm stream.
func NewOpusLauncher(cfg OpusConfig) transcoder.Launcher {
	return &OpusLauncher{cfg: cfg}
}

func (l *OpusLauncher) Launch(ctx context.Context, sessionID string) (transcoder.Process, error) {
	dec, err := opus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("%w: opus decoder: %w", transcoder.ErrStart, err)
	}
	p := &opusProcess{
		sessionID:  sessionID,
		dec:        dec,
		framer:     audio.NewFramer(l.cfg.BlockBytes),
		resampler:  audio.NewResampler(opusSampleRate, l.cfg.SampleRate),
		packets:    make(chan []byte, opusPacketQueue),
		frames:     make(chan []byte, framesBuffer),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go p.run()
	context.AfterFunc(ctx, func() {
		_ = p.Stop()
	})
	slog.Info("opus transcoder started", "session_id", sessionID)
	return p, nil
}

type opusProcess struct {
	sessionID string
	dec       *opus.Decoder
	framer    *audio.Framer
	resampler *audio.Resampler

	packets chan []byte
	frames  chan []byte
	stopCh  chan struct{}
	done    chan struct{}
	err     error

	inputClosed bool
	closeInOnce sync.Once
	stopOnce    sync.Once
}

func (p *opusProcess) Write(chunk []byte) error {
	if p.inputClosed {
		return fmt.Errorf("%w: decoder input already closed", transcoder.ErrIO)
	}
	select {
	case <-p.done:
		return fmt.Errorf("%w: opus decoder stopped", transcoder.ErrIO)
	default:
	}
	select {
	case p.packets <- chunk:
		return nil
	case <-p.done:
		return fmt.Errorf("%w: opus decoder stopped", transcoder.ErrIO)
	}
}

// CloseInput shares the single-writer contract of Write.
func (p *opusProcess) CloseInput() error {
	p.closeInOnce.Do(func() {
		p.inputClosed = true
		close(p.packets)
	})
	return nil
}

func (p *opusProcess) Frames() <-chan []byte {
	return p.frames
}

func (p *opusProcess) Err() error {
	return p.err
}

func (p *opusProcess) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.done
	return nil
}

func (p *opusProcess) run() {
	defer close(p.done)
	defer close(p.frames)
	pcm := make([]int16, opusMaxFrameSamples*opusChannels)
	for {
		select {
		case <-p.stopCh:
			return
		case pkt, ok := <-p.packets:
			if !ok {
				for _, block := range p.framer.Push(audio.Int16ToBytes(p.resampler.Flush())) {
					if !p.deliver(block) {
						return
					}
				}
				if rest := p.framer.Flush(); rest != nil {
					p.deliver(rest)
				}
				return
			}
			if len(pkt) == 0 {
				continue
			}
			n, err := p.dec.Decode(pkt, pcm)
			if err != nil {
				p.err = fmt.Errorf("%w: decode opus packet: %w", transcoder.ErrIO, err)
				return
			}
			samples := p.resampler.Push(pcm[:n*opusChannels])
			for _, block := range p.framer.Push(audio.Int16ToBytes(samples)) {
				if !p.deliver(block) {
					return
				}
			}
		}
	}
}

func (p *opusProcess) deliver(frame []byte) bool {
	select {
	case p.frames <- frame:
		return true
	case <-p.stopCh:
		return false
	}
}
