package transcoder

import (
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/transcoder"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcoder.Launcher, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.Transcoder == config.TranscoderOpus {
			return NewOpusLauncher(OpusConfig{
				SampleRate: c.PCMSampleRate,
				BlockBytes: c.PCMBlockBytes,
			}), nil
		}
		args := c.FFmpegArgs
		if len(args) == 0 {
			args = DefaultFFmpegArgs(c.PCMSampleRate)
		}
		return NewFFmpegLauncher(FFmpegConfig{
			Path:       c.FFmpegPath,
			Args:       args,
			BlockBytes: c.PCMBlockBytes,
			StopGrace:  c.TranscoderStopGrace,
		}), nil
	})
}
