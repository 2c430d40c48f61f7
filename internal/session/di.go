package session

import (
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/foxseedlab/livescribe/internal/recognizer"
	"github.com/foxseedlab/livescribe/internal/transcoder"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		launcher := do.MustInvoke[transcoder.Launcher](i)
		factory := do.MustInvoke[recognizer.Factory](i)
		rec := do.MustInvoke[metrics.Recorder](i)
		return NewManager(cfg, launcher, factory, rec), nil
	})
}
