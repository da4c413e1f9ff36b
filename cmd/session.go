package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/gregLibert/sd-card/internal/config"
	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdio"
	"github.com/gregLibert/sd-card/pkg/simsd"
	"github.com/tebeka/atexit"
)

// session is a running driver on top of the simulated slot.
type session struct {
	drv     *sdio.Driver
	card    *simsd.Card
	backend simsd.Backend
	rec     *sdio.Recorder
	trace   string

	once sync.Once
	err  error
}

func openBackend(cfg *config.Config) (simsd.Backend, error) {
	if err := cfg.RequireImage(); err != nil {
		return nil, err
	}

	img, err := simsd.OpenImage(cfg.Image.Path, cfg.Image.ReadOnly)
	if errors.Is(err, fs.ErrNotExist) && cfg.Image.CreateSectors > 0 {
		logging.Info(logging.ComponentCLI, "creating image", "path", cfg.Image.Path, "sectors", cfg.Image.CreateSectors)
		img, err = simsd.CreateImage(cfg.Image.Path, cfg.Image.CreateSectors)
	}
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	if img.SectorCount() == 0 {
		img.Close()
		return nil, fmt.Errorf("image %s is smaller than one sector", cfg.Image.Path)
	}
	return img, nil
}

// openSession starts the driver. The session is closed by Close or, at the
// latest, when the process exits through atexit.
func openSession(cfg *config.Config) (*session, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	profile := simsd.DefaultProfile()
	profile.DevicePath = cfg.Device.Path
	profile.RCA = cfg.Card.RCA
	profile.CID.ProductName = cfg.Card.Product
	profile.CID.Serial = cfg.Card.Serial
	card := simsd.New(backend, profile)

	s := &session{card: card, backend: backend, trace: cfg.Trace.Path}
	if s.trace != "" {
		s.rec = sdio.NewRecorder()
	}

	s.drv = sdio.New(card, sdio.Options{
		DevicePath: cfg.Device.Path,
		HeapSize:   cfg.Device.HeapSize,
		Recorder:   s.rec,
	})
	atexit.Register(func() { _ = s.Close() })

	if err := s.drv.Startup(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("card bring-up: %w", err)
	}
	logging.Debug(logging.ComponentCLI, "session open", "session", s.drv.ID().String())
	return s, nil
}

// Close shuts the driver down, writes the trace and closes the image.
// Only the first call does anything.
func (s *session) Close() error {
	s.once.Do(func() {
		_ = s.drv.Shutdown()

		var errs []error
		if s.rec != nil {
			errs = append(errs, writeTrace(s.trace, s.rec.Trace()))
		}
		errs = append(errs, s.backend.Sync(), s.backend.Close())
		s.err = errors.Join(errs...)
		if s.err != nil {
			logging.Warn(logging.ComponentCLI, "session close", "error", s.err)
		}
	})
	return s.err
}

func writeTrace(path string, trace sdio.Trace) error {
	raw, err := trace.MarshalTLV()
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	logging.Info(logging.ComponentCLI, "trace written", "path", path, "transactions", len(trace))
	return nil
}
