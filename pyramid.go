package pyramidtiff

import (
	"context"

	"go.uber.org/zap"
)

// Rip implements C9, the orchestrator: it loads the manifest src already
// parsed, computes the output geometry, drives the base-layer writer and
// the reduced-resolution generator in sequence, and forwards progress
// events to sink (NoopSink{} if nil).
//
// out must support both writing (tile bytes and IFD directories, appended
// sequentially with occasional seek-back patches) and reading (the
// reduced-resolution generator reopens the same file for tiled random
// access); an *os.File satisfies both.
func Rip(ctx context.Context, src Source, out ReadWriteSeeker, cfg Config, sink ProgressSink, log *zap.Logger) error {
	if sink == nil {
		sink = NoopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	manifest := src.Manifest()
	if err := manifest.Validate(); err != nil {
		return err
	}
	log.Info("manifest loaded",
		zap.Int("width", manifest.Width), zap.Int("height", manifest.Height),
		zap.Int("tile_size", manifest.TileSize), zap.Int("overlap", manifest.Overlap))

	bigtiff := chooseBigTIFF(manifest.Width, manifest.Height)
	log.Debug("container policy", zap.Bool("bigtiff", bigtiff))

	container, err := newContainer(out, bigtiff)
	if err != nil {
		return err
	}

	grid := NewOutputGrid(manifest.Width, manifest.Height, cfg.OutputTileSize)
	filler := newRegionFiller(manifest, src)
	enc := newTileEncoder(cfg)

	if err := writeBaseLayer(ctx, container, enc, filler, grid, cfg, sink); err != nil {
		return err
	}
	log.Info("base layer complete", zap.Int("tiles", grid.TileCount()))

	if err := generateOverviews(ctx, out, container, cfg, sink); err != nil {
		return err
	}
	log.Info("pyramid complete")
	return nil
}
