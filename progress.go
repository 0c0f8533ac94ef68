package pyramidtiff

import "go.uber.org/zap"

// ProgressSink receives the engine's outbound progress events (§6): one
// call per event, in the fixed order start_base, base_progress*,
// complete_base, start_pyramid, (start_layer, layer_progress*,
// complete_layer)*, complete_pyramid.
type ProgressSink interface {
	StartBase(tileCount int)
	BaseProgress(done, total int)
	CompleteBase(tileCount int, totalBytes int64)
	StartPyramid(layerCount int)
	StartLayer(layer, tileCount, w, h int)
	LayerProgress(layer, done, total int)
	CompleteLayer(layer, tileCount int, bytes int64)
	CompletePyramid(layerCount int)
}

// NoopSink discards every event; it is the default when the caller does
// not install one.
type NoopSink struct{}

func (NoopSink) StartBase(int)                    {}
func (NoopSink) BaseProgress(int, int)            {}
func (NoopSink) CompleteBase(int, int64)           {}
func (NoopSink) StartPyramid(int)                 {}
func (NoopSink) StartLayer(int, int, int, int)     {}
func (NoopSink) LayerProgress(int, int, int)       {}
func (NoopSink) CompleteLayer(int, int, int64)     {}
func (NoopSink) CompletePyramid(int)              {}

// LogSink reports every progress event as a structured log line, following
// the teacher's pervasive use of zap for operational narration rather than a
// bespoke event bus. The per-tile base_progress and layer_progress events are
// logged at debug level, all other events at info level.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) StartBase(tileCount int) {
	s.Log.Info("start_base", zap.Int("tile_count", tileCount))
}

func (s LogSink) BaseProgress(done, total int) {
	s.Log.Debug("base_progress", zap.Int("done", done), zap.Int("total", total))
}

func (s LogSink) CompleteBase(tileCount int, totalBytes int64) {
	s.Log.Info("complete_base", zap.Int("tile_count", tileCount), zap.Int64("total_bytes", totalBytes))
}

func (s LogSink) StartPyramid(layerCount int) {
	s.Log.Info("start_pyramid", zap.Int("layer_count", layerCount))
}

func (s LogSink) StartLayer(layer, tileCount, w, h int) {
	s.Log.Info("start_layer", zap.Int("layer", layer), zap.Int("tile_count", tileCount), zap.Int("w", w), zap.Int("h", h))
}

func (s LogSink) LayerProgress(layer, done, total int) {
	s.Log.Debug("layer_progress", zap.Int("layer", layer), zap.Int("done", done), zap.Int("total", total))
}

func (s LogSink) CompleteLayer(layer, tileCount int, bytes int64) {
	s.Log.Info("complete_layer", zap.Int("layer", layer), zap.Int("tile_count", tileCount), zap.Int64("bytes", bytes))
}

func (s LogSink) CompletePyramid(layerCount int) {
	s.Log.Info("complete_pyramid", zap.Int("layer_count", layerCount))
}

// multiSink fans one event out to several sinks. Nothing in this package
// installs one; the rip command composes its sinks with its own copy.
type multiSink []ProgressSink

func (m multiSink) StartBase(n int) {
	for _, s := range m {
		s.StartBase(n)
	}
}
func (m multiSink) BaseProgress(done, total int) {
	for _, s := range m {
		s.BaseProgress(done, total)
	}
}
func (m multiSink) CompleteBase(n int, bytes int64) {
	for _, s := range m {
		s.CompleteBase(n, bytes)
	}
}
func (m multiSink) StartPyramid(n int) {
	for _, s := range m {
		s.StartPyramid(n)
	}
}
func (m multiSink) StartLayer(layer, n, w, h int) {
	for _, s := range m {
		s.StartLayer(layer, n, w, h)
	}
}
func (m multiSink) LayerProgress(layer, done, total int) {
	for _, s := range m {
		s.LayerProgress(layer, done, total)
	}
}
func (m multiSink) CompleteLayer(layer, n int, bytes int64) {
	for _, s := range m {
		s.CompleteLayer(layer, n, bytes)
	}
}
func (m multiSink) CompletePyramid(n int) {
	for _, s := range m {
		s.CompletePyramid(n)
	}
}
