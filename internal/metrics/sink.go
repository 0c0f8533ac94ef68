// Package metrics exposes the engine's progress events as Prometheus
// gauges, the optional --metrics-addr sink named in SPEC_FULL.md §4.11.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink implements pyramidtiff.ProgressSink by recording each event into a
// small set of gauges registered against a caller-supplied registerer.
type Sink struct {
	baseProgress  prometheus.Gauge
	baseTotal     prometheus.Gauge
	layerProgress *prometheus.GaugeVec
	layerTotal    *prometheus.GaugeVec
	currentLayer  prometheus.Gauge
}

// NewSink registers the pyramid's gauges against reg and returns a Sink
// ready to be installed as the engine's ProgressSink.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		baseProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pyramidtiff_base_tiles_done", Help: "base layer tiles written so far",
		}),
		baseTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pyramidtiff_base_tiles_total", Help: "total base layer tiles",
		}),
		layerProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pyramidtiff_layer_tiles_done", Help: "overview layer tiles written so far",
		}, []string{"layer"}),
		layerTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pyramidtiff_layer_tiles_total", Help: "total tiles in the current overview layer",
		}, []string{"layer"}),
		currentLayer: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pyramidtiff_current_layer", Help: "overview layer index currently being written",
		}),
	}
	reg.MustRegister(s.baseProgress, s.baseTotal, s.layerProgress, s.layerTotal, s.currentLayer)
	return s
}

func (s *Sink) StartBase(tileCount int) { s.baseTotal.Set(float64(tileCount)) }

func (s *Sink) BaseProgress(done, total int) { s.baseProgress.Set(float64(done)) }

func (s *Sink) CompleteBase(tileCount int, totalBytes int64) { s.baseProgress.Set(float64(tileCount)) }

func (s *Sink) StartPyramid(layerCount int) {}

func (s *Sink) StartLayer(layer, tileCount, w, h int) {
	s.currentLayer.Set(float64(layer))
	s.layerTotal.WithLabelValues(labelOf(layer)).Set(float64(tileCount))
}

func (s *Sink) LayerProgress(layer, done, total int) {
	s.layerProgress.WithLabelValues(labelOf(layer)).Set(float64(done))
}

func (s *Sink) CompleteLayer(layer, tileCount int, bytes int64) {
	s.layerProgress.WithLabelValues(labelOf(layer)).Set(float64(tileCount))
}

func (s *Sink) CompletePyramid(layerCount int) {}

func labelOf(layer int) string { return strconv.Itoa(layer) }
