package blockproc

import "github.com/eth2031/beacon/metrics"

// processorMetrics mirrors the teacher's BlockProcessorMetrics shape
// (pkg/sync/block_processor.go): counters per outcome, a queue-depth gauge,
// and a processing-duration histogram.
type processorMetrics struct {
	queueDepth      *metrics.Gauge
	blocksStored    *metrics.Counter
	blocksInvalid   *metrics.Counter
	blocksOrphaned  *metrics.Counter
	blocksUnviable  *metrics.Counter
	blocksDuplicate *metrics.Counter
	processTime     *metrics.Histogram
	fcuCalls        *metrics.Counter
}

func newProcessorMetrics() *processorMetrics {
	return &processorMetrics{
		queueDepth:      metrics.NewGauge("blockproc_queue_depth"),
		blocksStored:    metrics.NewCounter("blockproc_blocks_stored"),
		blocksInvalid:   metrics.NewCounter("blockproc_blocks_invalid"),
		blocksOrphaned:  metrics.NewCounter("blockproc_blocks_orphaned"),
		blocksUnviable:  metrics.NewCounter("blockproc_blocks_unviable"),
		blocksDuplicate: metrics.NewCounter("blockproc_blocks_duplicate"),
		processTime:     metrics.NewHistogram("blockproc_process_seconds"),
		fcuCalls:        metrics.NewCounter("blockproc_forkchoice_updated_calls"),
	}
}

func (m *processorMetrics) record(r Result) {
	switch r {
	case ResultOk:
		m.blocksStored.Inc()
	case ResultInvalid:
		m.blocksInvalid.Inc()
	case ResultMissingParent:
		m.blocksOrphaned.Inc()
	case ResultUnviableFork:
		m.blocksUnviable.Inc()
	case ResultDuplicate:
		m.blocksDuplicate.Inc()
	}
}
