package DS

const (
	// ParallelThreshold is the minimum row count before a scan fans out.
	ParallelThreshold = 10000
	// MinPartitionSize is the minimum rows per worker partition.
	MinPartitionSize = 1000
)

// Span is the half-open row range [Start, End).
type Span struct {
	Start, End int
}

func (s Span) Len() int { return s.End - s.Start }

// NumWorkers returns how many workers rowCount rows deserve, capped at
// maxWorkers.
func NumWorkers(rowCount, maxWorkers int) int {
	if rowCount < ParallelThreshold {
		return 1
	}
	n := rowCount / MinPartitionSize
	if n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Partition splits rowCount rows into consecutive spans of at most chunk
// rows. The spans cover every row exactly once, in order.
func Partition(rowCount, chunk int) []Span {
	if chunk <= 0 {
		chunk = MinPartitionSize
	}
	spans := make([]Span, 0, (rowCount+chunk-1)/chunk)
	for start := 0; start < rowCount; start += chunk {
		spans = append(spans, Span{Start: start, End: min(start+chunk, rowCount)})
	}
	return spans
}
