package replay

import "fmt"

// OpRange represents an inclusive range of 1-based op numbers.
type OpRange struct {
	From uint64
	To   uint64
}

// SplitRange splits an op range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]OpRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to op must be >= from op")
	}

	ranges := make([]OpRange, 0, (to-from)/batchSize+1)
	start := from
	for {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, OpRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
