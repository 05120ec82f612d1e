package executor

// PartitionOutcome is the result of one attempt at a partition: exactly one
// of outcomeDone, outcomeRetry or outcomeFailed.
type PartitionOutcome interface {
	isPartitionOutcome()
}

type outcomeDone struct {
	result TaskResult
}

type outcomeRetry struct {
	err        error
	retryCount int
}

type outcomeFailed struct {
	err        error
	retryCount int
}

func (outcomeDone) isPartitionOutcome() {}
func (outcomeRetry) isPartitionOutcome() {}
func (outcomeFailed) isPartitionOutcome() {}

// classify applies the retry rule: a failed attempt bumps the retry count
// and the partition fails for good once the count exceeds the limit.
func classify(res TaskResult, err error, retryCount, retryLimit int) PartitionOutcome {
	if err == nil {
		return outcomeDone{result: res}
	}
	retryCount++
	if retryCount > retryLimit {
		return outcomeFailed{err: err, retryCount: retryCount}
	}
	return outcomeRetry{err: err, retryCount: retryCount}
}
