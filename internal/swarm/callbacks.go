package swarm

// Callbacks is the optional observability sink for one operation. Every
// invocation is fire-and-forget: panics inside a callback are caught and
// swallowed so they can never corrupt orchestration control flow.
type Callbacks struct {
	// OnItemRetry fires before an item's unit is re-attempted, with the
	// 1-based attempt number that just failed.
	OnItemRetry func(itemIndex, attempt int, errMsg string)

	// OnWorkerComplete fires after each worker execution inside a
	// verification loop settles.
	OnWorkerComplete func(itemIndex, attempt int, result Result)

	// OnVerifierComplete fires after each verifier judgment settles.
	OnVerifierComplete func(itemIndex, attempt int, passed bool, reasoning string)

	// OnCandidateComplete fires as each bestOf candidate settles.
	OnCandidateComplete func(itemIndex, candidateIndex int, result Result)

	// OnJudgeComplete fires after a bestOf judge selects a winner.
	OnJudgeComplete func(itemIndex, winnerIndex int, reasoning string)
}

// emit invokes fn shielded from panics.
func emit(fn func()) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn()
}

func (c Callbacks) itemRetry(itemIndex, attempt int, errMsg string) {
	if c.OnItemRetry != nil {
		emit(func() { c.OnItemRetry(itemIndex, attempt, errMsg) })
	}
}

func (c Callbacks) workerComplete(itemIndex, attempt int, result Result) {
	if c.OnWorkerComplete != nil {
		emit(func() { c.OnWorkerComplete(itemIndex, attempt, result) })
	}
}

func (c Callbacks) verifierComplete(itemIndex, attempt int, passed bool, reasoning string) {
	if c.OnVerifierComplete != nil {
		emit(func() { c.OnVerifierComplete(itemIndex, attempt, passed, reasoning) })
	}
}

func (c Callbacks) candidateComplete(itemIndex, candidateIndex int, result Result) {
	if c.OnCandidateComplete != nil {
		emit(func() { c.OnCandidateComplete(itemIndex, candidateIndex, result) })
	}
}

func (c Callbacks) judgeComplete(itemIndex, winnerIndex int, reasoning string) {
	if c.OnJudgeComplete != nil {
		emit(func() { c.OnJudgeComplete(itemIndex, winnerIndex, reasoning) })
	}
}
