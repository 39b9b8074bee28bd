package swarm

// OperationKind identifies which orchestration operation produced a result.
// It is a closed enum; every handler switches exhaustively over it.
type OperationKind string

const (
	KindMap             OperationKind = "map"
	KindFilter          OperationKind = "filter"
	KindReduce          OperationKind = "reduce"
	KindBestOf          OperationKind = "best_of"
	KindBestOfCandidate OperationKind = "best_of_candidate"
	KindBestOfJudge     OperationKind = "best_of_judge"
	KindVerifier        OperationKind = "verifier"
)

// String returns the string representation of the OperationKind.
func (k OperationKind) String() string {
	return string(k)
}

// IsValid checks if the OperationKind is one of the defined constants.
func (k OperationKind) IsValid() bool {
	switch k {
	case KindMap, KindFilter, KindReduce, KindBestOf,
		KindBestOfCandidate, KindBestOfJudge, KindVerifier:
		return true
	default:
		return false
	}
}
