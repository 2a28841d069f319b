package orchestratornode

import contractx "github.com/tanpawarit/autoblog/agent/contract"

const DefaultMaxRevisions = 2

// shouldRevise reports whether a failed draft gets another attempt.
func shouldRevise(d contractx.Draft, v contractx.Verdict, maxRevisions int) bool {
	if v.Passed {
		return false
	}
	return d.Revision < maxRevisions
}

func routeAfterReview(in *GraphState) string {
	if in.Outcome == contractx.OutcomeApproved {
		return NodeSchedule
	}
	return NodeReject
}
