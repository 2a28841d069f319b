package orchestratornode

import (
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

const (
	NodeValidateRequest = "validate_request"
	NodeSelectProduct   = "select_product"
	NodeResearch        = "research"
	NodeDraft           = "draft"
	NodeReview          = "review"
	NodeSchedule        = "schedule"
	NodePublish         = "publish"
	NodeReject          = "reject"
)

// Reject ends a cycle whose draft never passed review. Nothing is published.
func Reject(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, ErrNilState
	}
	return finalize(in, contractx.OutcomeRejected), nil
}

// RouteAfterReview picks the branch that follows the review node.
func RouteAfterReview(in *GraphState) (string, error) {
	if in == nil {
		return "", ErrNilState
	}
	return routeAfterReview(in), nil
}

func finalize(in *GraphState, outcome contractx.CycleOutcome) GraphOutput {
	in.Outcome = outcome
	return GraphOutput{Result: contractx.CycleResult{
		CycleID:   in.CycleID,
		Outcome:   outcome,
		Product:   in.Product,
		Draft:     in.Draft,
		Verdict:   in.Verdict,
		Research:  in.Research,
		PublishAt: in.Article.PublishAt,
		PostID:    in.PostID,
		DryRun:    in.DryRun,
		Topic:     in.Topic,
	}}
}
