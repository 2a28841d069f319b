package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/autoblog/agent/nodes"
)

func (o *Orchestrator) compilePublishCycleGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodex.NodeValidateRequest,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(ctx, in, o.now, o.cfg.Location, o.history)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeValidateRequest, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeSelectProduct,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SelectProduct(ctx, in, o.catalog)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeSelectProduct, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeResearch,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Research(ctx, in, o.models.Researcher(), o.cfg.Retry)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeResearch, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeDraft,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Draft(ctx, in, o.models.Generator(), o.cfg.Retry, o.hints)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeDraft, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeReview,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Review(ctx, in, o.reviewer, o.models.Generator(), o.cfg.Retry, o.hints, o.cfg.MaxRevisions)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeReview, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeSchedule,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Schedule(ctx, in, o.scheduler, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeSchedule, err)
	}

	if err := graph.AddLambdaNode(nodex.NodePublish,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.Publish(ctx, in, o.publisher, o.history, o.cfg.PublishTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodePublish, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeReject,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.Reject(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeReject, err)
	}

	edges := [][2]string{
		{compose.START, nodex.NodeValidateRequest},
		{nodex.NodeValidateRequest, nodex.NodeSelectProduct},
		{nodex.NodeSelectProduct, nodex.NodeResearch},
		{nodex.NodeResearch, nodex.NodeDraft},
		{nodex.NodeDraft, nodex.NodeReview},
		{nodex.NodeSchedule, nodex.NodePublish},
		{nodex.NodePublish, compose.END},
		{nodex.NodeReject, compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	afterReview := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			return nodex.RouteAfterReview(in)
		},
		map[string]bool{nodex.NodeSchedule: true, nodex.NodeReject: true},
	)
	if err := graph.AddBranch(nodex.NodeReview, afterReview); err != nil {
		return nil, fmt.Errorf("add branch after %s: %w", nodex.NodeReview, err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.publish_cycle"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
