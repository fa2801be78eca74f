// Package content builds workflow bodies from pipeline definitions: trigger
// data is mapped into generation params, content is produced through the
// generation collaborator, and results are pushed through the publishing
// collaborator. Every collaborator call goes through a circuit breaker keyed
// by collaborator name.
package content

import (
	"context"
	"fmt"
	"log/slog"

	jsonata "github.com/blues/jsonata-go"
	"github.com/creatorkit/maestro/pkg/breaker"
	"github.com/creatorkit/maestro/pkg/collaborator"
	"github.com/creatorkit/maestro/pkg/models"
)

// BodyFunc is one workflow body execution: it runs to completion or returns
// the error that failed the run.
type BodyFunc func(ctx context.Context, run *models.WorkflowRun) error

// Pipeline wires collaborators and breakers into executable workflow bodies.
type Pipeline struct {
	generator collaborator.Generator
	publisher collaborator.Publisher
	breakers  *breaker.Registry
	logger    *slog.Logger
}

func NewPipeline(
	generator collaborator.Generator,
	publisher collaborator.Publisher,
	breakers *breaker.Registry,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		generator: generator,
		publisher: publisher,
		breakers:  breakers,
		logger:    logger.With("module", "content_pipeline"),
	}
}

// Body returns the executable body for a workflow definition. Steps run in
// declaration order; a generate step's content feeds later publish steps for
// the same platform.
func (p *Pipeline) Body(definition models.WorkflowDefinition) BodyFunc {
	return func(ctx context.Context, run *models.WorkflowRun) error {
		logger := p.logger.With("workflow", definition.Name, "run_id", run.ID)

		params, err := p.mapInput(definition, run.TriggerData)
		if err != nil {
			return fmt.Errorf("input mapping failed for %s: %w", definition.Name, err)
		}

		generated := make(map[models.Platform]*collaborator.Content)

		for i, step := range definition.Steps {
			switch step.Kind {
			case models.StepGenerate:
				content, err := p.generate(ctx, step, params)
				if err != nil {
					return fmt.Errorf("step %d (generate %s): %w", i, step.Platform, err)
				}

				generated[step.Platform] = content
				logger.InfoContext(ctx, "Generated content",
					"platform", step.Platform, "content_id", content.ID)
			case models.StepPublish:
				content, ok := generated[step.Platform]
				if !ok {
					return fmt.Errorf("step %d: no generated content for platform %s", i, step.Platform)
				}

				result, err := p.publish(ctx, step.Platform, content)
				if err != nil {
					return fmt.Errorf("step %d (publish %s): %w", i, step.Platform, err)
				}

				logger.InfoContext(ctx, "Published content",
					"platform", step.Platform, "post_id", result.PostID)
			default:
				return fmt.Errorf("step %d: unknown step kind %q", i, step.Kind)
			}
		}

		return nil
	}
}

// GeneratorBreakerName is the breaker guarding content generation for a
// platform. Health reporting uses the same names to attribute open breakers
// to workflows.
func GeneratorBreakerName(platform models.Platform) string {
	return "generator:" + string(platform)
}

// PublisherBreakerName is the breaker guarding publishing for a platform.
func PublisherBreakerName(platform models.Platform) string {
	return "publisher:" + string(platform)
}

func (p *Pipeline) generate(ctx context.Context, step models.PipelineStep, mapped map[string]any) (*collaborator.Content, error) {
	name := GeneratorBreakerName(step.Platform)

	params := make(map[string]any, len(step.Params)+len(mapped))
	for k, v := range step.Params {
		params[k] = v
	}

	for k, v := range mapped {
		params[k] = v
	}

	if tmpl, ok := params["prompt_template"].(string); ok {
		prompt, err := RenderPrompt(tmpl, params)
		if err != nil {
			return nil, fmt.Errorf("prompt template: %w", err)
		}

		params["prompt"] = prompt
	}

	var content *collaborator.Content

	err := p.breakers.Get(name).Do(ctx, func(ctx context.Context) error {
		result, err := p.generator.Generate(ctx, collaborator.GenerateRequest{
			Platform:    step.Platform,
			ContentType: step.ContentType,
			Params:      params,
		})
		if err != nil {
			return collaborator.NewError(name, "generate", err)
		}

		content = result

		return nil
	})
	if err != nil {
		return nil, err
	}

	return content, nil
}

func (p *Pipeline) publish(ctx context.Context, platform models.Platform, content *collaborator.Content) (*collaborator.PostResult, error) {
	name := PublisherBreakerName(platform)

	var result *collaborator.PostResult

	err := p.breakers.Get(name).Do(ctx, func(ctx context.Context) error {
		posted, err := p.publisher.Publish(ctx, platform, content)
		if err != nil {
			return collaborator.NewError(name, "publish", err)
		}

		result = posted

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// mapInput applies the definition's JSONata expression to the trigger data.
// Without a mapping the trigger data passes through unchanged.
func (p *Pipeline) mapInput(definition models.WorkflowDefinition, triggerData map[string]any) (map[string]any, error) {
	if definition.InputMapping == "" {
		return triggerData, nil
	}

	expr, err := jsonata.Compile(definition.InputMapping)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonata expression: %w", err)
	}

	data := map[string]any{}
	if triggerData != nil {
		data = triggerData
	}

	result, err := expr.Eval(data)
	if err != nil {
		return nil, fmt.Errorf("jsonata evaluation: %w", err)
	}

	if mapped, ok := result.(map[string]any); ok {
		return mapped, nil
	}

	return map[string]any{"value": result}, nil
}
