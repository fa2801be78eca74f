package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/creatorkit/maestro/pkg/eventbus"
	"github.com/creatorkit/maestro/pkg/events"
	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
	"github.com/creatorkit/maestro/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// RunService is the dispatcher surface the API consumes.
type RunService interface {
	SubmitRequest(ctx context.Context, workflowName string, params map[string]any, epoch int64) (string, error)
	RunStatus(runID string) (*models.WorkflowRun, error)
}

// HealthService produces health snapshots.
type HealthService interface {
	Snapshot(ctx context.Context) models.HealthSnapshot
}

// RecommendationService ranks posting slots for a platform.
type RecommendationService interface {
	Recommend(ctx context.Context, platform models.Platform, topN int) ([]models.SlotRecommendation, error)
}

const defaultTopN = 3

type APIHandlers struct {
	runs            RunService
	health          HealthService
	recommendations RecommendationService
	engagement      persistence.EngagementRepository
	registry        *registry.Registry
	bus             eventbus.EventPublisher
	validator       *validator.Validate
}

func NewAPIHandlers(
	runs RunService,
	health HealthService,
	recommendations RecommendationService,
	engagement persistence.EngagementRepository,
	reg *registry.Registry,
	bus eventbus.EventPublisher,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		runs:            runs,
		health:          health,
		recommendations: recommendations,
		engagement:      engagement,
		registry:        reg,
		bus:             bus,
		validator:       validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"workflows": h.registry.All(),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Workflow name is required")
	}

	definition, err := h.registry.Get(name)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) SubmitRun(c fiber.Ctx) error {
	var req SubmitRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	epoch := req.Epoch
	if epoch == 0 {
		epoch = time.Now().Unix()
	}

	runID, err := h.runs.SubmitRequest(c.Context(), req.Workflow, req.Params, epoch)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(SubmitRunResponse{
		RunID: runID,
		Epoch: epoch,
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runs.RunStatus(id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(run)
}

// HealthCheck reports the aggregate snapshot. Critical and unknown states
// surface as HTTP 503 so load balancers can react.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	snapshot := h.health.Snapshot(c.Context())

	httpStatus := http.StatusOK
	if snapshot.Status == models.HealthCritical || snapshot.Status == models.HealthUnknown {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(snapshot)
}

func (h *APIHandlers) GetRecommendations(c fiber.Ctx) error {
	platform := models.Platform(c.Params("platform"))
	if !platform.Valid() {
		return badRequest(c, "Unknown platform: "+string(platform))
	}

	topN := defaultTopN

	if topStr := c.Query("top"); topStr != "" {
		parsed, err := strconv.Atoi(topStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "Invalid top parameter: "+topStr)
		}

		topN = parsed
	}

	recommendations, err := h.recommendations.Recommend(c.Context(), platform, topN)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"platform":        platform,
		"recommendations": recommendations,
	})
}

func (h *APIHandlers) RecordEngagement(c fiber.Ctx) error {
	platform := models.Platform(c.Params("platform"))
	if !platform.Valid() {
		return badRequest(c, "Unknown platform: "+string(platform))
	}

	var req EngagementSampleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	sample := models.EngagementSample{
		Platform:   platform,
		Weekday:    time.Weekday(req.Weekday),
		Hour:       req.Hour,
		Rate:       req.Rate,
		ObservedAt: time.Now().UTC(),
	}

	if err := h.engagement.Append(c.Context(), sample); err != nil {
		return internalError(c, err)
	}

	if h.bus != nil {
		event := events.SampleRecorded{
			BaseEvent: events.NewBaseEvent(events.SampleRecordedEvent, ""),
			Sample:    sample,
		}

		// Best effort; the sample is already durable.
		_ = h.bus.Publish(c.Context(), string(platform), event)
	}

	return c.SendStatus(fiber.StatusCreated)
}

// TriggerWebhook accepts an external event and runs the named workflow with
// the request body as trigger data.
func (h *APIHandlers) TriggerWebhook(c fiber.Ctx) error {
	name := c.Params("workflow")
	if name == "" {
		return badRequest(c, "Workflow name is required")
	}

	var params map[string]any

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&params); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	epoch := time.Now().Unix()

	runID, err := h.runs.SubmitRequest(c.Context(), name, params, epoch)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(SubmitRunResponse{
		RunID: runID,
		Epoch: epoch,
	})
}
