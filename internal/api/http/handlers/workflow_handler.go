package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-engine/internal/api/dto"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/service"
)

// WorkflowHandler exposes rule evaluation and assignee lookup.
type WorkflowHandler struct {
	workflow   *service.WorkflowService
	assignment *service.AssignmentService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(workflow *service.WorkflowService, assignment *service.AssignmentService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow, assignment: assignment}
}

// Evaluate POST /tickets/:id/workflow/evaluate. Nothing is persisted.
func (h *WorkflowHandler) Evaluate(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	eval, err := h.workflow.Evaluate(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkflowEvaluation(eval)})
}

// Apply POST /tickets/:id/workflow/apply.
func (h *WorkflowHandler) Apply(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	eval, err := h.workflow.Apply(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkflowEvaluation(eval)})
}

// ListRules GET /workflow/rules.
func (h *WorkflowHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.workflow.ListRules(c.UserContext())
	if err != nil {
		return err
	}
	if rules == nil {
		rules = []domain.WorkflowRule{}
	}
	return c.JSON(fiber.Map{"data": rules})
}

// ListAssignees GET /assignees?tier=l2.
func (h *WorkflowHandler) ListAssignees(c *fiber.Ctx) error {
	var tier *domain.Level
	if raw := c.Query("tier"); raw != "" {
		level := domain.Level(raw)
		tier = &level
	}
	loads, err := h.assignment.ListCandidateLoads(c.UserContext(), tier)
	if err != nil {
		return err
	}
	items := make([]dto.AssigneeResponse, 0, len(loads))
	for _, l := range loads {
		items = append(items, dto.NewAssignee(l))
	}
	return c.JSON(fiber.Map{"data": items})
}
