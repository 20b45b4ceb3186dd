package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-engine/internal/auth"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/observability"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	"github.com/spec-kit/helpdesk-engine/internal/service"
)

var (
	carol = domain.User{ID: "c-1", Name: "Carol", Role: domain.RoleClient, Active: true}
	alice = domain.User{ID: "u-1", Name: "Alice", Role: domain.RoleL1, Active: true}
	bob   = domain.User{ID: "u-2", Name: "Bob", Role: domain.RoleL1, Active: true}
	dana  = domain.User{ID: "u-3", Name: "Dana", Role: domain.RoleL2, Active: true}
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	users := repository.NewMemoryUserRepository(carol, alice, bob, dana)
	tickets := repository.NewMemoryTicketRepository()
	rules := repository.NewMemoryRuleRepository(domain.WorkflowRule{
		ID: "r-critical", Name: "Escalate critical", Priority: 10, IsActive: true,
		Conditions: []domain.Condition{{Field: "priority", Operator: domain.OperatorEquals, Value: "critical"}},
		Actions:    domain.Actions{domain.EscalateAction{Target: domain.EscalateNextLevel}},
	})
	rt := service.Runtime{
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Metrics:    metrics,
		Logger:     logger,
	}
	assignment := service.NewAssignmentService(service.AssignmentDependencies{UserRepo: users, TicketRepo: tickets, Runtime: rt})
	ticketSvc := service.NewTicketService(service.TicketDependencies{TicketRepo: tickets, UserRepo: users, Assignment: assignment, Runtime: rt})
	workflowSvc := service.NewWorkflowService(service.WorkflowDependencies{
		TicketRepo: tickets, RuleRepo: rules, UserRepo: users, Assignment: assignment, MaxCapacity: 15, Runtime: rt,
	})

	tokens := auth.NewTokenManager("test-secret", 5)
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-engine", "test", nil, nil),
		Tickets:        handlers.NewTicketsHandler(ticketSvc),
		Workflow:       handlers.NewWorkflowHandler(workflowSvc, assignment),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, users),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) do(t *testing.T, user *domain.User, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		token, _, err := s.tokens.GenerateToken(*user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nil, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, nil, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, _ = s.do(t, nil, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestTicketsRequireAuth(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nil, http.MethodGet, "/tickets", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, &carol, http.MethodPost, "/tickets", `{"title":"Laptop will not boot","priority":"high"}`)
	require.Equal(t, http.StatusCreated, status)
	id := data(body)["id"].(string)
	assert.Equal(t, "unassigned", data(body)["status"])

	status, body = s.do(t, &carol, http.MethodPost, "/tickets/"+id+"/take", "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.do(t, &alice, http.MethodPost, "/tickets/"+id+"/resolve", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, &alice, http.MethodPost, "/tickets/"+id+"/take", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "in-progress", data(body)["status"])
	assert.Equal(t, alice.ID, data(body)["assigned_to"])

	status, body = s.do(t, &bob, http.MethodPost, "/tickets/"+id+"/take", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = s.do(t, &alice, http.MethodPost, "/tickets/"+id+"/escalate", `{"target_level":"l2","reason":"hardware fault"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "l2", data(body)["current_level"])
	assert.Equal(t, dana.ID, data(body)["assigned_to"])
	assert.Len(t, data(body)["escalation_history"], 1)

	status, _ = s.do(t, &dana, http.MethodPost, "/tickets/"+id+"/escalate", `{"target_level":"l1","reason":"oops"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, &dana, http.MethodPost, "/tickets/"+id+"/start", "")
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, &dana, http.MethodPost, "/tickets/"+id+"/resolve", `{"note":"replaced disk"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "resolved", data(body)["status"])
	assert.NotNil(t, data(body)["resolved_date"])

	status, body = s.do(t, &carol, http.MethodPost, "/tickets/"+id+"/close", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "closed", data(body)["status"])

	status, body = s.do(t, &carol, http.MethodGet, "/tickets/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data(body)["activity_log"], 6)
}

func TestWorkflowEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(t, &carol, http.MethodPost, "/tickets", `{"title":"Site down","priority":"critical"}`)
	id := data(body)["id"].(string)

	status, body := s.do(t, &alice, http.MethodPost, "/tickets/"+id+"/workflow/evaluate", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "r-critical", data(body)["applied_rule_id"])
	assert.Equal(t, false, data(body)["persisted"])

	status, body = s.do(t, &alice, http.MethodPost, "/tickets/"+id+"/workflow/apply", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(body)["persisted"])

	status, body = s.do(t, &dana, http.MethodGet, "/tickets/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "l2", data(body)["current_level"])
	assert.Equal(t, []any{"l1", "l2"}, data(body)["available_to_levels"])

	status, body = s.do(t, &alice, http.MethodGet, "/workflow/rules", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = s.do(t, &alice, http.MethodGet, "/assignees?tier=l1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, _ = s.do(t, &carol, http.MethodGet, "/assignees", "")
	assert.Equal(t, http.StatusForbidden, status)
}
