package function

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/go-tasks/internal/delivery"
	"github.com/adanyl0v/go-tasks/internal/policy"
	"github.com/adanyl0v/go-tasks/internal/services"
	"github.com/adanyl0v/go-tasks/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type sequentialIDs struct{ next int }

func (g *sequentialIDs) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("task-%d", g.next), nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	service := services.NewTaskService(
		zerolog.Nop(),
		memory.NewTaskRepository(),
		policy.New(policy.DefaultLimits()),
		&fixedClock{now: time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)},
		&sequentialIDs{},
	)
	return NewRouter(zerolog.Nop(), service)
}

func body(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func errorBody(t *testing.T, resp Response) delivery.ErrorResponse {
	t.Helper()
	errResp, ok := resp.Body.(delivery.ErrorResponse)
	require.True(t, ok, "unexpected body %#v", resp.Body)
	return errResp
}

func TestRouter_Lifecycle(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	resp := r.Invoke(ctx, Request{
		Operation: OperationCreateTask,
		UserID:    "u1",
		Body:      body(t, map[string]string{"description": " Buy milk ", "priority": "MEDIUM"}),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := resp.Body.(delivery.TaskResponse)
	assert.Equal(t, "task-1", created.ID)
	assert.Equal(t, "Buy milk", created.Description)
	assert.Equal(t, "OPEN", created.Status)

	resp = r.Invoke(ctx, Request{Operation: OperationGetTaskByID, UserID: "u1", TaskID: created.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = r.Invoke(ctx, Request{
		Operation: OperationUpdateTask,
		UserID:    "u1",
		TaskID:    created.ID,
		Body:      body(t, map[string]string{"status": "COMPLETED"}),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "COMPLETED", resp.Body.(delivery.TaskResponse).Status)

	resp = r.Invoke(ctx, Request{
		Operation: OperationUpdateTask,
		UserID:    "u1",
		TaskID:    created.ID,
		Body:      body(t, map[string]string{"description": "x"}),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "task_immutable", errorBody(t, resp).Code)

	resp = r.Invoke(ctx, Request{Operation: OperationDeleteTask, UserID: "u2", TaskID: created.ID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = r.Invoke(ctx, Request{Operation: OperationDeleteTask, UserID: "u1", TaskID: created.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = r.Invoke(ctx, Request{Operation: OperationGetTaskByID, UserID: "u1", TaskID: created.ID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "task not found", errorBody(t, resp).Error)
}

func TestRouter_ListTasks(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	resp := r.Invoke(ctx, Request{Operation: OperationListTasksByUser, UserID: "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := resp.Body.(delivery.TaskPageResponse)
	assert.Empty(t, page.Tasks)
	assert.NotNil(t, page.Tasks)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 20, page.Size)

	size := 1000
	resp = r.Invoke(ctx, Request{Operation: OperationListTasksByUser, UserID: "u1", Size: &size})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100, resp.Body.(delivery.TaskPageResponse).Size)

	negative := -1
	resp = r.Invoke(ctx, Request{Operation: OperationListTasksByUser, UserID: "u1", Page: &negative})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_BadRequests(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name    string
		req     Request
		wantMsg string
	}{
		{
			name:    "missing operation",
			req:     Request{UserID: "u1"},
			wantMsg: "operation is required",
		},
		{
			name:    "missing user",
			req:     Request{Operation: OperationListTasksByUser},
			wantMsg: "userId is required",
		},
		{
			name:    "unknown operation",
			req:     Request{Operation: "archiveTask", UserID: "u1"},
			wantMsg: `unknown operation: "archiveTask"`,
		},
		{
			name:    "missing task id",
			req:     Request{Operation: OperationGetTaskByID, UserID: "u1"},
			wantMsg: "taskId is required",
		},
		{
			name:    "missing body",
			req:     Request{Operation: OperationCreateTask, UserID: "u1"},
			wantMsg: "request body is required",
		},
		{
			name: "missing description",
			req: Request{
				Operation: OperationCreateTask,
				UserID:    "u1",
				Body:      json.RawMessage(`{"priority":"LOW"}`),
			},
			wantMsg: "description is required",
		},
		{
			name: "unknown priority",
			req: Request{
				Operation: OperationCreateTask,
				UserID:    "u1",
				Body:      json.RawMessage(`{"description":"Buy milk","priority":"SOON"}`),
			},
			wantMsg: `invalid priority: "SOON"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := r.Invoke(context.Background(), tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			errResp := errorBody(t, resp)
			assert.Equal(t, tt.wantMsg, errResp.Error)
			assert.Equal(t, "invalid_input", errResp.Code)
		})
	}
}

func TestRouter_QuotaViolation(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		resp := r.Invoke(ctx, Request{
			Operation: OperationCreateTask,
			UserID:    "u1",
			Body:      body(t, map[string]string{"description": fmt.Sprintf("Urgent %d", i), "priority": "HIGH"}),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := r.Invoke(ctx, Request{
		Operation: OperationCreateTask,
		UserID:    "u1",
		Body:      body(t, map[string]string{"description": "Urgent 6", "priority": "HIGH"}),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "high_priority_quota_exceeded", errorBody(t, resp).Code)
}

func TestRouter_UserIDIsNormalizedBeforeLengthCheck(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	userID := strings.Repeat("u", 100)
	resp := r.Invoke(ctx, Request{
		Operation: OperationCreateTask,
		UserID:    "  " + userID + "  ",
		Body:      body(t, map[string]string{"description": "Buy milk", "priority": "LOW"}),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)
	assert.Equal(t, userID, resp.Body.(delivery.TaskResponse).UserID)

	resp = r.Invoke(ctx, Request{Operation: OperationListTasksByUser, UserID: userID + "u"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "user id cannot exceed 100 characters", errorBody(t, resp).Error)

	resp = r.Invoke(ctx, Request{Operation: OperationListTasksByUser, UserID: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "user id is required", errorBody(t, resp).Error)
}
