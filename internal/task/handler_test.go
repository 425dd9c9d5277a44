package task

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-serverless/internal/auth"
)

type memoryStore struct {
	tasks  map[int64]Task
	nextID int64
}

func newMemoryStore(tasks ...Task) *memoryStore {
	s := &memoryStore{tasks: make(map[int64]Task), nextID: 1}
	for _, t := range tasks {
		s.tasks[t.ID] = t
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
	return s
}

func (s *memoryStore) ListByOwner(ctx context.Context, userID int64) ([]Task, error) {
	out := make([]Task, 0)
	for id := int64(1); id < s.nextID; id++ {
		if t, ok := s.tasks[id]; ok && t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memoryStore) Get(ctx context.Context, userID, id int64) (Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *memoryStore) Create(ctx context.Context, userID int64, input Input) (Task, error) {
	t := Task{ID: s.nextID, Title: input.Title, Description: input.Description, Due: input.Due,
		StatusID: input.StatusID, CategoryID: input.CategoryID, UserID: userID}
	s.tasks[t.ID] = t
	s.nextID++
	return t, nil
}

func (s *memoryStore) Update(ctx context.Context, userID, id int64, input Input) (Task, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return Task{}, err
	}
	t := Task{ID: id, Title: input.Title, Description: input.Description, Due: input.Due,
		StatusID: input.StatusID, CategoryID: input.CategoryID, UserID: userID}
	s.tasks[id] = t
	return t, nil
}

func (s *memoryStore) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	delete(s.tasks, id)
	return nil
}

const validBody = `{"title":"write report","description":"quarterly","due":"2026-03-15","status_id":1,"category_id":2}`

func serve(handler http.HandlerFunc, method, id, body string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/task/"+id, strings.NewReader(body))
	req.SetPathValue("id", id)
	if userID != 0 {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandler_ListTasks(t *testing.T) {
	h := NewHandler(newMemoryStore(Task{ID: 1, UserID: 1, Title: "mine"}, Task{ID: 2, UserID: 2, Title: "theirs"}))

	rec := serve(h.ListTasks, http.MethodGet, "", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "mine", tasks[0].Title)

	assert.Equal(t, http.StatusNoContent, serve(h.ListTasks, http.MethodGet, "", "", 3).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h.ListTasks, http.MethodGet, "", "", 0).Code)
}

func TestHandler_GetTaskOwnership(t *testing.T) {
	h := NewHandler(newMemoryStore(Task{ID: 1, UserID: 1}))

	assert.Equal(t, http.StatusOK, serve(h.GetTask, http.MethodGet, "1", "", 1).Code)
	assert.Equal(t, http.StatusNotFound, serve(h.GetTask, http.MethodGet, "1", "", 2).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h.GetTask, http.MethodGet, "0", "", 1).Code)
}

func TestHandler_CreateTask(t *testing.T) {
	store := newMemoryStore()
	h := NewHandler(store)

	rec := serve(h.CreateTask, http.MethodPost, "", validBody, 4)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(4), store.tasks[1].UserID, "owner defaults to the caller")

	withSelf := strings.Replace(validBody, `"category_id":2`, `"category_id":2,"user_id":4`, 1)
	assert.Equal(t, http.StatusCreated, serve(h.CreateTask, http.MethodPost, "", withSelf, 4).Code)

	withOther := strings.Replace(validBody, `"category_id":2`, `"category_id":2,"user_id":5`, 1)
	assert.Equal(t, http.StatusForbidden, serve(h.CreateTask, http.MethodPost, "", withOther, 4).Code)
}

func TestHandler_CreateTaskValidation(t *testing.T) {
	h := NewHandler(newMemoryStore())

	for name, body := range map[string]string{
		"blank title":       strings.Replace(validBody, `"write report"`, `"  "`, 1),
		"blank description": strings.Replace(validBody, `"quarterly"`, `""`, 1),
		"bad date":          strings.Replace(validBody, `"2026-03-15"`, `"2026-13-01"`, 1),
		"bad status":        strings.Replace(validBody, `"status_id":1`, `"status_id":4`, 1),
		"bad category":      strings.Replace(validBody, `"category_id":2`, `"category_id":0`, 1),
		"with id":           strings.Replace(validBody, `{`, `{"id":9,`, 1),
		"unknown field":     strings.Replace(validBody, `{`, `{"priority":1,`, 1),
		"not json":          `[`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, serve(h.CreateTask, http.MethodPost, "", body, 1).Code)
		})
	}
}

func TestHandler_UpdateTask(t *testing.T) {
	store := newMemoryStore(Task{ID: 1, UserID: 1, Title: "old"}, Task{ID: 2, UserID: 2, Title: "theirs"})
	h := NewHandler(store)

	rec := serve(h.UpdateTask, http.MethodPut, "1", validBody, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "write report", store.tasks[1].Title)

	mismatch := strings.Replace(validBody, `{`, `{"id":5,`, 1)
	assert.Equal(t, http.StatusBadRequest, serve(h.UpdateTask, http.MethodPut, "1", mismatch, 1).Code)

	assert.Equal(t, http.StatusNotFound, serve(h.UpdateTask, http.MethodPut, "2", validBody, 1).Code)
	assert.Equal(t, "theirs", store.tasks[2].Title)
}

func TestHandler_DeleteTask(t *testing.T) {
	store := newMemoryStore(Task{ID: 1, UserID: 1}, Task{ID: 2, UserID: 2})
	h := NewHandler(store)

	assert.Equal(t, http.StatusNotFound, serve(h.DeleteTask, http.MethodDelete, "2", "", 1).Code)
	assert.Contains(t, store.tasks, int64(2))
	assert.Equal(t, http.StatusNoContent, serve(h.DeleteTask, http.MethodDelete, "1", "", 1).Code)
	assert.NotContains(t, store.tasks, int64(1))
}
