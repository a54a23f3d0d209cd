package settings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context) (*Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Settings), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, s *Settings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func TestHandler_GetSettings(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything).Return(&Settings{ID: 1, ChunkSize: 500, ChunkOverlap: 50}, nil)

	h := NewHandler(NewService(repo))
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	rec := httptest.NewRecorder()

	h.GetSettings(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"chunk_size":500,"chunk_overlap":50}}`, rec.Body.String())
}

func TestHandler_UpdateSettings(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(s *Settings) bool {
		return s.ChunkSize == 800 && s.ChunkOverlap == 100
	})).Return(nil)

	h := NewHandler(NewService(repo))
	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"chunk_size":800,"chunk_overlap":100}`))
	rec := httptest.NewRecorder()

	h.UpdateSettings(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestHandler_UpdateSettings_Invalid(t *testing.T) {
	repo := new(MockRepository)
	h := NewHandler(NewService(repo))

	for name, body := range map[string]string{
		"not json":            `{oops`,
		"zero size":           `{"chunk_size":0,"chunk_overlap":0}`,
		"overlap equals size": `{"chunk_size":100,"chunk_overlap":100}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(body))
			rec := httptest.NewRecorder()

			h.UpdateSettings(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		})
	}

	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestHandler_GetSettings_RepoFailure(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything).Return(nil, errors.New("db down"))

	h := NewHandler(NewService(repo))
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	rec := httptest.NewRecorder()

	h.GetSettings(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
