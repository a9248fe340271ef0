package assess_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gradeflow/internal/assess"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/grade", r.URL.Path)

		var req assess.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "grade kindly", req.GradingCriteria)
		assert.Equal(t, "my essay", req.TaskSubmitted)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(assess.Response{Feedback: "well done", Grade: 8.5}) //nolint:errcheck
	}))
	defer server.Close()

	client := assess.NewClient(server.URL)
	res, err := client.Grade(context.Background(), assess.Request{
		GradingCriteria: "grade kindly",
		TaskSubmitted:   "my essay",
	})
	require.NoError(t, err)
	assert.Equal(t, "well done", res.Feedback)
	assert.Equal(t, 8.5, res.Grade)
}

func TestGradeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := assess.NewClient(server.URL).Grade(context.Background(), assess.Request{})
	assert.ErrorContains(t, err, "500")
}

func TestGradeUnreachableService(t *testing.T) {
	_, err := assess.NewClient("http://127.0.0.1:1").Grade(context.Background(), assess.Request{})
	assert.ErrorContains(t, err, "error calling assessment service")
}
