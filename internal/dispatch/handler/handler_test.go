package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newDecisionContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	id := uuid.NewString()
	c.Request = httptest.NewRequest(http.MethodPost, "/approvals/"+id+"/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: id}}
	return c, w
}

// A request that reaches the decision handlers without an authenticated
// identity must be rejected with 401 before the service is consulted.
func TestDecideWithoutIdentityUnauthorized(t *testing.T) {
	h := New(nil, nil)

	c, w := newDecisionContext(t)
	h.Approve(c)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("approve status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	c, w = newDecisionContext(t)
	h.Reject(c)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reject status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
