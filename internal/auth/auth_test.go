package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "test-key"

func TestIssueAndParse(t *testing.T) {
	token, err := Issue(Principal{Subject: "u1", Role: RoleTeacher, TeacherID: 7}, "schoolms", key, time.Minute)
	require.NoError(t, err)

	claims, err := Parse(token, key, "schoolms")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, RoleTeacher, claims.Role)
	assert.Equal(t, int64(7), claims.TeacherID)
	assert.False(t, claims.Admin())
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	_, err = Parse(token, "other-key", "schoolms")
	assert.Error(t, err)
	_, err = Parse(token, key, "someone-else")
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	token, err := Issue(Principal{Subject: "u1", Role: RoleAdmin}, "", key, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(token, key, "")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/staff", Bearer(key, "schoolms"), RequireRole(RoleTeacher), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Role)
	})

	token := func(role string) string {
		tok, err := Issue(Principal{Subject: "u", Role: role}, "schoolms", key, time.Minute)
		require.NoError(t, err)
		return "Bearer " + tok
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"teacher", token(RoleTeacher), http.StatusOK},
		{"admin", token(RoleAdmin), http.StatusOK},
		{"device", token(RoleDevice), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/staff", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
