package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/user"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	usr := createUser(t, "Awe", "awe", "awe@test.cd", "passpass", user.StudentRoles, true)
	naughty := createUser(t, "Naughty", "naughty", "naughty@test.cd", "passpass", user.StudentRoles, false)

	tests := []httpTest{
		{
			name: "empty body", method: http.MethodPost, path: "/v1/users/login",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, echoapi.LoginRequest{Username: naughty.Username, Password: "passpass"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("login with username", func(t *testing.T) {
		req, rec := newRequest(
			http.MethodPost, "/v1/users/login",
			marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "passpass"}),
		)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var resp echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("expected a signed token")
		}

		// the issued token authenticates requests
		req, rec = newAuthRequest(http.MethodGet, "/v1/enrollments", resp.Token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("token rejected! code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("login with email", func(t *testing.T) {
		req, rec := newRequest(
			http.MethodPost, "/v1/users/login",
			marchallObj(t, echoapi.LoginRequest{Username: usr.Email, Password: "passpass"}),
		)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_userApi_adminOnlyEndpoints(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	student := createUser(t, "Student", "student", "student@test.cd", "", user.StudentRoles, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	tests := []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "non-admin forbidden", method: http.MethodGet, path: "/v1/users", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "admin list", method: http.MethodGet, path: "/v1/users", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, admin, student),
		},
		{
			name: "roles", method: http.MethodGet, path: "/v1/users/roles", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
