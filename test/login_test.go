package test

import (
	"encoding/json"
	"net/http"
	"time"
)

func (s *IntegrationTestSuite) TestLogin() {
	cases := map[string]struct {
		loginReq           loginRequest
		expectedStatusCode int
		expectedError      string
	}{
		"good creds": {
			loginReq:           loginRequest{Username: testUsername, Password: testPassword},
			expectedStatusCode: http.StatusOK,
		},
		"bad password": {
			loginReq:           loginRequest{Username: testUsername, Password: "wrong"},
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      "Invalid username or password",
		},
		"unknown user": {
			loginReq:           loginRequest{Username: "root", Password: testPassword},
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      "Invalid username or password",
		},
		"missing password": {
			loginReq:           loginRequest{Username: testUsername},
			expectedStatusCode: http.StatusBadRequest,
			expectedError:      "Username and password are required",
		},
	}

	for name, tc := range cases {
		s.Run(name, func() {
			status, body := s.request("POST", "/auth/login", "", tc.loginReq)
			s.Equal(tc.expectedStatusCode, status)

			if tc.expectedError != "" {
				errResp := s.decodeError(body)
				s.Equal(tc.expectedError, errResp.Error)
				s.NotContains(string(body), `"token"`)
				return
			}

			var resp loginResponse
			s.Require().NoError(json.Unmarshal(body, &resp))
			s.NotEmpty(resp.Token)
			s.Equal(testUsername, resp.User.Username)
			s.Equal("admin", resp.User.Role)
		})
	}
}

func (s *IntegrationTestSuite) TestVerifySession() {
	token := s.login()

	status, body := s.request("GET", "/auth/verify", token, nil)
	s.Require().Equal(http.StatusOK, status)
	var resp struct {
		Valid bool `json:"valid"`
		User  struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	s.Require().NoError(json.Unmarshal(body, &resp))
	s.True(resp.Valid)
	s.Equal(testUsername, resp.User.Username)
	s.Equal("admin", resp.User.Role)

	status, body = s.request("GET", "/auth/verify", "", nil)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("Access token required", s.decodeError(body).Error)

	status, body = s.request("GET", "/auth/verify", "garbage", nil)
	s.Equal(http.StatusForbidden, status)
	s.Equal("Invalid or expired token", s.decodeError(body).Error)
}

func (s *IntegrationTestSuite) TestExpiredSession() {
	fresh := s.sessionToken(time.Now().Add(-30*time.Minute), time.Hour)
	status, _ := s.request("GET", "/accounts", fresh, nil)
	s.Equal(http.StatusOK, status)

	expired := s.sessionToken(time.Now().Add(-2*time.Hour), time.Hour)
	for _, path := range []string{"/accounts", "/accounts/acct1/zones", "/auth/verify"} {
		status, body := s.request("GET", path, expired, nil)
		s.Equal(http.StatusForbidden, status, path)
		s.Equal("Invalid or expired token", s.decodeError(body).Error, path)
	}
}

func (s *IntegrationTestSuite) TestOpenEndpoints() {
	status, body := s.request("GET", "/health", "", nil)
	s.Equal(http.StatusOK, status)
	s.Contains(string(body), `"success":true`)

	status, body = s.request("GET", "/version", "", nil)
	s.Equal(http.StatusOK, status)
	s.Contains(string(body), "test-version-info")
}
