package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

type accountSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// request sends a JSON request to the api and returns the status and raw body.
func (s *IntegrationTestSuite) request(method, path, token string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, s.endpoint+path, reader)
	s.Require().NoError(err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, respBytes
}

func (s *IntegrationTestSuite) login() string {
	status, body := s.request("POST", "/auth/login", "", loginRequest{
		Username: testUsername,
		Password: testPassword,
	})
	s.Require().Equal(http.StatusOK, status, string(body))

	var resp loginResponse
	s.Require().NoError(json.Unmarshal(body, &resp))
	s.Require().NotEmpty(resp.Token)
	return resp.Token
}

// sessionToken forges a token signed with the suite secret, issued at issuedAt.
func (s *IntegrationTestSuite) sessionToken(issuedAt time.Time, expiry time.Duration) string {
	claims := jwt.MapClaims{
		"username": testUsername,
		"role":     "admin",
		"iat":      issuedAt.Unix(),
		"exp":      issuedAt.Add(expiry).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	s.Require().NoError(err)
	return token
}

func (s *IntegrationTestSuite) listAccounts(token string) []accountSummary {
	status, body := s.request("GET", "/accounts", token, nil)
	s.Require().Equal(http.StatusOK, status, string(body))

	var resp struct {
		Success bool             `json:"success"`
		Data    []accountSummary `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(body, &resp))
	s.Require().True(resp.Success)
	return resp.Data
}

func (s *IntegrationTestSuite) addAccount(token, id, name, cfToken string) (int, []byte) {
	return s.request("POST", "/accounts", token, map[string]string{
		"id":    id,
		"name":  name,
		"token": cfToken,
	})
}

func (s *IntegrationTestSuite) deleteAccount(token, id string) {
	status, body := s.request("DELETE", fmt.Sprintf("/accounts/%s", id), token, nil)
	s.Require().Equal(http.StatusOK, status, string(body))
}

func (s *IntegrationTestSuite) decodeError(body []byte) errorResponse {
	var resp errorResponse
	s.Require().NoError(json.Unmarshal(body, &resp), string(body))
	s.Require().False(resp.Success)
	return resp
}
