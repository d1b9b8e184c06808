package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/2beens/cfdnsadmin/internal/accounts"
)

func (s *IntegrationTestSuite) TestAddAndListAccounts() {
	token := s.login()

	status, body := s.addAccount(token, "acct1", "Main", validCFToken)
	s.Require().Equal(http.StatusOK, status, string(body))
	s.NotContains(string(body), validCFToken)

	var added struct {
		Success bool           `json:"success"`
		Data    accountSummary `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(body, &added))
	s.True(added.Success)
	s.Equal("acct1", added.Data.ID)
	s.Equal("Main", added.Data.Name)
	s.False(added.Data.CreatedAt.IsZero())
	s.Equal(1, s.cloudflareCalls("/user/tokens/verify"))

	status, body = s.request("GET", "/accounts", token, nil)
	s.Require().Equal(http.StatusOK, status)
	s.NotContains(string(body), validCFToken)
	s.NotContains(string(body), `"token"`)

	list := s.listAccounts(token)
	s.Require().Len(list, 1)
	s.Equal("acct1", list[0].ID)
	s.Equal("Main", list[0].Name)

	// the secret is persisted, only on disk
	fileContent, err := os.ReadFile(s.accountsFile)
	s.Require().NoError(err)
	s.Contains(string(fileContent), validCFToken)
	record, ok := accounts.NewStore(s.accountsFile).Get("acct1")
	s.Require().True(ok)
	s.Equal(validCFToken, record.Token)

	status, body = s.addAccount(token, "acct1", "Again", validCFToken2)
	s.Equal(http.StatusConflict, status)
	s.Equal("Account already exists", s.decodeError(body).Error)
}

func (s *IntegrationTestSuite) TestAddAccount_InvalidUpstreamToken() {
	token := s.login()

	status, body := s.addAccount(token, "acct1", "Main", "not-a-cloudflare-token")
	s.Equal(http.StatusBadRequest, status)
	errResp := s.decodeError(body)
	s.Contains(errResp.Error, "API token is invalid")
	s.NotContains(string(body), "not-a-cloudflare-token")

	s.Empty(s.listAccounts(token))
	s.Equal(0, accounts.NewStore(s.accountsFile).Len())
}

func (s *IntegrationTestSuite) TestAddAccount_MissingFields() {
	token := s.login()

	status, body := s.request("POST", "/accounts", token, map[string]string{"id": "acct1", "name": "Main"})
	s.Equal(http.StatusBadRequest, status)
	s.Equal("Missing required fields: id, name, token", s.decodeError(body).Error)
	s.Equal(0, s.cloudflareCalls("/user/tokens/verify"))
}

func (s *IntegrationTestSuite) TestAddAccount_RequiresSession() {
	status, body := s.addAccount("", "acct1", "Main", validCFToken)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("Access token required", s.decodeError(body).Error)
	s.Equal(0, s.cloudflareCalls("/user/tokens/verify"))
}

func (s *IntegrationTestSuite) TestDeleteAccount() {
	token := s.login()

	status, body := s.request("DELETE", "/accounts/doesnotexist", token, nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("Account not found", s.decodeError(body).Error)

	status, _ = s.addAccount(token, "acct1", "Main", validCFToken)
	s.Require().Equal(http.StatusOK, status)

	s.deleteAccount(token, "acct1")
	s.Empty(s.listAccounts(token))

	status, _ = s.request("DELETE", "/accounts/acct1", token, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *IntegrationTestSuite) TestConcurrentAdds() {
	token := s.login()

	const n = 8
	var wg sync.WaitGroup
	statuses := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfToken := validCFToken
			if i%2 == 1 {
				cfToken = validCFToken2
			}
			statuses[i], _ = s.addAccount(token, fmt.Sprintf("acct-%d", i), fmt.Sprintf("Account %d", i), cfToken)
		}(i)
	}
	wg.Wait()

	for i, status := range statuses {
		s.Equal(http.StatusOK, status, "account %d", i)
	}

	ids := make(map[string]bool)
	for _, account := range s.listAccounts(token) {
		ids[account.ID] = true
	}
	s.Len(ids, n)
	for i := 0; i < n; i++ {
		s.True(ids[fmt.Sprintf("acct-%d", i)])
	}
	s.Equal(n, accounts.NewStore(s.accountsFile).Len())
}
