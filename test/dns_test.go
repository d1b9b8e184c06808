package test

import (
	"encoding/json"
	"net/http"
)

func (s *IntegrationTestSuite) TestAccountZonesAndRecords() {
	token := s.login()
	status, _ := s.addAccount(token, "acct1", "Main", validCFToken)
	s.Require().Equal(http.StatusOK, status)

	status, body := s.request("GET", "/accounts/acct1/zones", token, nil)
	s.Require().Equal(http.StatusOK, status, string(body))
	var zones struct {
		Success bool `json:"success"`
		Data    []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(body, &zones))
	s.True(zones.Success)
	s.Require().Len(zones.Data, 1)
	s.Equal("example.com", zones.Data[0].Name)

	status, body = s.request("GET", "/accounts/acct1/zones/zone1/dns_records", token, nil)
	s.Require().Equal(http.StatusOK, status)
	s.JSONEq(`{"success":true,"data":[]}`, string(body))

	status, body = s.request("POST", "/accounts/acct1/zones/zone1/dns_records", token, map[string]any{
		"type":    "TXT",
		"name":    "example.com",
		"content": "v=spf1 -all",
		"ttl":     1,
	})
	s.Require().Equal(http.StatusOK, status)
	s.JSONEq(`{"success":true,"data":{"id":"rec-new","type":"TXT","name":"example.com"}}`, string(body))

	// upstream 404 is mirrored with a flat error envelope
	status, body = s.request("DELETE", "/accounts/acct1/zones/zone2/dns_records/rec1", token, nil)
	s.Equal(http.StatusNotFound, status)
	errResp := s.decodeError(body)
	s.Equal("Could not route", errResp.Error)
	s.Equal("check the zone id", errResp.Message)

	status, body = s.request("GET", "/accounts/unknown/zones", token, nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("Account not found", s.decodeError(body).Error)
}

func (s *IntegrationTestSuite) TestLegacyZonesUseFirstAccount() {
	token := s.login()

	status, body := s.request("GET", "/zones", token, nil)
	s.Equal(http.StatusBadRequest, status)
	s.Contains(s.decodeError(body).Error, "No Cloudflare accounts configured")

	status, _ = s.addAccount(token, "acct1", "Main", validCFToken)
	s.Require().Equal(http.StatusOK, status)

	status, _ = s.request("GET", "/zones", token, nil)
	s.Equal(http.StatusOK, status)
	s.Equal(1, s.cloudflareCalls("/zones"))
}
