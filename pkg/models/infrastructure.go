package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// --- Account Models ---

// Contract is an entry of GET /api/v0/contract/. The camera service origin is
// advertised under isp_org.
type Contract struct {
	ISPOrg struct {
		CamsServer struct {
			URL string `json:"url"`
		} `json:"cams_server"`
	} `json:"isp_org"`
}

// --- Contract Info Models ---

type AllContractsResponse struct {
	Status string `json:"status"`
	Detail struct {
		Contracts []ContractRef `json:"contracts"`
	} `json:"detail"`
}

type ContractRef struct {
	ContractID int    `json:"contract_id"`
	BillingID  int    `json:"billing_id"`
	Title      string `json:"title,omitempty"`
}

// ContractInfoRequest always carries exactly one contract.
type ContractInfoRequest struct {
	Contracts []ContractRef `json:"contracts"`
}

type ContractInfoResponse struct {
	Status string           `json:"status"`
	Detail []ContractDetail `json:"detail"`
}

type ContractDetail struct {
	ContractID    int             `json:"contract_id"`
	ContractTitle string          `json:"contract_title"`
	Address       ContractAddress `json:"contract_address"`
	Balance       Balance         `json:"balance"`
	Services      []Service       `json:"services"`
}

type ContractAddress struct {
	City   string `json:"city"`
	Street string `json:"street"`
	House  string `json:"house"`
	Flat   string `json:"flat"`
}

// String joins the non-empty parts of the address.
func (a ContractAddress) String() string {
	var parts []string
	for _, p := range []string{a.City, a.Street, a.House, a.Flat} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Balance struct {
	InputSaldo  float64 `json:"input_saldo"`
	Charge      float64 `json:"charge"`
	Payment     float64 `json:"payment"`
	Current     float64 `json:"current"`
	OutputSaldo float64 `json:"output_saldo"`
	Recommended float64 `json:"recommended"`
	Limit       float64 `json:"limit"`
	ExpiryDate  *int64  `json:"expiry_date"`
}

type Service struct {
	ID        FlexString `json:"service_id"`
	Title     string     `json:"service_title_name"`
	Status    FlexString `json:"service_status"`
	PeriodEnd *int64     `json:"period_end"`
	Cost      float64    `json:"cost"`
	DateFrom  FlexString `json:"date_from"`
	Tariff    struct {
		Title string     `json:"title"`
		Speed FlexString `json:"speed"`
	} `json:"tariff"`
}

// FlexString accepts a JSON string, number or null.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(b)
	return nil
}
