package client

import (
	"context"

	"github.com/go-resty/resty/v2"

	"ucams-cli/pkg/models"
)

// Contracts returns the account contracts. The first one advertises the
// camera service origin.
func (c *PortalClient) Contracts(ctx context.Context) ([]models.Contract, error) {
	var respData []models.Contract

	// GET /api/v0/contract/
	_, err := c.send(ctx, "get contract info", func(r *resty.Request) (*resty.Response, error) {
		respData = nil
		return r.SetResult(&respData).Get("/api/v0/contract/")
	})
	if err != nil {
		return nil, err
	}

	return respData, nil
}

// AllContracts lists every contract with its billing id.
func (c *PortalClient) AllContracts(ctx context.Context) (*models.AllContractsResponse, error) {
	var respData models.AllContractsResponse

	// GET /api/v0/contract_info/get_all_contract/
	_, err := c.send(ctx, "get all contracts", func(r *resty.Request) (*resty.Response, error) {
		respData = models.AllContractsResponse{}
		return r.SetResult(&respData).Get("/api/v0/contract_info/get_all_contract/")
	})
	if err != nil {
		return nil, err
	}

	return &respData, nil
}

// ContractDetails fetches balance and services of a single contract.
func (c *PortalClient) ContractDetails(ctx context.Context, contractID, billingID int) (*models.ContractInfoResponse, error) {
	var respData models.ContractInfoResponse

	payload := models.ContractInfoRequest{
		Contracts: []models.ContractRef{{ContractID: contractID, BillingID: billingID}},
	}

	// POST /api/v0/contract_info/get_contract_info/
	_, err := c.send(ctx, "get contract details", func(r *resty.Request) (*resty.Response, error) {
		respData = models.ContractInfoResponse{}
		return r.SetBody(payload).SetResult(&respData).Post("/api/v0/contract_info/get_contract_info/")
	})
	if err != nil {
		return nil, err
	}

	return &respData, nil
}
