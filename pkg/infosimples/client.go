package infosimples

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.infosimples.com/api/v2"

// Client queries the Infosimples consultation API for registry data on
// Brazilian CPF/CNPJ documents.
type Client struct {
	httpClient *resty.Client
	token      string
}

// RegistryResult is the normalized outcome of a document lookup.
type RegistryResult struct {
	Document  string `json:"document"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Situation string `json:"situation"`
	Found     bool   `json:"found"`
}

type consultaResponse struct {
	Code    int    `json:"code"`
	CodeMsg string `json:"code_message"`
	Data    []struct {
		NumeroDeCPF       string `json:"numero_de_cpf"`
		NumeroDeCNPJ      string `json:"cnpj"`
		Nome              string `json:"nome"`
		RazaoSocial       string `json:"razao_social"`
		SituacaoCadastral string `json:"situacao_cadastral"`
	} `json:"data"`
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetTimeout(timeout)

	return &Client{httpClient: httpClient, token: token}
}

// LookupCPF queries the federal revenue registry for a CPF.
func (c *Client) LookupCPF(ctx context.Context, cpf, birthdate string) (*RegistryResult, error) {
	var result consultaResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":               c.token,
			"cpf":                 cpf,
			"birthdate":           birthdate,
			"timeout":             "300",
			"ignore_site_receipt": "0",
		}).
		SetResult(&result).
		Post("/consultas/receita-federal/cpf")

	if err != nil {
		return nil, fmt.Errorf("infosimples cpf lookup failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("infosimples cpf lookup error: status %s, body: %s", resp.Status(), resp.String())
	}

	return normalizeCPF(cpf, &result), nil
}

// LookupCNPJ queries the federal revenue registry for a CNPJ.
func (c *Client) LookupCNPJ(ctx context.Context, cnpj string) (*RegistryResult, error) {
	var result consultaResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":   c.token,
			"cnpj":    cnpj,
			"timeout": "300",
		}).
		SetResult(&result).
		Post("/consultas/receita-federal/cnpj")

	if err != nil {
		return nil, fmt.Errorf("infosimples cnpj lookup failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("infosimples cnpj lookup error: status %s, body: %s", resp.Status(), resp.String())
	}

	return normalizeCNPJ(cnpj, &result), nil
}

func normalizeCPF(document string, resp *consultaResponse) *RegistryResult {
	out := &RegistryResult{Document: document, Kind: "cpf"}
	if resp.Code != 200 || len(resp.Data) == 0 {
		return out
	}
	out.Found = true
	out.Name = resp.Data[0].Nome
	out.Situation = resp.Data[0].SituacaoCadastral
	return out
}

func normalizeCNPJ(document string, resp *consultaResponse) *RegistryResult {
	out := &RegistryResult{Document: document, Kind: "cnpj"}
	if resp.Code != 200 || len(resp.Data) == 0 {
		return out
	}
	out.Found = true
	out.Name = resp.Data[0].RazaoSocial
	out.Situation = resp.Data[0].SituacaoCadastral
	return out
}
