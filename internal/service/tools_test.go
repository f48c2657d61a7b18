package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"salesbridge/pkg/asaas"
	"salesbridge/pkg/infosimples"
	"salesbridge/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentLinkClient struct {
	link     *asaas.PaymentLink
	err      error
	requests []asaas.PaymentLinkRequest
}

func (f *fakePaymentLinkClient) CreatePaymentLink(ctx context.Context, req asaas.PaymentLinkRequest) (*asaas.PaymentLink, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.link, nil
}

type fakeRegistryClient struct {
	result    *infosimples.RegistryResult
	err       error
	panicking bool
	cpfCalls  int
	cnpjCalls int
}

func (f *fakeRegistryClient) LookupCPF(ctx context.Context, cpf, birthdate string) (*infosimples.RegistryResult, error) {
	if f.panicking {
		panic("registry client blew up")
	}
	f.cpfCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRegistryClient) LookupCNPJ(ctx context.Context, cnpj string) (*infosimples.RegistryResult, error) {
	if f.panicking {
		panic("registry client blew up")
	}
	f.cnpjCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func toolCall(name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       "call_1",
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}
}

func TestToolboxDeclarations(t *testing.T) {
	toolbox := NewToolbox(nil, nil, testLogger())

	declarations := toolbox.Declarations()
	require.Len(t, declarations, 4)

	names := make([]string, 0, len(declarations))
	for _, d := range declarations {
		assert.Equal(t, "function", d.Type)
		names = append(names, d.Function.Name)
	}
	assert.Contains(t, names, ToolListVehicleOffers)
	assert.Contains(t, names, ToolCreateSignupPaymentLink)
	assert.Contains(t, names, ToolLookupRegistry)
	assert.Contains(t, names, ToolFormatRegistryReport)
}

func TestToolboxUnknownTool(t *testing.T) {
	toolbox := NewToolbox(nil, nil, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766", toolCall("send_email", "{}"))
	assert.JSONEq(t, `{"error":"unknown tool: send_email"}`, result)
}

func TestToolboxListVehicleOffers(t *testing.T) {
	toolbox := NewToolbox(nil, nil, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766", toolCall(ToolListVehicleOffers, "{}"))

	var offers []VehicleOffer
	require.NoError(t, json.Unmarshal([]byte(result), &offers))
	require.Len(t, offers, 5)
	assert.Equal(t, "Fiat Mobi Like", offers[0].Model)
	assert.NotEmpty(t, offers[0].PriceBRL)
}

func TestToolboxCreateSignupPaymentLink(t *testing.T) {
	payments := &fakePaymentLinkClient{link: &asaas.PaymentLink{ID: "link_1", URL: "https://asaas.example/pay/link_1"}}
	toolbox := NewToolbox(payments, nil, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766", toolCall(ToolCreateSignupPaymentLink, "{}"))
	assert.JSONEq(t, `{"payment_url":"https://asaas.example/pay/link_1"}`, result)

	require.Len(t, payments.requests, 1)
	req := payments.requests[0]
	assert.Equal(t, "UNDEFINED", req.BillingType)
	assert.Equal(t, "DETACHED", req.ChargeType)
	assert.InDelta(t, 14.90, req.Value, 0.001)
	assert.Equal(t, 3, req.DueDateLimitDays)
	assert.Equal(t, "wa_id_5511999887766", req.ExternalReference)
}

func TestToolboxCreateSignupPaymentLinkError(t *testing.T) {
	payments := &fakePaymentLinkClient{err: errors.New("asaas 500")}
	toolbox := NewToolbox(payments, nil, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766", toolCall(ToolCreateSignupPaymentLink, "{}"))
	assert.JSONEq(t, `{"error":"payment link creation failed"}`, result)
}

func TestToolboxLookupRegistryCPF(t *testing.T) {
	registry := &fakeRegistryClient{result: &infosimples.RegistryResult{
		Document:  "52998224725",
		Kind:      "cpf",
		Name:      "Maria da Silva",
		Situation: "REGULAR",
		Found:     true,
	}}
	toolbox := NewToolbox(nil, registry, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolLookupRegistry, `{"document":"529.982.247-25","birthdate":"01/01/1990"}`))

	var res infosimples.RegistryResult
	require.NoError(t, json.Unmarshal([]byte(result), &res))
	assert.True(t, res.Found)
	assert.Equal(t, "Maria da Silva", res.Name)
	assert.Equal(t, 1, registry.cpfCalls)
}

func TestToolboxLookupRegistryCNPJ(t *testing.T) {
	registry := &fakeRegistryClient{result: &infosimples.RegistryResult{
		Document: "11222333000181",
		Kind:     "cnpj",
		Name:     "Empresa Exemplo LTDA",
		Found:    true,
	}}
	toolbox := NewToolbox(nil, registry, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolLookupRegistry, `{"document":"11.222.333/0001-81"}`))

	var res infosimples.RegistryResult
	require.NoError(t, json.Unmarshal([]byte(result), &res))
	assert.True(t, res.Found)
	assert.Equal(t, 1, registry.cnpjCalls)
}

func TestToolboxLookupRegistryRejectsBadChecksum(t *testing.T) {
	registry := &fakeRegistryClient{}
	toolbox := NewToolbox(nil, registry, testLogger())

	// Checksum fails locally: the remote registry is never consulted.
	result := toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolLookupRegistry, `{"document":"52998224726"}`))
	assert.JSONEq(t, `{"error":"document must be a valid CPF (11 digits) or CNPJ (14 digits)"}`, result)
	assert.Zero(t, registry.cpfCalls)

	result = toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolLookupRegistry, `{"document":"11222333000182"}`))
	assert.JSONEq(t, `{"error":"document must be a valid CPF (11 digits) or CNPJ (14 digits)"}`, result)
	assert.Zero(t, registry.cnpjCalls)
}

func TestToolboxLookupRegistryBadArguments(t *testing.T) {
	toolbox := NewToolbox(nil, &fakeRegistryClient{}, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolLookupRegistry, `not json`))
	assert.JSONEq(t, `{"error":"invalid lookup arguments"}`, result)

	result = toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolLookupRegistry, `{"document":"12345"}`))
	assert.JSONEq(t, `{"error":"document must be a valid CPF (11 digits) or CNPJ (14 digits)"}`, result)
}

func TestToolboxLookupRegistryRemoteError(t *testing.T) {
	registry := &fakeRegistryClient{err: errors.New("infosimples timeout")}
	toolbox := NewToolbox(nil, registry, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolLookupRegistry, `{"document":"52998224725"}`))
	assert.JSONEq(t, `{"error":"registry lookup failed"}`, result)
}

func TestToolboxFormatRegistryReport(t *testing.T) {
	toolbox := NewToolbox(nil, nil, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolFormatRegistryReport, `{"document":"52998224725","name":"Maria da Silva","situation":"REGULAR","found":true}`))

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(result), &out))
	assert.Contains(t, out["report"], "529.982.247-25")
	assert.Contains(t, out["report"], "Maria da Silva")
	assert.Contains(t, out["report"], "REGULAR")
}

func TestToolboxFormatRegistryReportNotFound(t *testing.T) {
	toolbox := NewToolbox(nil, nil, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolFormatRegistryReport, `{"document":"11222333000181","found":false}`))

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(result), &out))
	assert.Contains(t, out["report"], "11.222.333/0001-81")
	assert.Contains(t, out["report"], "nenhum registro encontrado")
}

func TestToolboxPanicRecovery(t *testing.T) {
	registry := &fakeRegistryClient{panicking: true}
	toolbox := NewToolbox(nil, registry, testLogger())

	result := toolbox.Execute(context.Background(), "wa_id_5511999887766",
		toolCall(ToolLookupRegistry, `{"document":"52998224725"}`))
	assert.JSONEq(t, `{"error":"tool lookup_registry crashed"}`, result)
}
