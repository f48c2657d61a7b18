package service

import (
	"context"
	"encoding/json"
	"fmt"

	"salesbridge/internal/constants"
	"salesbridge/internal/privacy"
	"salesbridge/internal/validation"
	"salesbridge/pkg/asaas"
	"salesbridge/pkg/infosimples"
	"salesbridge/pkg/llm"

	"github.com/sirupsen/logrus"
)

// Tool names the local agent may invoke. The dispatch set is closed:
// anything else the model asks for gets an error result, never a
// reflective call.
const (
	ToolListVehicleOffers       = "list_vehicle_offers"
	ToolCreateSignupPaymentLink = "create_signup_payment_link"
	ToolLookupRegistry          = "lookup_registry"
	ToolFormatRegistryReport    = "format_registry_report"
)

// PaymentLinkClient creates Asaas payment links.
type PaymentLinkClient interface {
	CreatePaymentLink(ctx context.Context, req asaas.PaymentLinkRequest) (*asaas.PaymentLink, error)
}

// RegistryClient performs CPF/CNPJ registry lookups.
type RegistryClient interface {
	LookupCPF(ctx context.Context, cpf, birthdate string) (*infosimples.RegistryResult, error)
	LookupCNPJ(ctx context.Context, cnpj string) (*infosimples.RegistryResult, error)
}

// VehicleOffer is one entry of the static catalog the assistant quotes.
type VehicleOffer struct {
	Model     string `json:"model"`
	Year      int    `json:"year"`
	PriceBRL  string `json:"price_brl"`
	Condition string `json:"condition"`
}

var vehicleCatalog = []VehicleOffer{
	{Model: "Fiat Mobi Like", Year: 2022, PriceBRL: "R$ 52.900", Condition: "seminovo"},
	{Model: "Chevrolet Onix LT", Year: 2023, PriceBRL: "R$ 74.900", Condition: "seminovo"},
	{Model: "Hyundai HB20 Sense", Year: 2021, PriceBRL: "R$ 63.500", Condition: "usado"},
	{Model: "Volkswagen Polo TSI", Year: 2023, PriceBRL: "R$ 89.900", Condition: "seminovo"},
	{Model: "Jeep Renegade Sport", Year: 2022, PriceBRL: "R$ 98.000", Condition: "usado"},
}

// Toolbox executes the local agent's tools. Every result is a JSON
// string handed back to the model; failures become {"error": ...} so the
// model can recover in its follow-up turn.
type Toolbox struct {
	payments PaymentLinkClient
	registry RegistryClient
	logger   *logrus.Logger
}

func NewToolbox(payments PaymentLinkClient, registry RegistryClient, logger *logrus.Logger) *Toolbox {
	return &Toolbox{payments: payments, registry: registry, logger: logger}
}

// Declarations returns the tool schemas advertised to the model.
func (t *Toolbox) Declarations() []llm.Tool {
	return []llm.Tool{
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolListVehicleOffers,
				Description: "List the vehicles currently available for sale with prices.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolCreateSignupPaymentLink,
				Description: "Create the signup fee payment link (R$ 14,90) for the current customer.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolLookupRegistry,
				Description: "Look up a Brazilian CPF or CNPJ in the federal registry. The document is checksum-validated locally before any remote call.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"document":{"type":"string","description":"CPF (11 digits) or CNPJ (14 digits), formatting optional"},"birthdate":{"type":"string","description":"Birthdate DD/MM/YYYY, required for CPF lookups"}},"required":["document"]}`),
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        ToolFormatRegistryReport,
				Description: "Render a registry lookup result as a short customer-facing report.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"document":{"type":"string"},"name":{"type":"string"},"situation":{"type":"string"},"found":{"type":"boolean"}},"required":["document"]}`),
			},
		},
	}
}

// Execute runs one requested tool call and returns the JSON result
// string. Panics inside a tool are converted to error results so a bad
// tool cannot take the whole turn down.
func (t *Toolbox) Execute(ctx context.Context, sessionID string, call llm.ToolCall) (result string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.WithFields(logrus.Fields{
				"tool":  call.Function.Name,
				"panic": fmt.Sprintf("%v", r),
			}).Error("Tool execution panicked")
			result = errorResult(fmt.Sprintf("tool %s crashed", call.Function.Name))
		}
	}()

	switch call.Function.Name {
	case ToolListVehicleOffers:
		return t.listVehicleOffers()
	case ToolCreateSignupPaymentLink:
		return t.createSignupPaymentLink(ctx, sessionID)
	case ToolLookupRegistry:
		return t.lookupRegistry(ctx, call.Function.Arguments)
	case ToolFormatRegistryReport:
		return t.formatRegistryReport(call.Function.Arguments)
	default:
		t.logger.WithField("tool", call.Function.Name).Warn("Model requested unknown tool")
		return errorResult(fmt.Sprintf("unknown tool: %s", call.Function.Name))
	}
}

func (t *Toolbox) listVehicleOffers() string {
	data, err := json.Marshal(vehicleCatalog)
	if err != nil {
		return errorResult("failed to render catalog")
	}
	return string(data)
}

func (t *Toolbox) createSignupPaymentLink(ctx context.Context, sessionID string) string {
	link, err := t.payments.CreatePaymentLink(ctx, asaas.PaymentLinkRequest{
		Name:              "Taxa de cadastro",
		BillingType:       "UNDEFINED",
		ChargeType:        "DETACHED",
		Value:             float64(constants.SignupFeeCents) / 100,
		DueDateLimitDays:  constants.PaymentLinkDueDays,
		ExternalReference: sessionID,
	})
	if err != nil {
		t.logger.WithError(err).WithField(LogFieldSession, SanitizeSessionID(sessionID)).
			Error("Failed to create payment link")
		return errorResult("payment link creation failed")
	}

	data, _ := json.Marshal(map[string]string{"payment_url": link.URL})
	return string(data)
}

type lookupArgs struct {
	Document  string `json:"document"`
	Birthdate string `json:"birthdate"`
}

func (t *Toolbox) lookupRegistry(ctx context.Context, rawArgs string) string {
	var args lookupArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errorResult("invalid lookup arguments")
	}

	digits := validation.OnlyDigits(args.Document)
	if !validation.IsValidDocument(digits) {
		return errorResult("document must be a valid CPF (11 digits) or CNPJ (14 digits)")
	}

	if len(digits) == 11 {
		res, err := t.registry.LookupCPF(ctx, digits, args.Birthdate)
		if err != nil {
			t.logger.WithError(err).WithField("document", privacy.MaskDocument(digits)).
				Error("CPF registry lookup failed")
			return errorResult("registry lookup failed")
		}
		return marshalResult(res)
	}

	res, err := t.registry.LookupCNPJ(ctx, digits)
	if err != nil {
		t.logger.WithError(err).WithField("document", privacy.MaskDocument(digits)).
			Error("CNPJ registry lookup failed")
		return errorResult("registry lookup failed")
	}
	return marshalResult(res)
}

type reportArgs struct {
	Document  string `json:"document"`
	Name      string `json:"name"`
	Situation string `json:"situation"`
	Found     bool   `json:"found"`
}

func (t *Toolbox) formatRegistryReport(rawArgs string) string {
	var args reportArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errorResult("invalid report arguments")
	}

	digits := validation.OnlyDigits(args.Document)
	var formatted string
	switch len(digits) {
	case 11:
		formatted = validation.FormatCPF(digits)
	case 14:
		formatted = validation.FormatCNPJ(digits)
	default:
		formatted = args.Document
	}

	var report string
	if !args.Found {
		report = fmt.Sprintf("Documento %s: nenhum registro encontrado.", formatted)
	} else {
		report = fmt.Sprintf("Documento %s\nNome: %s\nSituação cadastral: %s", formatted, args.Name, args.Situation)
	}

	data, _ := json.Marshal(map[string]string{"report": report})
	return string(data)
}

func marshalResult(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to render result")
	}
	return string(data)
}

func errorResult(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}
