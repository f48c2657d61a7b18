package infosimples

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCPF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/consultas/receita-federal/cpf", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok-1", r.FormValue("token"))
		assert.Equal(t, "529.982.247-25", r.FormValue("cpf"))
		assert.Equal(t, "01/01/1990", r.FormValue("birthdate"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"code": 200,
			"code_message": "ok",
			"data": [{
				"numero_de_cpf": "529.982.247-25",
				"nome": "MARIA DA SILVA",
				"situacao_cadastral": "REGULAR"
			}]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok-1", 5*time.Second)

	result, err := client.LookupCPF(context.Background(), "529.982.247-25", "01/01/1990")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "cpf", result.Kind)
	assert.Equal(t, "529.982.247-25", result.Document)
	assert.Equal(t, "MARIA DA SILVA", result.Name)
	assert.Equal(t, "REGULAR", result.Situation)
}

func TestLookupCPFNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code": 612, "code_message": "não encontrado", "data": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok-1", time.Second)

	result, err := client.LookupCPF(context.Background(), "529.982.247-25", "")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, "cpf", result.Kind)
	assert.Empty(t, result.Name)
}

func TestLookupCNPJ(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/consultas/receita-federal/cnpj", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "11.222.333/0001-81", r.FormValue("cnpj"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"code": 200,
			"code_message": "ok",
			"data": [{
				"cnpj": "11.222.333/0001-81",
				"razao_social": "ACME VEICULOS LTDA",
				"situacao_cadastral": "ATIVA"
			}]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok-1", 5*time.Second)

	result, err := client.LookupCNPJ(context.Background(), "11.222.333/0001-81")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "cnpj", result.Kind)
	assert.Equal(t, "ACME VEICULOS LTDA", result.Name)
	assert.Equal(t, "ATIVA", result.Situation)
}

func TestLookupCNPJServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("manutenção"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok-1", time.Second)

	_, err := client.LookupCNPJ(context.Background(), "11.222.333/0001-81")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infosimples cnpj lookup error")
}

func TestLookupCPFTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "tok-1", time.Second)

	_, err := client.LookupCPF(context.Background(), "529.982.247-25", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infosimples cpf lookup failed")
}
