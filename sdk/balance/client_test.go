package balance

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckRegistration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/accounts/carol.donor/registration", r.URL.Path)
		json.NewEncoder(w).Encode(RegistrationStatus{Registered: true})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	registered, err := client.CheckRegistration(context.Background(), "carol.donor")
	require.NoError(t, err)
	require.True(t, registered)
}

func TestRegister(t *testing.T) {
	var got registerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/register", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	deposit, _ := new(big.Int).SetString("1250000000000000000000", 10)
	require.NoError(t, client.Register(context.Background(), "dave.donor", deposit))
	require.Equal(t, registerRequest{AccountID: "dave.donor", Deposit: "1250000000000000000000"}, got)
}

func TestTransfer(t *testing.T) {
	var got transferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transfers", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, client.Transfer(context.Background(), "erin.donor", big.NewInt(3)))
	require.Equal(t, transferRequest{ReceiverID: "erin.donor", Amount: "3"}, got)
}

func TestTransferRequiresPositiveAmount(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	require.Error(t, client.Transfer(context.Background(), "erin.donor", nil))
	require.Error(t, client.Transfer(context.Background(), "erin.donor", big.NewInt(0)))
}

func TestErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.CheckRegistration(context.Background(), "x.donor")
	require.Error(t, err)
	require.Error(t, client.Transfer(context.Background(), "x.donor", big.NewInt(1)))
}
