package issuance

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMint(t *testing.T) {
	var got MintRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/mint", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(MintResponse{ItemID: "token-42"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	itemID, err := client.Mint(context.Background(), "bob.donor", "ch1", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, "token-42", itemID)
	require.Equal(t, "Bearer secret", auth)
	require.Equal(t, MintRequest{ReceiverID: "bob.donor", ChannelID: "ch1", Deposit: "100"}, got)
}

func TestMintErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mint rejected", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Mint(context.Background(), "bob.donor", "ch1", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestMintRejectsEmptyItemID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MintResponse{})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Mint(context.Background(), "bob.donor", "ch1", nil)
	require.Error(t, err)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
