package directory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

func TestAPIPeers(t *testing.T) {
	s := NewServer(0)
	require.NoError(t, s.Roster().Add(protocol.Peer{Name: "alice", Host: "10.0.0.1", Port: 4001}))
	require.NoError(t, s.Roster().Add(protocol.Peer{Name: "bob", Host: "10.0.0.2", Port: 4002}))

	api := NewAPIServer(s, 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/peers", nil)
	api.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp PeersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 2, resp.Count)
	require.Equal(t, "alice", resp.Peers[0].Name)
	require.Equal(t, "10.0.0.2", resp.Peers[1].Host)
}

func TestAPIStatus(t *testing.T) {
	s := NewServer(0)
	require.NoError(t, s.Roster().Add(protocol.Peer{Name: "alice", Host: "10.0.0.1", Port: 4001}))

	api := NewAPIServer(s, 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	api.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.Stats.PeerCount)
}
