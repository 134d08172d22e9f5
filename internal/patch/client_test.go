package patch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
)

func TestFetchInstruction(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"patch": true,
			"proxy": true,
			"message": "patch available",
			"metode": 1,
			"patched": [{"location": "GenshinImpact_Data/globalmetadata.dat", "md5": "ABC123", "file": "https://cdn.example.com/globalmetadata.dat"}],
			"original": [{"location": "GenshinImpact_Data/globalmetadata.dat", "md5": "def456", "file": ""}]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	instruction, err := client.FetchInstruction(context.Background(), 1, "4.6.0", 1, "cafebabe")
	require.NoError(t, err)

	assert.Equal(t, "/game/patch/1/4.6.0/1/cafebabe.json", requestedPath)
	assert.True(t, instruction.Patch)
	assert.True(t, instruction.Proxy)
	assert.Equal(t, domain.MethodReplaceFiles, instruction.Method)
	require.Len(t, instruction.Patched, 1)
	assert.Equal(t, "GenshinImpact_Data/globalmetadata.dat", instruction.Patched[0].Location)
	assert.Equal(t, "ABC123", instruction.Patched[0].MD5)
	require.Len(t, instruction.Original, 1)
}

func TestFetchInstructionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	_, err := client.FetchInstruction(context.Background(), 1, "1.0.0", 1, "deadbeef")
	require.Error(t, err)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, domain.GameID(1), notFound.GameID)
	assert.Equal(t, "1.0.0", notFound.Version)
	assert.Equal(t, domain.ChannelID(1), notFound.Channel)
	assert.Equal(t, "deadbeef", notFound.MD5)
	assert.Equal(t, server.URL+"/game/patch/1/1.0.0/1/deadbeef.json", notFound.URL)
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
	assert.Equal(t, ErrorTypeNotFound, notFound.ErrorType)
}

func TestFetchInstructionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	_, err := client.FetchInstruction(context.Background(), 1, "1.0.0", 1, "deadbeef")
	require.Error(t, err)

	var notFound *NotFoundError
	assert.False(t, errors.As(err, &notFound), "5xx must not map to the not-found error")
	assert.Contains(t, err.Error(), "500")
}

func TestFetchInstructionBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	_, err := client.FetchInstruction(context.Background(), 1, "1.0.0", 1, "deadbeef")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("patched bytes"))
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "cache", "entry")
	client := NewClient(server.URL, zap.NewNop())

	file := domain.PatchFile{Location: "data/entry", URL: server.URL + "/entry"}
	require.NoError(t, client.Download(context.Background(), file, dst, nil))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("patched bytes"), data)
}

func TestDownloadTracksProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	tracker := NewTracker()
	dst := filepath.Join(t.TempDir(), "entry")
	client := NewClient(server.URL, zap.NewNop())

	file := domain.PatchFile{Location: "entry", URL: server.URL + "/entry"}
	require.NoError(t, client.Download(context.Background(), file, dst, tracker))

	// The download finished, so its progress entry is gone again.
	assert.Empty(t, tracker.Snapshot())
}

func TestDownloadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "entry")
	client := NewClient(server.URL, zap.NewNop())

	file := domain.PatchFile{Location: "entry", URL: server.URL + "/entry"}
	err := client.Download(context.Background(), file, dst, nil)
	require.Error(t, err)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}
