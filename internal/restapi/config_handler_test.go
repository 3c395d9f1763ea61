package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"stopboard.app/internal/buildinfo"
)

func TestConfigHandler(t *testing.T) {
	originalCommit := buildinfo.CommitHash
	originalVersion := buildinfo.Version
	originalBranch := buildinfo.Branch
	defer func() {
		buildinfo.CommitHash = originalCommit
		buildinfo.Version = originalVersion
		buildinfo.Branch = originalBranch
	}()

	buildinfo.CommitHash = "test-hash-1234567"
	buildinfo.Version = "1.0.0-test"
	buildinfo.Branch = "feature/testing"

	api := createTestApi(t, withAdminKeys(testAdminKey))
	_, model := serveApiAndRetrieveEndpoint(t, api, "/api/config.json")

	assert.Equal(t, http.StatusOK, model.Code)
	entry := entryOf(t, model)
	assert.Equal(t, "stopboard", entry["id"])
	assert.Equal(t, "test", entry["environment"])
	assert.Equal(t, false, entry["gatewayEnabled"])
	assert.Equal(t, true, entry["adminProtected"])

	props, ok := entry["buildProperties"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "test-hash-1234567", props["git.commit.id"])
	assert.Equal(t, "test-ha", props["git.commit.id.abbrev"])
	assert.Equal(t, "1.0.0-test", props["build.version"])
	assert.Equal(t, "feature/testing", props["git.branch"])
}
