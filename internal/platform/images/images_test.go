package images

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/neuro-inc/apolo-cli/internal/platform/api"
	apolotest "github.com/neuro-inc/apolo-cli/internal/testing"
)

func pushImage(t *testing.T, host, ref string) {
	t.Helper()
	img, err := random.Image(256, 1)
	require.NoError(t, err)
	tag, err := name.NewTag(host+"/"+ref, name.Insecure)
	require.NoError(t, err)
	require.NoError(t, remote.Write(tag, img))
}

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(registry.New())
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	a := api.New(api.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})))
	c, err := New(a, srv.URL, "alice", api.Scope{Org: "acme", Project: "alpha"})
	require.NoError(t, err)
	return c, host
}

func TestClient_Ls(t *testing.T) {
	c, host := newTestClient(t)
	pushImage(t, host, "acme/alpha/train:v1")
	pushImage(t, host, "acme/alpha/serve/api:v1")
	pushImage(t, host, "acme/beta/other:v1")

	images, err := c.Ls(apolotest.TestContext(t))
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "serve/api", images[0].Name)
	assert.Equal(t, "image:train", images[1].URI())
	assert.Equal(t, "acme/alpha/train", images[1].Repository)
	assert.Equal(t, host, c.Host())
}

func TestClient_Tags(t *testing.T) {
	c, host := newTestClient(t)
	pushImage(t, host, "acme/alpha/train:v2")
	pushImage(t, host, "acme/alpha/train:v1")

	for _, ref := range []string{"train", "image:train", "train:v1"} {
		tags, err := c.Tags(apolotest.TestContext(t), ref)
		require.NoError(t, err, ref)
		assert.Equal(t, []string{"v1", "v2"}, tags, ref)
	}
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(api.New(), "not a url", "alice", api.Scope{Project: "alpha"})
	assert.Error(t, err)
}
