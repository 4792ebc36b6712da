package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/go-github/v27/github"
	"golang.org/x/oauth2"

	"github.com/chunkdrive/chunkdrive"
)

const githubMaxSize = 1 << 30 // 1 GiB, GitHub's own release asset cap

// GithubReleases is a Source backed by one repository's releases: each
// descriptor is a release tag, and the data for that descriptor is the
// bytes of the release's single asset.
type GithubReleases struct {
	owner, repo string
	client      *github.Client
}

// NewGithubReleases authenticates with a personal access token, the same
// oauth2.StaticTokenSource + go-github client construction distr1-distri's
// autobuilder uses.
func NewGithubReleases(ctx context.Context, owner, repo, token string) *GithubReleases {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &GithubReleases{owner: owner, repo: repo, client: github.NewClient(tc)}
}

var _ chunkdrive.Source = (*GithubReleases)(nil)

func (g *GithubReleases) MaxSize() int { return githubMaxSize }

// Create probes for a unique tag, then creates a prerelease under it.
func (g *GithubReleases) Create(ctx context.Context) (chunkdrive.Descriptor, error) {
	for attempt := 0; attempt < 16; attempt++ {
		tag, err := randomDescriptor(24)
		if err != nil {
			return nil, chunkdrive.NewError(chunkdrive.KindTransport, "github.create", err)
		}
		if _, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag); err == nil {
			continue // tag taken, retry
		}
		prerelease := true
		_, _, err = g.client.Repositories.CreateRelease(ctx, g.owner, g.repo, &github.RepositoryRelease{
			TagName:    github.String(tag),
			Prerelease: &prerelease,
		})
		if err != nil {
			return nil, chunkdrive.NewError(chunkdrive.KindTransport, "github.create", err)
		}
		return chunkdrive.Descriptor(tag), nil
	}
	return nil, chunkdrive.NewError(chunkdrive.KindExhaustion, "github.create", fmt.Errorf("too many tag collisions"))
}

func (g *GithubReleases) release(ctx context.Context, tag string) (*github.RepositoryRelease, error) {
	rel, resp, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, chunkdrive.NewError(chunkdrive.KindNotFound, "github.release", err)
		}
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "github.release", err)
	}
	return rel, nil
}

// Get fetches the release's single asset.
func (g *GithubReleases) Get(ctx context.Context, desc chunkdrive.Descriptor) ([]byte, error) {
	rel, err := g.release(ctx, string(desc))
	if err != nil {
		return nil, err
	}
	if len(rel.Assets) == 0 {
		return nil, chunkdrive.NewError(chunkdrive.KindShape, "github.get", fmt.Errorf("release has no asset"))
	}
	rc, _, err := g.client.Repositories.DownloadReleaseAsset(ctx, g.owner, g.repo, rel.Assets[0].GetID())
	if err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "github.get", err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, chunkdrive.NewError(chunkdrive.KindTransport, "github.get", err)
	}
	return buf.Bytes(), nil
}

// Put deletes every existing asset on the release and uploads one new one.
func (g *GithubReleases) Put(ctx context.Context, desc chunkdrive.Descriptor, data []byte) error {
	rel, err := g.release(ctx, string(desc))
	if err != nil {
		return err
	}
	for _, asset := range rel.Assets {
		if _, err := g.client.Repositories.DeleteReleaseAsset(ctx, g.owner, g.repo, asset.GetID()); err != nil {
			return chunkdrive.NewError(chunkdrive.KindTransport, "github.put", err)
		}
	}
	_, _, err = g.client.Repositories.UploadReleaseAsset(ctx, g.owner, g.repo, rel.GetID(), &github.UploadOptions{
		Name:      "d",
		MediaType: "application/octet-stream",
	}, bytes.NewReader(data))
	if err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "github.put", err)
	}
	return nil
}

// Delete removes every asset, the release, and the underlying tag ref.
// Per the core's delete-idempotence resolution, a release or ref that's
// already gone is treated as success, not an error.
func (g *GithubReleases) Delete(ctx context.Context, desc chunkdrive.Descriptor) error {
	rel, err := g.release(ctx, string(desc))
	if err != nil {
		if chunkdrive.IsKind(err, chunkdrive.KindNotFound) {
			return nil
		}
		return err
	}
	for _, asset := range rel.Assets {
		_, _ = g.client.Repositories.DeleteReleaseAsset(ctx, g.owner, g.repo, asset.GetID())
	}
	if _, err := g.client.Repositories.DeleteRelease(ctx, g.owner, g.repo, rel.GetID()); err != nil {
		return chunkdrive.NewError(chunkdrive.KindTransport, "github.delete", err)
	}
	if resp, err := g.client.Git.DeleteRef(ctx, g.owner, g.repo, "tags/"+string(desc)); err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil
		}
		return chunkdrive.NewError(chunkdrive.KindTransport, "github.delete", err)
	}
	return nil
}
