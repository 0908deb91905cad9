// Package release translates a toolchain descriptor into concrete release
// metadata: an asset URL, archive format, release tag, and update token.
// Origins are GitHub repositories ("owner/repo"); this package talks to the
// GitHub REST API via google/go-github.
package release

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-github/v74/github"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/elanerr"
)

// ArchiveFormat enumerates the supported release-asset archive formats.
type ArchiveFormat int

const (
	FormatUnknown ArchiveFormat = iota
	FormatZip
	FormatTarGz
	FormatTarZst
)

// formatPreference ranks formats when multiple assets match the platform:
// zstd over gzip over zip (spec.md §4.3).
var formatPreference = map[ArchiveFormat]int{
	FormatTarZst: 0,
	FormatTarGz:  1,
	FormatZip:    2,
}

// DetectFormat infers the archive format from an asset's file name.
func DetectFormat(name string) ArchiveFormat {
	switch {
	case strings.HasSuffix(name, ".tar.zst"):
		return FormatTarZst
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(name, ".zip"):
		return FormatZip
	default:
		return FormatUnknown
	}
}

// Asset is a release asset before platform matching, kept around so
// NoCompatibleAsset errors can explain what was actually on offer.
type Asset struct {
	Name        string
	URL         string
	Size        int64
	ContentType string
}

// Metadata is the resolved release information handed to the downloader.
type Metadata struct {
	AssetURL    string
	AssetName   string
	Format      ArchiveFormat
	ReleaseTag  string
	PublishedAt string
	// UpdateToken is an opaque value (the asset's GitHub node ID here) comparable by
	// equality to detect "same artifact, skip the download".
	UpdateToken string
	// Candidates lists every asset considered, for diagnostics.
	Candidates []Asset
}

// Resolver resolves descriptors to release Metadata against GitHub.
type Resolver struct {
	client        *github.Client
	defaultOrigin string
	platform      PlatformTriple
	// FetchFile fetches raw file content at HEAD of a repo, used for
	// RemoteFile ("follow") resolution. Overridable in tests.
	FetchFile func(ctx context.Context, origin, path string) (string, error)
}

// NewResolver builds a Resolver. httpClient may be nil to use
// http.DefaultClient; pass an oauth2-wrapped client to raise GitHub's
// anonymous rate limit.
func NewResolver(httpClient *http.Client, defaultOrigin string) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client := github.NewClient(httpClient)
	r := &Resolver{client: client, defaultOrigin: defaultOrigin, platform: Detect()}
	r.FetchFile = r.fetchFileHEAD
	return r
}

// Resolve resolves a descriptor to release Metadata, recursively following
// RemoteFile descriptors.
func (r *Resolver) Resolve(ctx context.Context, d descriptor.Descriptor) (Metadata, descriptor.Descriptor, error) {
	switch d.Kind {
	case descriptor.KindRemoteFile:
		text, err := r.FetchFile(ctx, d.Origin, d.Path)
		if err != nil {
			return Metadata{}, d, &elanerr.ResolveFailed{Origin: d.Origin, Cause: err}
		}
		next, err := descriptor.Parse(text, nil)
		if err != nil {
			return Metadata{}, d, err
		}
		return r.Resolve(ctx, next)

	case descriptor.KindLinked:
		return Metadata{}, d, fmt.Errorf("linked toolchain %q has no release metadata", d.Name)

	case descriptor.KindSymbolic:
		origin := r.defaultOrigin
		md, err := r.resolveChannel(ctx, origin, d.Channel)
		return md, d, err

	case descriptor.KindVersioned:
		origin := r.defaultOrigin
		md, err := r.resolveTag(ctx, origin, d.Tag)
		return md, d, err

	case descriptor.KindRemote:
		if symbolicChannel(d.Tag) {
			md, err := r.resolveChannel(ctx, d.Origin, d.Tag)
			return md, d, err
		}
		md, err := r.resolveTag(ctx, d.Origin, d.Tag)
		return md, d, err

	default:
		return Metadata{}, d, fmt.Errorf("unknown descriptor kind %d", d.Kind)
	}
}

func symbolicChannel(tag string) bool {
	return tag == descriptor.ChannelStable || tag == descriptor.ChannelBeta || tag == descriptor.ChannelNightly
}

// resolveChannel picks the newest release matching the channel. "stable"
// matches releases that are not marked Prerelease and whose tag contains no
// "nightly", "beta" or "rc"; "nightly" and "beta" match tag-name substrings
// only ("nightly"; "beta" or "rc").
func (r *Resolver) resolveChannel(ctx context.Context, origin, channel string) (Metadata, error) {
	owner, repo, err := splitOrigin(origin)
	if err != nil {
		return Metadata{}, &elanerr.ResolveFailed{Origin: origin, Cause: err}
	}

	releases, resp, err := r.client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: 100})
	if err != nil {
		return Metadata{}, rateLimitAwareError(origin, resp, err)
	}

	var best *github.RepositoryRelease
	var bestVer *semver.Version
	for _, rel := range releases {
		tag := rel.GetTagName()
		if !channelMatches(channel, tag, rel.GetPrerelease()) {
			continue
		}
		v, err := semver.NewVersion(tag)
		if err != nil {
			// Accept non-semver tags too (e.g. "nightly-2023-06-27"); fall
			// back to publish-date ordering via the first match, since
			// GitHub already returns releases newest-first.
			return r.metadataFromRelease(rel)
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			bestVer, best = v, rel
		}
	}
	if best == nil {
		return Metadata{}, &elanerr.ResolveFailed{Origin: origin, Cause: fmt.Errorf("no release matches channel %q", channel)}
	}
	return r.metadataFromRelease(best)
}

func channelMatches(channel, tag string, prerelease bool) bool {
	lowerTag := strings.ToLower(tag)
	switch channel {
	case descriptor.ChannelNightly:
		return strings.Contains(lowerTag, "nightly")
	case descriptor.ChannelBeta:
		return strings.Contains(lowerTag, "beta") || strings.Contains(lowerTag, "rc")
	case descriptor.ChannelStable:
		return !prerelease && !strings.Contains(lowerTag, "nightly") && !strings.Contains(lowerTag, "beta") && !strings.Contains(lowerTag, "rc")
	default:
		return false
	}
}

func (r *Resolver) resolveTag(ctx context.Context, origin, tag string) (Metadata, error) {
	owner, repo, err := splitOrigin(origin)
	if err != nil {
		return Metadata{}, &elanerr.ResolveFailed{Origin: origin, Cause: err}
	}

	rel, resp, err := r.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return Metadata{}, rateLimitAwareError(origin, resp, err)
	}
	return r.metadataFromRelease(rel)
}

func (r *Resolver) metadataFromRelease(rel *github.RepositoryRelease) (Metadata, error) {
	var candidates []Asset
	for _, a := range rel.Assets {
		candidates = append(candidates, Asset{
			Name:        a.GetName(),
			URL:         a.GetBrowserDownloadURL(),
			Size:        int64(a.GetSize()),
			ContentType: a.GetContentType(),
		})
	}

	var matches []Asset
	for _, a := range candidates {
		if r.platform.Matches(a.Name) && DetectFormat(a.Name) != FormatUnknown {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return Metadata{Candidates: candidates}, &elanerr.NoCompatibleAsset{
			Origin: rel.GetTargetCommitish(),
			Tag:    rel.GetTagName(),
			Triple: fmt.Sprintf("%s/%s/%s", r.platform.OS, r.platform.Arch, r.platform.Libc),
		}
	}

	// On a musl system an explicit musl asset outranks a glibc one; within
	// the same libc, formats rank by formatPreference.
	sort.Slice(matches, func(i, j int) bool {
		if r.platform.Libc == "musl" {
			mi := strings.Contains(strings.ToLower(matches[i].Name), "musl")
			mj := strings.Contains(strings.ToLower(matches[j].Name), "musl")
			if mi != mj {
				return mi
			}
		}
		return formatPreference[DetectFormat(matches[i].Name)] < formatPreference[DetectFormat(matches[j].Name)]
	})
	chosen := matches[0]

	var token string
	for _, a := range rel.Assets {
		if a.GetName() == chosen.Name {
			token = a.GetNodeID()
			break
		}
	}

	return Metadata{
		AssetURL:    chosen.URL,
		AssetName:   chosen.Name,
		Format:      DetectFormat(chosen.Name),
		ReleaseTag:  rel.GetTagName(),
		PublishedAt: rel.GetPublishedAt().String(),
		UpdateToken: token,
		Candidates:  candidates,
	}, nil
}

func (r *Resolver) fetchFileHEAD(ctx context.Context, origin, path string) (string, error) {
	owner, repo, err := splitOrigin(origin)
	if err != nil {
		return "", err
	}
	data, _, resp, err := r.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", rateLimitAwareError(origin, resp, err)
	}
	if data == nil {
		return "", fmt.Errorf("%s is a directory, not a file", path)
	}
	content, err := data.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return content, nil
}

func splitOrigin(origin string) (owner, repo string, err error) {
	parts := strings.SplitN(origin, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid origin %q, expected owner/repo", origin)
	}
	return parts[0], parts[1], nil
}

// rateLimitAwareError surfaces GitHub's rate-limit reset time in the
// ResolveFailed message, a necessity against the real API that the
// distilled spec omitted: anonymous access is capped per source IP.
func rateLimitAwareError(origin string, resp *github.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusForbidden {
		if rl, ok := err.(*github.RateLimitError); ok {
			return &elanerr.ResolveFailed{
				Origin: origin,
				Cause:  fmt.Errorf("GitHub API rate limit exceeded, resets at %s: %w", rl.Rate.Reset.Time, err),
			}
		}
	}
	return &elanerr.ResolveFailed{Origin: origin, Cause: err}
}
