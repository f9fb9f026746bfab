package steamcmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dayzctl/dayzctl/internal/modqueue"
)

const defaultAPIBase = "https://api.steampowered.com"

var ErrAPIFailure = errors.New("steamcmd: steam web api failure")

// Provider satisfies the mod queue's provider contract. Downloads go
// through the local steamcmd binary; metadata and collection membership
// come from the anonymous Steam Web API published-file endpoints.
type Provider struct {
	runner  *Runner
	client  *http.Client
	apiBase string
	log     *slog.Logger
}

var _ modqueue.Provider = (*Provider)(nil)

func NewProvider(runner *Runner, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		runner:  runner,
		client:  &http.Client{Timeout: 15 * time.Second},
		apiBase: defaultAPIBase,
		log:     log,
	}
}

// SetAPIBase overrides the Web API host, used by tests.
func (p *Provider) SetAPIBase(base string) { p.apiBase = base }

func (p *Provider) DownloadMod(ctx context.Context, workshopID, installPath string, onProgress func(int)) (string, error) {
	return p.runner.DownloadModItem(ctx, workshopID, installPath, onProgress)
}

type publishedFileDetails struct {
	PublishedFileID string `json:"publishedfileid"`
	Result          int    `json:"result"`
	Title           string `json:"title"`
}

func (p *Provider) ModDetails(ctx context.Context, workshopID string) (modqueue.ModDetails, error) {
	form := url.Values{
		"itemcount":           {"1"},
		"publishedfileids[0]": {workshopID},
	}
	var resp struct {
		Response struct {
			Result               int                    `json:"result"`
			PublishedFileDetails []publishedFileDetails `json:"publishedfiledetails"`
		} `json:"response"`
	}
	if err := p.postForm(ctx, "/ISteamRemoteStorage/GetPublishedFileDetails/v1/", form, &resp); err != nil {
		return modqueue.ModDetails{}, err
	}
	if len(resp.Response.PublishedFileDetails) == 0 || resp.Response.PublishedFileDetails[0].Result != 1 {
		return modqueue.ModDetails{}, fmt.Errorf("%w: no details for workshop item %s", ErrAPIFailure, workshopID)
	}
	return modqueue.ModDetails{Name: resp.Response.PublishedFileDetails[0].Title}, nil
}

type collectionChild struct {
	PublishedFileID string `json:"publishedfileid"`
	SortOrder       int    `json:"sortorder"`
}

func (p *Provider) CollectionMemberIDs(ctx context.Context, collectionID string) ([]string, error) {
	form := url.Values{
		"collectioncount":     {"1"},
		"publishedfileids[0]": {collectionID},
	}
	var resp struct {
		Response struct {
			Result            int `json:"result"`
			CollectionDetails []struct {
				PublishedFileID string            `json:"publishedfileid"`
				Result          int               `json:"result"`
				Children        []collectionChild `json:"children"`
			} `json:"collectiondetails"`
		} `json:"response"`
	}
	if err := p.postForm(ctx, "/ISteamRemoteStorage/GetCollectionDetails/v1/", form, &resp); err != nil {
		return nil, err
	}
	if len(resp.Response.CollectionDetails) == 0 || resp.Response.CollectionDetails[0].Result != 1 {
		return nil, fmt.Errorf("%w: collection %s not found", ErrAPIFailure, collectionID)
	}
	children := resp.Response.CollectionDetails[0].Children
	sort.Slice(children, func(i, j int) bool { return children[i].SortOrder < children[j].SortOrder })
	ids := make([]string, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.PublishedFileID)
	}
	return ids, nil
}

func (p *Provider) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIFailure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIFailure, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s", ErrAPIFailure, res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrAPIFailure, err)
	}
	return nil
}
