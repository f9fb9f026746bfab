package modqueue

import "context"

// ModDetails is the metadata subset the queue cares about.
type ModDetails struct {
	Name string `json:"name"`
}

// Provider is the external mod metadata and content collaborator. Download
// progress is reported through onProgress with whole percents in [0,100].
type Provider interface {
	DownloadMod(ctx context.Context, workshopID, installPath string, onProgress func(percent int)) (string, error)
	ModDetails(ctx context.Context, workshopID string) (ModDetails, error)
	CollectionMemberIDs(ctx context.Context, collectionID string) ([]string, error)
}

// ConfigStore persists which mods are installed. ServerPath is the shared
// download target; its absence is fatal for processing but not enqueueing.
type ConfigStore interface {
	AddMod(workshopID, name string) error
	ServerPath() string
}
