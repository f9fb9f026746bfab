package modqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dayzctl/dayzctl/internal/events"
	"github.com/dayzctl/dayzctl/internal/metrics"
)

// Typed failures returned by queue operations.
var (
	ErrItemNotFound     = errors.New("modqueue: item not found")
	ErrItemBusy         = errors.New("modqueue: item is downloading")
	ErrProcessingActive = errors.New("modqueue: queue is processing")
	ErrCollectionEmpty  = errors.New("modqueue: collection has no members")
	ErrProviderFailure  = errors.New("modqueue: provider failure")
)

// ItemState is an item's position in its monotonic lifecycle:
// pending -> downloading -> completed | failed.
type ItemState string

const (
	StatePending     ItemState = "pending"
	StateDownloading ItemState = "downloading"
	StateCompleted   ItemState = "completed"
	StateFailed      ItemState = "failed"
)

// Item is one queued download. MemberIDs is non-empty for collections; the
// member list is resolved eagerly at enqueue time.
type Item struct {
	ID         int64     `json:"id"`
	WorkshopID string    `json:"workshop_id"`
	Name       string    `json:"name"`
	MemberIDs  []string  `json:"member_ids,omitempty"`
	State      ItemState `json:"state"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
}

// Status is a full snapshot, recomputed from the live list on every call.
type Status struct {
	Total        int    `json:"total"`
	Pending      int    `json:"pending"`
	Downloading  int    `json:"downloading"`
	Completed    int    `json:"completed"`
	Failed       int    `json:"failed"`
	CurrentItem  *Item  `json:"current_item,omitempty"`
	IsProcessing bool   `json:"is_processing"`
	Items        []Item `json:"items"`
}

// ProgressUpdate is the item-progress event payload.
type ProgressUpdate struct {
	Item    Item `json:"item"`
	Percent int  `json:"percent"`
}

// Queue serializes mod and collection downloads against a single shared
// install path. Exactly one processing loop runs at a time, guarded by the
// processing flag, so at most one item is ever downloading; mutual exclusion
// over item mutation is structural, the mutex only protects the list itself.
type Queue struct {
	mu          sync.Mutex
	items       []*Item
	nextID      int64
	processing  bool
	currentID   int64
	installPath string

	provider Provider
	store    ConfigStore
	bus      *events.Bus
	log      *slog.Logger

	// backoff applies when the loop observes a stale downloading item;
	// unreachable under correct single-loop operation.
	backoff time.Duration
}

// New builds an idle queue. The install path may be set later via
// SetInstallPath; enqueueing works without it, processing does not.
func New(provider Provider, store ConfigStore, bus *events.Bus, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Queue{
		provider: provider,
		store:    store,
		bus:      bus,
		log:      log,
		backoff:  250 * time.Millisecond,
	}
}

// SetInstallPath sets the shared download target for all items.
func (q *Queue) SetInstallPath(path string) {
	q.mu.Lock()
	q.installPath = path
	q.mu.Unlock()
}

// EnqueueMod appends a pending single-mod item and kicks the processor if
// it is idle.
func (q *Queue) EnqueueMod(workshopID, name string) int64 {
	q.mu.Lock()
	q.nextID++
	item := &Item{ID: q.nextID, WorkshopID: workshopID, Name: name, State: StatePending}
	q.items = append(q.items, item)
	id := item.ID
	q.mu.Unlock()

	q.publishQueueUpdated()
	go q.process()
	return id
}

// EnqueueCollection resolves the collection's member list eagerly and
// appends one item carrying the full list. Fails synchronously with
// ErrCollectionEmpty when the collection resolves to zero members; the
// queue is unchanged in that case.
func (q *Queue) EnqueueCollection(collectionID, name string) (int64, error) {
	members, err := q.provider.CollectionMemberIDs(context.Background(), collectionID)
	if err != nil {
		return 0, fmt.Errorf("%w: resolve collection %s: %v", ErrProviderFailure, collectionID, err)
	}
	if len(members) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrCollectionEmpty, collectionID)
	}

	q.mu.Lock()
	q.nextID++
	item := &Item{ID: q.nextID, WorkshopID: collectionID, Name: name, MemberIDs: members, State: StatePending}
	q.items = append(q.items, item)
	id := item.ID
	q.mu.Unlock()

	q.publishQueueUpdated()
	go q.process()
	return id, nil
}

// Remove deletes an item unless it is actively downloading.
func (q *Queue) Remove(id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.ID != id {
			continue
		}
		if item.State == StateDownloading {
			return fmt.Errorf("%w: id %d", ErrItemBusy, id)
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: id %d", ErrItemNotFound, id)
}

// ClearCompleted removes completed items and returns how many were removed.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if item.State == StateCompleted {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	return removed
}

// ClearAll empties the queue. Refused while the loop is running so the item
// actively downloading is never dropped out from under it.
func (q *Queue) ClearAll() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.processing {
		return ErrProcessingActive
	}
	q.items = nil
	return nil
}

// GetStatus recomputes the snapshot from the live list; nothing is cached.
func (q *Queue) GetStatus() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

func (q *Queue) statusLocked() Status {
	st := Status{Total: len(q.items), IsProcessing: q.processing, Items: make([]Item, 0, len(q.items))}
	for _, item := range q.items {
		cp := *item
		cp.MemberIDs = append([]string(nil), item.MemberIDs...)
		st.Items = append(st.Items, cp)
		switch item.State {
		case StatePending:
			st.Pending++
		case StateDownloading:
			st.Downloading++
		case StateCompleted:
			st.Completed++
		case StateFailed:
			st.Failed++
		}
		if item.ID == q.currentID && q.currentID != 0 {
			st.CurrentItem = &cp
		}
	}
	return st
}

// process is the queue's single loop. It runs until no pending items remain,
// picking the first pending item (FIFO) each iteration. The processing flag
// makes concurrent invocations no-ops.
func (q *Queue) process() {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return
	}
	if q.installPath == "" {
		q.mu.Unlock()
		q.log.Error("mod queue cannot process: install path not configured")
		return
	}
	q.processing = true
	installPath := q.installPath
	q.mu.Unlock()

	for {
		q.mu.Lock()
		var item *Item
		stale := false
		for _, it := range q.items {
			if it.State == StatePending {
				item = it
				break
			}
			if it.State == StateDownloading {
				stale = true
			}
		}
		if item == nil {
			if stale {
				q.mu.Unlock()
				// Unreachable under single-loop operation; re-poll rather
				// than busy-spin if it ever happens.
				time.Sleep(q.backoff)
				continue
			}
			// The flag must flip in the same critical section as the scan
			// that found nothing pending: an enqueue landing after this
			// unlock sees processing false and starts its own loop, so no
			// item can strand between the scan and the reset.
			q.processing = false
			q.currentID = 0
			q.mu.Unlock()
			q.publishQueueUpdated()
			q.bus.Publish(events.QueueCompleted, q.GetStatus())
			q.log.Info("mod queue drained")
			return
		}
		item.State = StateDownloading
		item.Progress = 0
		q.currentID = item.ID
		snapshot := *item
		q.mu.Unlock()

		q.bus.Publish(events.ItemStarted, snapshot)
		q.publishQueueUpdated()

		if len(snapshot.MemberIDs) > 0 {
			q.processCollection(item, installPath)
		} else {
			q.processSingle(item, installPath)
		}

		q.mu.Lock()
		q.currentID = 0
		done := *item
		q.mu.Unlock()

		if done.State == StateCompleted {
			q.bus.Publish(events.ItemCompleted, done)
		} else {
			q.bus.Publish(events.ItemFailed, done)
		}
		q.publishQueueUpdated()
	}
}

// processSingle downloads one workshop mod and registers its display name.
// A failed name lookup degrades to a placeholder; it never fails the item.
func (q *Queue) processSingle(item *Item, installPath string) {
	ctx := context.Background()
	_, err := q.provider.DownloadMod(ctx, item.WorkshopID, installPath, q.progressSink(item, 0, 1))
	if err != nil {
		q.setTerminal(item, StateFailed, fmt.Sprintf("download failed: %v", err))
		metrics.IncModDownload("failed")
		return
	}
	q.registerMod(ctx, item.WorkshopID, item.Name)
	q.setProgress(item, 100)
	q.setTerminal(item, StateCompleted, "")
	metrics.IncModDownload("completed")
}

// processCollection drives the stored member list sequentially; downloads
// share one install path, so members are never fetched concurrently. A
// member failure is recorded but does not abort the rest.
func (q *Queue) processCollection(item *Item, installPath string) {
	ctx := context.Background()
	total := len(item.MemberIDs)
	var failed []string

	for i, memberID := range item.MemberIDs {
		_, err := q.provider.DownloadMod(ctx, memberID, installPath, q.progressSink(item, i, total))
		if err != nil {
			q.log.Warn("collection member download failed", "collection", item.WorkshopID, "member", memberID, "error", err)
			failed = append(failed, memberID)
			continue
		}
		q.registerMod(ctx, memberID, "")
		q.setProgress(item, (i+1)*100/total)
	}

	succeeded := total - len(failed)
	switch {
	case len(failed) == 0:
		q.setProgress(item, 100)
		q.setTerminal(item, StateCompleted, "")
		metrics.IncModDownload("completed")
	case succeeded == 0:
		q.setTerminal(item, StateFailed, fmt.Sprintf("all %d mods failed: %s", total, strings.Join(failed, ", ")))
		metrics.IncModDownload("failed")
	default:
		// Mixed outcome stays completed with an error summary.
		q.setProgress(item, 100)
		q.setTerminal(item, StateCompleted,
			fmt.Sprintf("%d succeeded, %d failed (failed: %s)", succeeded, len(failed), strings.Join(failed, ", ")))
		metrics.IncModDownload("partial")
	}
}

// progressSink blends a member's sub-progress into the item's overall
// progress so the bar advances smoothly: (done + sub/100) / total.
func (q *Queue) progressSink(item *Item, done, total int) func(int) {
	return func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		overall := (done*100 + percent) / total
		q.setProgress(item, overall)
	}
}

func (q *Queue) setProgress(item *Item, percent int) {
	q.mu.Lock()
	if percent > 100 {
		percent = 100
	}
	item.Progress = percent
	snapshot := *item
	q.mu.Unlock()
	q.bus.Publish(events.ItemProgress, ProgressUpdate{Item: snapshot, Percent: percent})
}

func (q *Queue) setTerminal(item *Item, state ItemState, errText string) {
	q.mu.Lock()
	item.State = state
	item.Error = errText
	q.mu.Unlock()
}

// registerMod persists the mod into the config store, degrading to a
// placeholder name when the details lookup fails.
func (q *Queue) registerMod(ctx context.Context, workshopID, name string) {
	if q.store == nil {
		return
	}
	if name == "" {
		details, err := q.provider.ModDetails(ctx, workshopID)
		if err != nil || details.Name == "" {
			name = "Workshop Mod " + workshopID
		} else {
			name = details.Name
		}
	}
	if err := q.store.AddMod(workshopID, name); err != nil {
		q.log.Warn("failed to register mod in config", "workshop_id", workshopID, "error", err)
	}
}

func (q *Queue) publishQueueUpdated() {
	st := q.GetStatus()
	metrics.SetModQueueDepth(st.Pending + st.Downloading)
	q.bus.Publish(events.QueueUpdated, st)
}
