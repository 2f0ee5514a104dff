package bufferpool

// Replacer decides which unpinned frame to give up when the pool is full.
// Frame IDs are indices in [0, numFrames). A replacer only ever returns
// frames that were marked evictable and never loops without bound.
type Replacer interface {
	// RecordLoad starts tracking a frame that was just filled with a page.
	RecordLoad(frameID int)
	// RecordAccess notes a pin hit on a tracked frame.
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	// Evict selects a victim and stops tracking it.
	Evict() (frameID int, ok bool)
	// Restore hands back the frame the last Evict returned, with the policy
	// state it had, as if it had not been chosen.
	Restore(frameID int)
	Remove(frameID int)
	// Size is the number of evictable frames.
	Size() int
}

// Manager is the contract the record and index layers program against.
type Manager interface {
	PinPage(pageNum int) (*PageHandle, error)
	UnpinPage(h *PageHandle) error
	MarkDirty(h *PageHandle) error
	ForcePage(h *PageHandle) error
	ForceFlushPool() error
}
