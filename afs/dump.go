package afs

// FileInfo is a snapshot of one worker's identity for dump output
// (spec §6, §12's supplemented diagnostic commands).
type FileInfo struct {
	Handle uint16
	Path   string
}

// Stats is a snapshot of the block's current load.
type Stats struct {
	OpenFiles       int
	IdleFiles       int
	ReplyQueueDepth int
	RequestsInFlight int64
}

// runSync hands fn to the reactor goroutine and blocks until it has
// run, giving dump/diagnostic calls the same single-writer safety as
// every other mutation of registry/idle/cfg.
func (a *Afs) runSync(fn func()) {
	done := make(chan struct{})
	a.ingress <- signalEnvelope{kind: sigDump, dump: func() {
		fn()
		close(done)
	}}
	<-done
}

// DumpOpenFiles lists every currently open file (the source's
// DUMP_STATE_ORD file-listing variant).
func (a *Afs) DumpOpenFiles() []FileInfo {
	var out []FileInfo
	a.runSync(func() {
		for _, f := range a.registry.List() {
			out = append(out, FileInfo{Handle: f.Handle(), Path: f.Path()})
		}
	})
	return out
}

// DumpIdleFiles lists every worker currently parked in the idle pool.
func (a *Afs) DumpIdleFiles() []FileInfo {
	var out []FileInfo
	a.runSync(func() {
		for _, f := range a.idle.List() {
			out = append(out, FileInfo{Handle: f.Handle(), Path: f.Path()})
		}
	})
	return out
}

// Stats returns a point-in-time snapshot of the block's load.
func (a *Afs) Stats() Stats {
	var s Stats
	a.runSync(func() {
		s = Stats{
			OpenFiles:        a.registry.Len(),
			IdleFiles:        a.idle.Len(),
			ReplyQueueDepth:  a.reply.Len(),
			RequestsInFlight: a.inFlight,
		}
	})
	return s
}

// SetAutoSyncFreqOverride overrides every future Open's auto-sync
// frequency; zero restores per-request control (spec §9, §12).
func (a *Afs) SetAutoSyncFreqOverride(freq uint32) {
	a.runSync(func() { a.cfg.AutoSyncFreqOverride = freq })
}

// SetUseODirect toggles the O_DIRECT default applied to future opens.
func (a *Afs) SetUseODirect(v bool) {
	a.runSync(func() { a.cfg.UseODirect = v })
}

// SetUseOSync toggles the O_SYNC default applied to future opens.
func (a *Afs) SetUseOSync(v bool) {
	a.runSync(func() { a.cfg.UseOSync = v })
}

// SetUnlinkOnCreate toggles whether a Create open first unlinks any
// pre-existing file at its target path.
func (a *Afs) SetUnlinkOnCreate(v bool) {
	a.runSync(func() { a.cfg.UnlinkOnCreate = v })
}
