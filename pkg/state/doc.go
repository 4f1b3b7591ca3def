// Package state persists a summary of the last drained capture session.
//
// After a window has been sent over the link, the runtime records its
// session id, window length, drop counters and archive location:
//
//	repo := state.NewFileRepository(dir)
//	st, _ := repo.Load(ctx)
//	st.RecordDrain(rec.Status(), time.Now())
//	_ = repo.Save(ctx, st)
//
// On restart, [State.NextSessionID] continues the numbering. Files are
// written with a temp-file-and-rename so a crash never leaves a torn state.
package state
