// Package watcher reports changes to content item files so crawl --watch can
// re-crawl them.
//
// fsnotify is used where available; a polling scan is the fallback for
// filesystems where it fails (network mounts, some container volumes).
// Events are debounced so an editor's burst of writes becomes one batch.
//
//	w, err := watcher.New(watcher.Options{Filter: source.IsItemFile})
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Start(ctx, dir) }()
//	for batch := range w.Events() {
//	    // re-crawl batch
//	}
package watcher
