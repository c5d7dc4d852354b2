package registry

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"striem/internal/logger"
)

// Watch observes the rule registry's backing directory and triggers
// ReloadFromDisk on any write/create/remove/rename event, debounced so a
// burst of saves from an editor collapses into one reload (spec.md §4.5
// "registry uses copy-on-write snapshots"; the reload trigger itself is
// SPEC_FULL.md's DOMAIN STACK wiring for github.com/fsnotify/fsnotify).
// Watch blocks until ctx is canceled.
func (r *RuleRegistry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return err
	}

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRuleFile(event.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Rule directory watch error: %v", err)

		case <-reload:
			if err := r.ReloadFromDisk(); err != nil {
				logger.Errorf("Failed to reload rules after directory change: %v", err)
			} else {
				logger.Infof("Rule set reloaded from %s", r.dir)
			}
		}
	}
}
