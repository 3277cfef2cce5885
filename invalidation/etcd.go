package invalidation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const DefaultDeviceCountKey = "/sfc-placement/topology/device-count"

var ErrWatchClosed = errors.New("watch channel closed")

type EtcdConfig struct {
	Endpoints   []string      `toml:"endpoints"`
	DialTimeout time.Duration `toml:"dial_timeout"`
	Key         string        `toml:"key"`
}

// Dial connects to the etcd cluster described by config
func Dial(config EtcdConfig) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return client, nil
}

// EtcdWatcher feeds the device count published under a key into a Holder.
// A PUT carries the count as a decimal string, a DELETE invalidates.
type EtcdWatcher struct {
	watcher clientv3.Watcher
	key     string
	holder  *Holder
}

func NewEtcdWatcher(watcher clientv3.Watcher, key string, holder *Holder) *EtcdWatcher {
	if key == "" {
		key = DefaultDeviceCountKey
	}
	return &EtcdWatcher{watcher: watcher, key: key, holder: holder}
}

// Run blocks until ctx ends or the watch fails
func (w *EtcdWatcher) Run(ctx context.Context) error {
	log.Infof("etcd watcher: watching %s", w.key)
	watchChan := w.watcher.Watch(ctx, w.key)

	for {
		select {
		case <-ctx.Done():
			log.Infof("etcd watcher: shutting down")
			return nil

		case resp, ok := <-watchChan:
			if !ok {
				return ErrWatchClosed
			}
			if err := resp.Err(); err != nil {
				return fmt.Errorf("watch on %s failed: %w", w.key, err)
			}
			for _, event := range resp.Events {
				w.handleEvent(event)
			}
		}
	}
}

func (w *EtcdWatcher) handleEvent(event *clientv3.Event) {
	switch event.Type {
	case clientv3.EventTypePut:
		value := strings.TrimSpace(string(event.Kv.Value))
		n, err := strconv.Atoi(value)
		if err != nil {
			log.Errorf("etcd watcher: invalid device count %q under %s: %v", value, event.Kv.Key, err)
			return
		}
		w.holder.ObserveDeviceCount(n)
	case clientv3.EventTypeDelete:
		log.Warnf("etcd watcher: key %s deleted", event.Kv.Key)
		w.holder.Invalidate()
	}
}
