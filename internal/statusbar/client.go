package statusbar

import (
	"context"
	"log/slog"
	"time"

	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/wsclient"
)

// Watcher is the subset of panewatch.Watcher the client drives.
type Watcher interface {
	OnTransition(adapter string, session clawtypes.PaneSession, prevStatus clawtypes.PaneStatus) error
	SampleProgress(adapter string, session clawtypes.PaneSession) error
}

const adapterName = "tmux"

const progressSampleInterval = 20 * time.Second

// Client reads status-bar frames off sock, keeps Index up to date, and
// forwards transitions to Watcher. It also drives Watcher's periodic
// progress sampling for every running session.
type Client struct {
	ws      *wsclient.Client
	index   *Index
	watcher Watcher
	log     *slog.Logger
}

func NewClient(sock wsclient.Socket, index *Index, watcher Watcher, log *slog.Logger) *Client {
	c := &Client{ws: wsclient.NewClient(sock), index: index, watcher: watcher, log: log}
	c.ws.OnText(c.handleFrame)
	return c
}

// Run blocks reading status-bar frames until ctx is cancelled, and runs
// the progress-sampling ticker alongside it.
func (c *Client) Run(ctx context.Context) error {
	go c.sampleLoop(ctx)
	return c.ws.Run(ctx)
}

func (c *Client) handleFrame(text string) {
	transitions, err := c.index.Apply([]byte(text))
	if err != nil {
		c.log.Warn("statusbar: dropping frame", "error", err)
		return
	}
	for _, t := range transitions {
		if err := c.watcher.OnTransition(adapterName, t.Session, t.PrevStatus); err != nil {
			c.log.Warn("statusbar: transition handling failed", "error", err, "project", t.Session.Project)
		}
	}
}

func (c *Client) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(progressSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, session := range c.index.Snapshot() {
				if session.Status != clawtypes.PaneStatusRunning {
					continue
				}
				if err := c.watcher.SampleProgress(adapterName, session); err != nil {
					c.log.Warn("statusbar: progress sampling failed", "error", err, "project", session.Project)
				}
			}
		}
	}
}
