package plugin

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/gesture"
)

// Dispatcher is an app.Sink that runs bound plugins when a hand changes to
// a gesture. Holding a gesture does not repeat the action; the hand has to
// show something else (or leave the frame) first. A binding that is still
// running is not started again.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	logger   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	last    map[int]gesture.Gesture
	running map[string]bool
	closed  bool
}

func NewDispatcher(m *Manager, e *Executor, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		manager:  m,
		executor: e,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		last:     make(map[int]gesture.Gesture),
		running:  make(map[string]bool),
	}
}

// OnFrame starts the plugins bound to every gesture that is new for its
// hand.
func (d *Dispatcher) OnFrame(result app.FrameResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	seen := make(map[int]bool, len(result.Hands))
	for _, h := range result.Hands {
		seen[h.Hand] = true
		prev := d.last[h.Hand]
		d.last[h.Hand] = h.Gesture
		if h.Err != nil || h.Gesture == gesture.Unknown || h.Gesture == prev {
			continue
		}

		for _, t := range d.manager.Triggers(h.Gesture) {
			key := t.Plugin.Manifest.Name + "/" + t.Binding.Action
			if d.running[key] {
				d.logger.Debugw("plugin still running, skipped", "plugin", t.Plugin.Manifest.Name, "action", t.Binding.Action)
				continue
			}
			d.running[key] = true

			req := &Request{
				Action:     t.Binding.Action,
				Gesture:    h.Gesture.ID(),
				Label:      h.Label,
				Hand:       h.Hand,
				Handedness: h.Handedness,
				Session:    result.SessionID,
				Frame:      result.Frame,
				Params:     t.Binding.Params,
			}
			d.wg.Add(1)
			go d.run(key, t.Plugin, req)
		}
	}

	for hand := range d.last {
		if !seen[hand] {
			delete(d.last, hand)
		}
	}
}

func (d *Dispatcher) run(key string, p *Plugin, req *Request) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.running, key)
		d.mu.Unlock()
	}()

	resp, err := d.executor.Execute(d.ctx, p, req)
	switch {
	case err != nil:
		d.logger.Warnw("plugin failed", "plugin", p.Manifest.Name, "action", req.Action, "error", err)
	case !resp.Success:
		d.logger.Warnw("plugin reported failure", "plugin", p.Manifest.Name, "action", req.Action, "error", resp.Error)
	default:
		d.logger.Infow("plugin ran", "plugin", p.Manifest.Name, "action", req.Action, "gesture", req.Gesture)
	}
}

// Close stops accepting frames, cancels running plugins and waits for them.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	return nil
}
