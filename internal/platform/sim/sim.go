package sim

import (
	"context"
	"sync"
	"time"

	"github.com/replaykit/replayd/internal/platform"
	"github.com/replaykit/replayd/internal/shared/types"
)

// watchBuffer sizes each watcher channel. Scripts that outrun a slow
// consumer drop changes rather than deadlock.
const watchBuffer = 32

var _ platform.Driver = (*Sim)(nil)

type process struct {
	name       string
	title      string
	responsive bool
	window     types.WindowHandle
	bounds     types.Bounds
}

type watcher struct {
	pid uint32
	ch  chan platform.FocusChange
}

// Sim is a scriptable platform driver. The zero value is not usable;
// construct with New.
type Sim struct {
	mu        sync.Mutex
	procs     map[uint32]*process
	focused   uint32 // pid holding focus, 0 = desktop
	watchers  map[int]*watcher
	nextWatch int
	injectErr error
	journal   []types.Action
	closed    bool
}

// New creates an empty simulator with nothing focused.
func New() *Sim {
	return &Sim{
		procs:    make(map[uint32]*process),
		watchers: make(map[int]*watcher),
	}
}

// AddProcess registers a running process. It starts responsive, without
// a window, and unfocused.
func (s *Sim) AddProcess(pid uint32, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[pid] = &process{name: name, responsive: true}
}

// SetWindow gives a process a window handle and screen bounds.
func (s *Sim) SetWindow(pid uint32, handle types.WindowHandle, bounds types.Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.procs[pid]; ok {
		p.window = handle
		p.bounds = bounds
	}
}

// SetTitle sets the window title reported in focus changes.
func (s *Sim) SetTitle(pid uint32, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.procs[pid]; ok {
		p.title = title
	}
}

// SetResponsive toggles whether a process answers responsiveness probes.
func (s *Sim) SetResponsive(pid uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, exists := s.procs[pid]; exists {
		p.responsive = ok
	}
}

// RemoveProcess simulates process exit. If the process held focus, focus
// falls back to the desktop and watchers are notified.
func (s *Sim) RemoveProcess(pid uint32) {
	s.mu.Lock()
	delete(s.procs, pid)
	notify := s.focused == pid
	if notify {
		s.focused = 0
	}
	var changes []func()
	if notify {
		changes = s.broadcastLocked()
	}
	s.mu.Unlock()

	for _, send := range changes {
		send()
	}
}

// SetFocus moves OS focus to the given pid (0 focuses the desktop) and
// notifies every watcher.
func (s *Sim) SetFocus(pid uint32) {
	s.mu.Lock()
	s.focused = pid
	changes := s.broadcastLocked()
	s.mu.Unlock()

	for _, send := range changes {
		send()
	}
}

// PushFocusError delivers an observation failure to every watcher.
func (s *Sim) PushFocusError(err error) {
	s.mu.Lock()
	now := time.Now()
	sends := make([]func(), 0, len(s.watchers))
	for _, w := range s.watchers {
		w := w
		change := platform.FocusChange{Err: err, At: now}
		sends = append(sends, func() {
			select {
			case w.ch <- change:
			default:
			}
		})
	}
	s.mu.Unlock()

	for _, send := range sends {
		send()
	}
}

// FailInjection forces subsequent injection calls to return err. Pass nil
// to restore normal behavior.
func (s *Sim) FailInjection(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injectErr = err
}

// Journal returns a copy of every action injected so far, in order.
func (s *Sim) Journal() []types.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Action, len(s.journal))
	copy(out, s.journal)
	return out
}

// ClearJournal discards the recorded injections.
func (s *Sim) ClearJournal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = nil
}

// broadcastLocked builds one focus change per watcher reflecting the
// current holder. Callers send outside the lock.
func (s *Sim) broadcastLocked() []func() {
	now := time.Now()
	holder := s.focused
	var name, title string
	if p, ok := s.procs[holder]; ok {
		name = p.name
		title = p.title
	}

	sends := make([]func(), 0, len(s.watchers))
	for _, w := range s.watchers {
		w := w
		change := platform.FocusChange{
			TargetFocused: w.pid == holder && holder != 0,
			HolderPID:     holder,
			HolderName:    name,
			WindowTitle:   title,
			At:            now,
		}
		sends = append(sends, func() {
			select {
			case w.ch <- change:
			default:
			}
		})
	}
	return sends
}

// Watch implements platform.FocusWatcher. The first change on the stream
// reflects the focus state at subscription time.
func (s *Sim) Watch(ctx context.Context, pid uint32) (<-chan platform.FocusChange, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, platform.ErrDriverClosed
	}
	if _, ok := s.procs[pid]; !ok {
		s.mu.Unlock()
		return nil, platform.ErrProcessNotFound
	}

	w := &watcher{pid: pid, ch: make(chan platform.FocusChange, watchBuffer)}
	token := s.nextWatch
	s.nextWatch++
	s.watchers[token] = w

	holder := s.focused
	var name, title string
	if p, ok := s.procs[holder]; ok {
		name = p.name
		title = p.title
	}
	w.ch <- platform.FocusChange{
		TargetFocused: pid == holder && holder != 0,
		HolderPID:     holder,
		HolderName:    name,
		WindowTitle:   title,
		At:            time.Now(),
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if _, ok := s.watchers[token]; ok {
			delete(s.watchers, token)
			close(w.ch)
		}
		s.mu.Unlock()
	}()

	return w.ch, nil
}

// ProcessExists implements platform.ApplicationDetector.
func (s *Sim) ProcessExists(ctx context.Context, pid uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, platform.ErrDriverClosed
	}
	_, ok := s.procs[pid]
	return ok, nil
}

// ProcessResponsive implements platform.ApplicationDetector.
func (s *Sim) ProcessResponsive(ctx context.Context, pid uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, platform.ErrDriverClosed
	}
	p, ok := s.procs[pid]
	if !ok {
		return false, platform.ErrProcessNotFound
	}
	return p.responsive, nil
}

// FocusedProcess implements platform.ApplicationDetector.
func (s *Sim) FocusedProcess(ctx context.Context) (platform.ProcessInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return platform.ProcessInfo{}, platform.ErrDriverClosed
	}
	info := platform.ProcessInfo{PID: s.focused}
	if p, ok := s.procs[s.focused]; ok {
		info.Name = p.name
	}
	return info, nil
}

// ResolveWindow implements platform.WindowResolver.
func (s *Sim) ResolveWindow(ctx context.Context, pid uint32) (types.WindowHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[pid]
	if !ok {
		return types.NoWindow, platform.ErrProcessNotFound
	}
	if p.window == types.NoWindow {
		return types.NoWindow, platform.ErrWindowNotFound
	}
	return p.window, nil
}

// WindowBounds implements platform.WindowResolver.
func (s *Sim) WindowBounds(ctx context.Context, handle types.WindowHandle) (types.Bounds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.procs {
		if p.window == handle && handle != types.NoWindow {
			return p.bounds, nil
		}
	}
	return types.Bounds{}, platform.ErrWindowNotFound
}

// MouseMove implements platform.InputInjector.
func (s *Sim) MouseMove(ctx context.Context, p types.Point) error {
	return s.record(types.NewMouseMove(p))
}

// MouseClick implements platform.InputInjector.
func (s *Sim) MouseClick(ctx context.Context, p types.Point) error {
	return s.record(types.NewMouseClick(p))
}

// MouseDrag implements platform.InputInjector.
func (s *Sim) MouseDrag(ctx context.Context, from, to types.Point) error {
	return s.record(types.NewMouseDrag(from, to))
}

// TypeText implements platform.InputInjector.
func (s *Sim) TypeText(ctx context.Context, text string) error {
	return s.record(types.NewKeyboardInput(text))
}

// PressKey implements platform.InputInjector.
func (s *Sim) PressKey(ctx context.Context, key string) error {
	return s.record(types.NewKeyPress(key))
}

func (s *Sim) record(action types.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return platform.ErrDriverClosed
	}
	if s.injectErr != nil {
		return s.injectErr
	}
	s.journal = append(s.journal, action)
	return nil
}

// Close shuts the driver down and closes every watcher stream.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for token, w := range s.watchers {
		delete(s.watchers, token)
		close(w.ch)
	}
	return nil
}
