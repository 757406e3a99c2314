package ui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// EventKind classifies one status update sent from the coordinator or a
// worker to the live status display.
type EventKind int

const (
	EventLockAcquired EventKind = iota
	EventSnapshotReady
	EventUnlocked
	EventJobStarted
	EventJobFinished
	EventJobFailed
	EventDone
)

// Event is one progress notification. It is advisory only: the display
// never gates the dump protocol, and a full event channel is drained by
// dropping events rather than blocking a worker.
type Event struct {
	Kind   EventKind
	Worker int
	Table  string
	Chunk  int
	Err    error
}

// EventSink is how the coordinator reports progress; Report must not
// block the caller for long; the status model's channel is buffered and
// events are dropped if the UI falls behind.
type EventSink interface {
	Report(Event)
}

// ChanSink is an EventSink backed by a buffered channel, read by the
// status Bubble Tea program.
type ChanSink struct {
	ch chan Event
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buffer)}
}

// Report sends ev without blocking if the channel is full.
func (s *ChanSink) Report(ev Event) {
	select {
	case s.ch <- ev:
	default:
	}
}

// Events exposes the underlying channel for the status model to read.
func (s *ChanSink) Events() <-chan Event { return s.ch }

// Close closes the underlying channel, signalling no further events.
func (s *ChanSink) Close() { close(s.ch) }

type workerState struct {
	table string
	chunk int
	busy  bool
}

// StatusModel is a live per-worker status display: one line per worker
// showing its current job, and a running completed/total/failed count.
type StatusModel struct {
	events    <-chan Event
	workers   map[int]*workerState
	completed int
	failed    int
	total     int
	locked    bool
	unlocked  bool
	done      bool
}

// NewStatusModel builds a StatusModel reading from events. total is the
// number of jobs the coordinator expects to enqueue in total (0 if not
// known in advance).
func NewStatusModel(events <-chan Event, total int) StatusModel {
	return StatusModel{
		events:  events,
		workers: make(map[int]*workerState),
		total:   total,
	}
}

type eventMsg Event

func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventMsg{Kind: EventDone}
		}
		return eventMsg(ev)
	}
}

func (m StatusModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case eventMsg:
		ev := Event(msg)
		switch ev.Kind {
		case EventLockAcquired:
			m.locked = true
		case EventUnlocked:
			m.unlocked = true
		case EventJobStarted:
			m.workers[ev.Worker] = &workerState{table: ev.Table, chunk: ev.Chunk, busy: true}
		case EventJobFinished:
			m.completed++
			if w, ok := m.workers[ev.Worker]; ok {
				w.busy = false
			}
		case EventJobFailed:
			m.failed++
			if w, ok := m.workers[ev.Worker]; ok {
				w.busy = false
			}
		case EventDone:
			m.done = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m StatusModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder

	lock := "waiting for lock"
	if m.unlocked {
		lock = "snapshot established, tables unlocked"
	} else if m.locked {
		lock = "tables locked, workers starting snapshots"
	}
	fmt.Fprintf(&b, "  %s\n\n", lock)

	ids := make([]int, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		w := m.workers[id]
		status := "idle"
		if w.busy {
			if w.chunk >= 0 {
				status = fmt.Sprintf("dumping %s chunk %d", w.table, w.chunk)
			} else {
				status = fmt.Sprintf("dumping %s", w.table)
			}
		}
		fmt.Fprintf(&b, "  worker %d: %s\n", id, status)
	}

	b.WriteString("\n")
	if m.total > 0 {
		fmt.Fprintf(&b, "  %d/%d jobs complete", m.completed, m.total)
	} else {
		fmt.Fprintf(&b, "  %d jobs complete", m.completed)
	}
	if m.failed > 0 {
		fmt.Fprintf(&b, ", %d failed", m.failed)
	}
	b.WriteString("\n")

	return b.String()
}

// RunStatus runs the live status program until events are exhausted.
func RunStatus(events <-chan Event, total int) error {
	p := tea.NewProgram(NewStatusModel(events, total))
	_, err := p.Run()
	return err
}
