package rest

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/chrisarseno/claude-swarm/internal/events"
)

// wireEvent is the JSON shape pushed over /ws/stream, one per bus event
// (or, for the initial message, wrapped as a snapshot).
type wireEvent struct {
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	WorkerID   string    `json:"worker_id,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	TaskName   string    `json:"task_name,omitempty"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Dropped    int       `json:"dropped,omitempty"`
}

func toWireEvent(e events.Event) wireEvent {
	return wireEvent{
		Kind:       string(e.Kind),
		Timestamp:  e.Timestamp,
		WorkerID:   e.WorkerID,
		TaskID:     e.TaskID,
		TaskName:   e.TaskName,
		WorkflowID: e.WorkflowID,
		Error:      e.Error,
		Dropped:    e.Dropped,
	}
}

// subscribeMsg is the optional first client message on a stream connection,
// narrowing delivery to the named event kinds. Absent or empty means all.
type subscribeMsg struct {
	Subscribe []string `json:"subscribe"`
}

// streamHub bridges the engine's event bus to WebSocket connections: each
// connection gets its own bus subscription and its own filter set.
type streamHub struct {
	bus *events.Bus

	mu     sync.Mutex
	closed bool
}

func newStreamHub(bus *events.Bus) *streamHub {
	return &streamHub{bus: bus}
}

func (h *streamHub) close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// serve is the gofiber/websocket/v2 connection handler: it reads an optional
// subscribe filter with a short deadline, sends a "snapshot" message, then
// relays bus events matching that filter until the client disconnects. The
// snapshot message carries only its kind and timestamp; it holds no pool or
// queue state.
func (h *streamHub) serve(conn *websocket.Conn) {
	defer conn.Close()

	sub := h.bus.Subscribe(0)

	filter := h.readFilter(conn)

	if err := conn.WriteJSON(wireEvent{Kind: "snapshot", Timestamp: time.Now()}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if !filter.allows(evt.Kind) {
				continue
			}
			if err := conn.WriteJSON(toWireEvent(evt)); err != nil {
				return
			}
		}
	}
}

func (h *streamHub) readFilter(conn *websocket.Conn) eventFilter {
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return eventFilter{}
	}
	var msg subscribeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return eventFilter{}
	}
	return newEventFilter(msg.Subscribe)
}

// eventFilter narrows delivery to a set of event kinds; an empty filter
// allows everything.
type eventFilter struct {
	kinds map[events.Kind]bool
}

func newEventFilter(kinds []string) eventFilter {
	if len(kinds) == 0 {
		return eventFilter{}
	}
	set := make(map[events.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[events.Kind(k)] = true
	}
	return eventFilter{kinds: set}
}

func (f eventFilter) allows(k events.Kind) bool {
	if len(f.kinds) == 0 {
		return true
	}
	return f.kinds[k]
}
