package worker

import "testing"

func TestSessionDriver_BuildArgsClaudeFreshSession(t *testing.T) {
	d := &sessionDriver{kind: "claude"}
	args := d.buildArgs(Payload{Prompt: "hello"})

	want := []string{"-p", "hello", "--output-format", "json"}
	if !equalArgs(args, want) {
		t.Errorf("got %v, want %v", args, want)
	}
}

func TestSessionDriver_BuildArgsClaudeResumesSession(t *testing.T) {
	d := &sessionDriver{kind: "claude", sessionID: "sess-1", started: true}
	args := d.buildArgs(Payload{Prompt: "continue"})

	want := []string{"-p", "continue", "--output-format", "json", "--resume", "sess-1"}
	if !equalArgs(args, want) {
		t.Errorf("got %v, want %v", args, want)
	}
}

func TestSessionDriver_BuildArgsCodexExecThenResume(t *testing.T) {
	d := &sessionDriver{kind: "codex"}
	fresh := d.buildArgs(Payload{Prompt: "hi"})
	want := []string{"exec", "hi", "--json"}
	if !equalArgs(fresh, want) {
		t.Errorf("got %v, want %v", fresh, want)
	}

	d.sessionID = "thread-1"
	d.started = true
	resumed := d.buildArgs(Payload{Prompt: "more"})
	wantResumed := []string{"resume", "thread-1", "more", "--json"}
	if !equalArgs(resumed, wantResumed) {
		t.Errorf("got %v, want %v", resumed, wantResumed)
	}
}

func TestSessionDriver_BuildArgsGooseNewSessionThenResume(t *testing.T) {
	d := &sessionDriver{kind: "goose", sessionID: "swarm-ab12"}
	fresh := d.buildArgs(Payload{Prompt: "hi"})
	want := []string{"run", "--text", "hi", "--name", "swarm-ab12", "--new-session"}
	if !equalArgs(fresh, want) {
		t.Errorf("got %v, want %v", fresh, want)
	}

	d.started = true
	resumed := d.buildArgs(Payload{Prompt: "more"})
	wantResumed := []string{"run", "--text", "more", "--name", "swarm-ab12", "--resume"}
	if !equalArgs(resumed, wantResumed) {
		t.Errorf("got %v, want %v", resumed, wantResumed)
	}
}

func TestSessionDriver_ParseClaudeResponse(t *testing.T) {
	d := &sessionDriver{kind: "claude"}
	data := []byte(`{"session_id":"sess-9","result":{"content":[{"type":"text","text":"hi there"}]}}`)

	sessionID, content, err := d.parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sessionID != "sess-9" {
		t.Errorf("expected session id sess-9, got %s", sessionID)
	}
	if content != "hi there" {
		t.Errorf("expected content 'hi there', got %s", content)
	}
}

func TestSessionDriver_ParseGooseResponse(t *testing.T) {
	d := &sessionDriver{kind: "goose"}
	data := []byte(`{"content":"done"}`)

	_, content, err := d.parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if content != "done" {
		t.Errorf("expected content 'done', got %s", content)
	}
}

func TestParseCodexEvents_ExtractsThreadIDAndContent(t *testing.T) {
	data := []byte("{\"type\":\"ThreadStarted\",\"thread_id\":\"th-1\"}\n{\"type\":\"TurnCompleted\",\"content\":\"answer\"}\n")

	threadID, content, err := parseCodexEvents(data)
	if err != nil {
		t.Fatalf("parseCodexEvents: %v", err)
	}
	if threadID != "th-1" {
		t.Errorf("expected thread id th-1, got %s", threadID)
	}
	if content != "answer" {
		t.Errorf("expected content 'answer', got %s", content)
	}
}

func TestRandomHex_ProducesRequestedLength(t *testing.T) {
	s, err := randomHex(4)
	if err != nil {
		t.Fatalf("randomHex: %v", err)
	}
	if len(s) != 8 {
		t.Errorf("expected 8 hex chars for 4 bytes, got %d (%s)", len(s), s)
	}
}

func equalArgs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
