package engine

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "Idle"},
		{Playing, "Playing"},
		{Paused, "Paused"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_Predicates(t *testing.T) {
	tests := []struct {
		state     State
		active    bool
		canPause  bool
		canResume bool
	}{
		{Idle, false, false, false},
		{Playing, true, true, false},
		{Paused, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := tt.state.CanPause(); got != tt.canPause {
				t.Errorf("CanPause() = %v, want %v", got, tt.canPause)
			}
			if got := tt.state.CanResume(); got != tt.canResume {
				t.Errorf("CanResume() = %v, want %v", got, tt.canResume)
			}
		})
	}
}

func TestMock_FollowsStateMachine(t *testing.T) {
	m := NewMock()

	m.Toggle()
	if m.State() != Idle {
		t.Fatalf("Toggle on idle changed state to %v", m.State())
	}
	if err := m.Seek(5); err != nil || m.State() != Idle {
		t.Fatalf("Seek on idle = %v, state %v", err, m.State())
	}

	if err := m.Load("/music/a.flac"); err != nil {
		t.Fatal(err)
	}
	m.Pause()
	m.Pause()
	if m.State() != Paused {
		t.Errorf("state = %v, want Paused", m.State())
	}
	if err := m.Seek(12); err != nil {
		t.Fatal(err)
	}
	if m.State() != Playing || m.Position().Seconds() != 12 {
		t.Errorf("after seek: state %v, position %v", m.State(), m.Position())
	}
	if got := m.LoadCalls(); len(got) != 1 || got[0] != "/music/a.flac" {
		t.Errorf("LoadCalls() = %v", got)
	}
	if got := m.SeekCalls(); len(got) != 2 {
		t.Errorf("SeekCalls() = %v", got)
	}
}
