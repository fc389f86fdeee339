package connection

import "testing"

func TestTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  Status
		event Event
		want  Status
	}{
		{"first dial", StatusDisconnected, EventDial, StatusConnecting},
		{"dial succeeds", StatusConnecting, EventOpened, StatusConnected},
		{"dial fails", StatusConnecting, EventDialFailed, StatusReconnecting},
		{"unexpected drop", StatusConnected, EventDropped, StatusReconnecting},
		{"retry dial stays reconnecting", StatusReconnecting, EventDial, StatusReconnecting},
		{"retry succeeds", StatusReconnecting, EventOpened, StatusConnected},
		{"retry fails", StatusReconnecting, EventDialFailed, StatusReconnecting},
		{"attempts exhausted", StatusReconnecting, EventExhausted, StatusFailed},
		{"exhausted on first cycle", StatusConnecting, EventExhausted, StatusFailed},
		{"manual retry from failed", StatusFailed, EventDial, StatusConnecting},
		{"explicit close", StatusConnected, EventClosed, StatusDisconnected},
		{"close while reconnecting", StatusReconnecting, EventClosed, StatusDisconnected},
		{"close while failed", StatusFailed, EventClosed, StatusDisconnected},

		// Nonsense inputs leave the status unchanged.
		{"drop while disconnected", StatusDisconnected, EventDropped, StatusDisconnected},
		{"open while connected", StatusConnected, EventOpened, StatusConnected},
		{"dial while connected", StatusConnected, EventDial, StatusConnected},
		{"dial failed while failed", StatusFailed, EventDialFailed, StatusFailed},
		{"exhausted while connected", StatusConnected, EventExhausted, StatusConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transition(tt.from, tt.event); got != tt.want {
				t.Errorf("Transition(%v, %v) = %v, want %v", tt.from, tt.event, got, tt.want)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{StatusFailed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
