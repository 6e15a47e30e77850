package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("trainlink")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"LocoCommand address", topics.LocoCommand("66"), "trainlink/loco/66/command"},
		{"LocoCommand name", topics.LocoCommand("Flying Scotsman"), "trainlink/loco/Flying Scotsman/command"},
		{"LocoState", topics.LocoState(66), "trainlink/loco/66/state"},
		{"AllLocoCommands", topics.AllLocoCommands(), "trainlink/loco/+/command"},
		{"SystemStatus", topics.SystemStatus(), "trainlink/system/status"},
		{"custom prefix", NewTopics("/club/").LocoState(3), "club/loco/3/state"},
		{"empty prefix", NewTopics("").SystemStatus(), "trainlink/system/status"},
		{"zero value", Topics{}.LocoState(3), "trainlink/loco/3/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLocoIdentifier(t *testing.T) {
	topics := NewTopics("trainlink")

	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"trainlink/loco/66/command", "66", true},
		{"trainlink/loco/Class 08/command", "Class 08", true},
		{"trainlink/loco/66/state", "66", true},
		{"trainlink/loco/66/other", "", false},
		{"trainlink/loco//command", "", false},
		{"trainlink/system/status", "", false},
		{"other/loco/66/command", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := topics.LocoIdentifier(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("LocoIdentifier(%q) = (%q, %v), want (%q, %v)", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
