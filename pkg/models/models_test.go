package models

import "testing"

func TestParseIPAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		version int
		wantErr bool
	}{
		{in: "2001:db8::a", want: "2001:db8::a", version: 6},
		{in: "2001:db8::a/64", want: "2001:db8::a", version: 6},
		{in: "192.0.2.10", want: "192.0.2.10", version: 4},
		{in: " 192.0.2.10/24 ", want: "192.0.2.10", version: 4},
		{in: "::ffff:192.0.2.10", want: "192.0.2.10", version: 4},
		{in: "not-an-ip", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			addr, version, err := ParseIPAddress(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseIPAddress(%q) succeeded", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIPAddress(%q): %v", tt.in, err)
			}
			if addr.String() != tt.want || version != tt.version {
				t.Errorf("ParseIPAddress(%q) = %s v%d, want %s v%d", tt.in, addr, version, tt.want, tt.version)
			}
		})
	}
}

func TestValidateCommunityValue(t *testing.T) {
	valid := []string{"64500:1", "65535:65535", "4200000000:1:2"}
	invalid := []string{"", "64500", "64500:", "a:b", "65536:1", "1:2:3:4", "4294967296:1:1"}

	for _, v := range valid {
		if err := ValidateCommunityValue(v); err != nil {
			t.Errorf("ValidateCommunityValue(%q) = %v, want nil", v, err)
		}
	}
	for _, v := range invalid {
		if err := ValidateCommunityValue(v); err == nil {
			t.Errorf("ValidateCommunityValue(%q) = nil, want error", v)
		}
	}
}

func TestJobStatus(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusPending:   false,
		JobStatusRunning:   false,
		JobStatusCompleted: true,
		JobStatusErrored:   true,
		JobStatusFailed:    true,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
		if !s.Valid() {
			t.Errorf("%s.Valid() = false", s)
		}
	}
	if JobStatus("cancelled").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestWebhookFires_flags_gate_independently(t *testing.T) {
	tests := []struct {
		name                   string
		create, update, delete bool
		want                   map[ObjectAction]bool
	}{
		{name: "create only", create: true, want: map[ObjectAction]bool{ActionCreated: true}},
		{name: "update only", update: true, want: map[ObjectAction]bool{ActionUpdated: true}},
		{name: "delete only", delete: true, want: map[ObjectAction]bool{ActionDeleted: true}},
		{name: "create and delete", create: true, delete: true, want: map[ObjectAction]bool{ActionCreated: true, ActionDeleted: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Webhook{
				Enabled:      true,
				ContentTypes: []ContentType{ContentTypeAutonomousSystem},
				TypeCreate:   tt.create,
				TypeUpdate:   tt.update,
				TypeDelete:   tt.delete,
			}
			for _, action := range []ObjectAction{ActionCreated, ActionUpdated, ActionDeleted} {
				if got := w.Fires(ContentTypeAutonomousSystem, action); got != tt.want[action] {
					t.Errorf("Fires(%s) = %v, want %v", action, got, tt.want[action])
				}
			}
			if w.Fires(ContentTypeRouter, ActionCreated) {
				t.Error("fired for an unselected content type")
			}
		})
	}

	disabled := Webhook{ContentTypes: []ContentType{ContentTypeRouter}, TypeCreate: true}
	if disabled.Fires(ContentTypeRouter, ActionCreated) {
		t.Error("disabled webhook fired")
	}
}

func TestObjectChangeTopic(t *testing.T) {
	c := ObjectChange{Action: ActionDeleted}
	if c.Topic() != TopicObjectDeleted {
		t.Errorf("Topic() = %q, want %q", c.Topic(), TopicObjectDeleted)
	}
}
