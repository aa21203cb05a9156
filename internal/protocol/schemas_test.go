package protocol

import (
	"encoding/json"
	"testing"
)

func TestValidate_AcceptsSamples(t *testing.T) {
	samples := map[string]string{
		TypeHello: `{"type":"HELLO","protocol_version":"1.0","role":"player","client_name":"bot1","max_queue":4}`,
		TypeInput: `{
		  "type":"INPUT","protocol_version":"1.0","seq":3,
		  "movement":{"up":true,"left":true},
		  "attack":true,
		  "build":{"type":"campfire","x":2,"z":-1.5},
		  "assign":{"worker_id":"W7","building_id":"B2"}
		}`,
		TypeState: `{
		  "type":"STATE","protocol_version":"1.0","tick":12,"now_ms":400,
		  "entities":[{"id":"P1","kind":"player","pos":[0,2],"facing":0,"health":100,"max_health":100}],
		  "resources":{"wood":3},
		  "player":{"entity_id":"P1","health":100,"max_health":100,"experience":0},
		  "events":[{"type":"SPAWN","entity_id":"P1"}]
		}`,
	}
	for typ, raw := range samples {
		if err := Validate(typ, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}
}

func TestValidate_RejectsBadMessages(t *testing.T) {
	bad := []struct {
		typ string
		raw string
	}{
		{TypeHello, `{"type":"HELLO","protocol_version":"1.0","role":"admin"}`},
		{TypeHello, `{"type":"HELLO","protocol_version":"1.0"}`},
		{TypeInput, `{"type":"INPUT","protocol_version":"1.0"}`},
		{TypeInput, `{"type":"INPUT","protocol_version":"1.0","movement":{"jump":true}}`},
		{TypeInput, `{"type":"INPUT","protocol_version":"1.0","movement":{},"attack":"yes"}`},
		{TypeInput, `{"type":"INPUT","protocol_version":"1.0","movement":{},"build":{"type":"campfire"}}`},
		{TypeInput, `{"type":"INPUT","protocol_version":"1.0","movement":{},"interact":""}`},
	}
	for _, c := range bad {
		if err := Validate(c.typ, []byte(c.raw)); err == nil {
			t.Fatalf("expected %s rejected: %s", c.typ, c.raw)
		}
	}
}

func TestValidate_MarshaledMessagesConform(t *testing.T) {
	in := InputMsg{
		Type:            TypeInput,
		ProtocolVersion: Version,
		Movement:        MovementIn{Right: true},
		Gather:          "wood",
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := Validate(TypeInput, b); err != nil {
		t.Fatalf("input: %v", err)
	}

	st := StateMsg{
		Type:            TypeState,
		ProtocolVersion: Version,
		Entities:        []EntityState{{ID: "H2", Kind: "hostile", Type: "wolf", Health: 30, MaxHealth: 30}},
		Resources:       map[string]int{},
		Player:          PlayerState{Health: 0, MaxHealth: 100},
	}
	b, err = json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := Validate(TypeState, b); err != nil {
		t.Fatalf("state: %v", err)
	}
}

func TestValidate_UnknownTypePasses(t *testing.T) {
	if err := Validate(TypeWelcome, []byte(`{"type":"WELCOME"}`)); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"INPUT","protocol_version":"1.0","movement":{}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != TypeInput || m.ProtocolVersion != Version {
		t.Fatalf("got %+v", m)
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected error")
	}
}
