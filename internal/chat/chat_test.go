package chat

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"streamcast/pkg/types"
)

func TestLog_AppendAndOrder(t *testing.T) {
	log := NewLog()

	for i := 0; i < 5; i++ {
		log.Append(types.ChatMessage{Text: fmt.Sprintf("msg%d", i), Time: time.Now()})
	}

	msgs := log.Messages()
	if len(msgs) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(msgs))
	}
	for i, msg := range msgs {
		if msg.Text != fmt.Sprintf("msg%d", i) {
			t.Errorf("Message %d out of order: %q", i, msg.Text)
		}
	}
}

func TestLog_EvictsOldestAtCap(t *testing.T) {
	log := NewLog()

	for i := 0; i < MaxMessages+25; i++ {
		log.Append(types.ChatMessage{Text: fmt.Sprintf("msg%d", i)})
	}

	if log.Len() != MaxMessages {
		t.Fatalf("Expected log capped at %d, got %d", MaxMessages, log.Len())
	}

	msgs := log.Messages()
	if msgs[0].Text != "msg25" {
		t.Errorf("Oldest retained message = %q, want msg25", msgs[0].Text)
	}
	if msgs[len(msgs)-1].Text != fmt.Sprintf("msg%d", MaxMessages+24) {
		t.Errorf("Newest message = %q, want msg%d", msgs[len(msgs)-1].Text, MaxMessages+24)
	}
}

func TestLog_MessagesReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Append(types.ChatMessage{Text: "original"})

	msgs := log.Messages()
	msgs[0].Text = "mutated"

	if log.Messages()[0].Text != "original" {
		t.Error("Mutating the returned slice must not affect the log")
	}
}

func TestPseudonym_Deterministic(t *testing.T) {
	a := Pseudonym("conn-abc-123")
	b := Pseudonym("conn-abc-123")
	if a != b {
		t.Errorf("Same connection ID should map to the same pseudonym: %q vs %q", a, b)
	}
}

func TestPseudonym_Format(t *testing.T) {
	format := regexp.MustCompile(`^[A-Z][a-z]+[A-Z][a-z]+\d{2}$`)

	for _, connID := range []string{"conn1", "conn2", "9d2f4a", ""} {
		name := Pseudonym(connID)
		if !format.MatchString(name) {
			t.Errorf("Pseudonym(%q) = %q, does not match AdjectiveAnimalNN", connID, name)
		}
	}
}

func TestPseudonym_SpreadsAcrossConnections(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[Pseudonym(fmt.Sprintf("conn-%d", i))] = true
	}
	// A handful of collisions in 100 draws is acceptable; a constant
	// function is not.
	if len(seen) < 90 {
		t.Errorf("Expected near-unique pseudonyms for 100 connections, got %d distinct", len(seen))
	}
}
