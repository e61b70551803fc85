package chat

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Word lists for derived display names. Sized so adjective x animal x
// suffix gives ~6M combinations, enough that two connections colliding
// in one chat is unlikely.
var adjectives = []string{
	"Amber", "Bold", "Brisk", "Calm", "Clever", "Crimson", "Dapper",
	"Eager", "Fuzzy", "Gentle", "Hazel", "Jolly", "Keen", "Lively",
	"Mellow", "Nimble", "Plucky", "Quiet", "Rapid", "Silver", "Sly",
	"Sturdy", "Swift", "Vivid", "Witty",
}

var animals = []string{
	"Badger", "Bison", "Crane", "Falcon", "Ferret", "Fox", "Gecko",
	"Heron", "Ibis", "Lemur", "Lynx", "Marmot", "Mole", "Otter",
	"Panda", "Puffin", "Raven", "Seal", "Shrew", "Stoat", "Tapir",
	"Toucan", "Viper", "Wombat", "Yak",
}

// Pseudonym derives a chat display name from a connection ID. The same
// connection always maps to the same name; the mapping is one-way, so
// the connection ID cannot be recovered from the name.
func Pseudonym(connID string) string {
	sum := sha256.Sum256([]byte(connID))
	adj := adjectives[int(binary.BigEndian.Uint16(sum[0:2]))%len(adjectives)]
	animal := animals[int(binary.BigEndian.Uint16(sum[2:4]))%len(animals)]
	suffix := binary.BigEndian.Uint16(sum[4:6]) % 100
	return fmt.Sprintf("%s%s%02d", adj, animal, suffix)
}
