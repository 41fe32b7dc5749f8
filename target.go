package main

import (
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// ZapTarget is an immutable reference to the event being zapped.
// Addressable events (kind 30000-39999) are referenced by their
// kind:pubkey:identifier address instead of the event ID.
type ZapTarget struct {
	ID         string
	PubKey     string
	Kind       int
	Identifier string // "d" tag, addressable events only
}

// Addressable reports whether the target uses NIP-01 addressable kinds.
func (t ZapTarget) Addressable() bool {
	return t.Kind >= 30000 && t.Kind < 40000
}

// Address returns the kind:pubkey:identifier address for addressable targets.
func (t ZapTarget) Address() string {
	return fmt.Sprintf("%d:%s:%s", t.Kind, t.PubKey, t.Identifier)
}

// refTag returns the reference tag for protocol events pointing at this
// target: "e" for regular events, "a" for addressable ones.
func (t ZapTarget) refTag() nostr.Tag {
	if t.Addressable() {
		return nostr.Tag{"a", t.Address()}
	}
	return nostr.Tag{"e", t.ID}
}

// targetFromEvent builds a ZapTarget from a fetched event.
func targetFromEvent(evt *nostr.Event) ZapTarget {
	t := ZapTarget{
		ID:     evt.ID,
		PubKey: evt.PubKey,
		Kind:   evt.Kind,
	}
	if t.Addressable() {
		t.Identifier = firstTagValue(evt.Tags, "d")
	}
	return t
}

// firstTagValue returns the value of the first tag with the given key, or "".
func firstTagValue(tags nostr.Tags, key string) string {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == key {
			return tag[1]
		}
	}
	return ""
}

// targetRef is a parsed user input pointing at an event, before the event
// itself has been fetched. Either ID or (Author, Kind, Identifier) is set.
type targetRef struct {
	ID         string
	Author     string
	Kind       int
	Identifier string
	Relays     []string // relay hints from nevent/naddr
}

// filter returns the REQ filter that fetches the referenced event.
func (r targetRef) filter() nostr.Filter {
	if r.ID != "" {
		return nostr.Filter{IDs: []string{r.ID}}
	}
	return nostr.Filter{
		Kinds:   []int{r.Kind},
		Authors: []string{r.Author},
		Tags:    nostr.TagMap{"d": []string{r.Identifier}},
	}
}

// parseTargetInput parses a note1/nevent1/naddr1 entity or a raw hex event ID.
func parseTargetInput(input string) (targetRef, error) {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "nostr:")
	if input == "" {
		return targetRef{}, fmt.Errorf("empty target")
	}

	if isHex64(input) {
		return targetRef{ID: strings.ToLower(input)}, nil
	}

	prefix, value, err := nip19.Decode(input)
	if err != nil {
		return targetRef{}, fmt.Errorf("decode target: %w", err)
	}

	switch prefix {
	case "note":
		return targetRef{ID: value.(string)}, nil
	case "nevent":
		ep := value.(nostr.EventPointer)
		return targetRef{ID: ep.ID, Relays: ep.Relays}, nil
	case "naddr":
		ap := value.(nostr.EntityPointer)
		if ap.Identifier == "" {
			return targetRef{}, fmt.Errorf("naddr missing identifier")
		}
		return targetRef{
			Author:     ap.PublicKey,
			Kind:       ap.Kind,
			Identifier: ap.Identifier,
			Relays:     ap.Relays,
		}, nil
	default:
		return targetRef{}, fmt.Errorf("unsupported entity %q (want note, nevent or naddr)", prefix)
	}
}

// isHex64 reports whether s is a 64-character lowercase-insensitive hex string.
func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
